package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// QueryRequest carries the client's query parameters. Resources may
// ignore any of them.
type QueryRequest struct {
	QueryFilter        string
	SortKeys           []string
	Fields             []string
	PageSize           int
	PagedResultsOffset int
	PagedResultsCookie string
}

// DeleteRequest carries the client's delete parameters.
type DeleteRequest struct {
	Revision string
	Fields   []string
}

// ActionRequest names an action verb and its JSON payload.
type ActionRequest struct {
	Action  string
	Content json.RawMessage
	Params  map[string]string
}

// DecodeContent unmarshals the request body into v. An empty body
// leaves v untouched.
func (r ActionRequest) DecodeContent(v any) error {
	if len(bytes.TrimSpace(r.Content)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Content, v); err != nil {
		return fmt.Errorf("decoding %s content: %w", r.Action, err)
	}
	return nil
}

// ResourceResponse is one resource returned from a read, query or delete.
type ResourceResponse struct {
	ID       string `json:"_id,omitempty"`
	Revision string `json:"_rev,omitempty"`
	Content  any    `json:"-"`
}

// ActionResponse is the JSON object returned by an action.
type ActionResponse struct {
	Content map[string]any
}

// QueryResponse closes a query once every result has been delivered.
// Negative totals mean the count is unknown.
type QueryResponse struct {
	ResultCount           int     `json:"resultCount"`
	PagedResultsCookie    *string `json:"pagedResultsCookie"`
	TotalPagedResults     int     `json:"totalPagedResults"`
	RemainingPagedResults int     `json:"remainingPagedResults"`
}

// NewQueryResponse returns a response for an unpaged result set.
func NewQueryResponse(count int) QueryResponse {
	return QueryResponse{
		ResultCount:           count,
		TotalPagedResults:     -1,
		RemainingPagedResults: -1,
	}
}

// QueryHandler receives query results one at a time, in order.
// Returning false stops delivery.
type QueryHandler interface {
	HandleResource(ResourceResponse) bool
}

// Collector is a QueryHandler that keeps every result.
type Collector struct {
	Results []ResourceResponse
}

// HandleResource appends r.
func (c *Collector) HandleResource(r ResourceResponse) bool {
	c.Results = append(c.Results, r)
	return true
}
