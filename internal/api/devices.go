package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-mfa/internal/identity"
	"github.com/nerrad567/gray-logic-mfa/internal/realm"
	"github.com/nerrad567/gray-logic-mfa/internal/rest"
)

// Request parameters of the device resource.
const (
	headerRealm   = "X-Realm"
	headerIfMatch = "If-Match"

	paramAction             = "_action"
	paramQueryFilter        = "_queryFilter"
	paramSortKeys           = "_sortKeys"
	paramFields             = "_fields"
	paramPageSize           = "_pageSize"
	paramPagedResultsOffset = "_pagedResultsOffset"
	paramPagedResultsCookie = "_pagedResultsCookie"
)

// queryResult is the body of a device query.
type queryResult struct {
	Result []any `json:"result"`
	rest.QueryResponse
}

// handleQueryDevices lists the target user's OATH devices in storage order.
//
// Query parameters (accepted and ignored; every device is returned):
//   - _queryFilter: filter expression
//   - _sortKeys: comma-separated sort keys
//   - _fields: comma-separated field list
//   - _pageSize, _pagedResultsOffset: non-negative integers, 400 otherwise
//   - _pagedResultsCookie: opaque paging cookie
//
// The body is {"result": [...], "resultCount": n, ...}; result is [] when
// the user has no devices.
func (s *Server) handleQueryDevices(w http.ResponseWriter, r *http.Request) {
	sc, err := requestSecurityContext(r)
	if err != nil {
		writeError(w, err)
		return
	}

	req, err := queryRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var results rest.Collector
	resp, err := s.devices.QueryCollection(r.Context(), sc, req, &results)
	if err != nil {
		writeError(w, err)
		return
	}

	body := queryResult{Result: make([]any, 0, len(results.Results)), QueryResponse: resp}
	for _, res := range results.Results {
		body.Result = append(body.Result, res.Content)
	}
	writeJSON(w, http.StatusOK, body)
}

// handleDeleteDevice removes the device {uuid} and returns its profile.
//
// Headers:
//   - If-Match: revision of the device list; carried through, not enforced
//
// Query parameters:
//   - _fields: comma-separated field list (ignored)
//
// Responses: 200 with the removed profile, 404 when no device has that
// uuid (nothing is written), 409 when concurrent changes kept the delete
// from committing.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	sc, err := requestSecurityContext(r)
	if err != nil {
		writeError(w, err)
		return
	}

	req := rest.DeleteRequest{
		Revision: r.Header.Get(headerIfMatch),
		Fields:   splitList(r.URL.Query().Get(paramFields)),
	}
	resp, err := s.devices.DeleteInstance(r.Context(), sc, chi.URLParam(r, "uuid"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp.Content)
}

// handleDeviceCollectionAction runs an action on the device collection.
//
// Query parameters:
//   - _action: required verb, matched exactly
//     - skip: body {"value": bool}, value defaults to true; returns {}
//     - check: returns {"result": bool}
//     - anything else: 501
//
// Remaining query parameters are passed to the action untouched.
func (s *Server) handleDeviceCollectionAction(w http.ResponseWriter, r *http.Request) {
	sc, req, err := actionRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, err := s.devices.ActionCollection(r.Context(), sc, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeAction(w, resp)
}

// handleDeviceInstanceAction runs an action on the device {uuid}. Devices
// define no actions, so every verb is answered with 501.
func (s *Server) handleDeviceInstanceAction(w http.ResponseWriter, r *http.Request) {
	sc, req, err := actionRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, err := s.devices.ActionInstance(r.Context(), sc, chi.URLParam(r, "uuid"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeAction(w, resp)
}

func writeAction(w http.ResponseWriter, resp rest.ActionResponse) {
	content := resp.Content
	if content == nil {
		content = map[string]any{}
	}
	writeJSON(w, http.StatusOK, content)
}

// deviceContextMiddleware builds the security context of a device request
// and stores it in the request context for the handlers.
//
// The caller comes from the token claims, the target user from the
// {user} path parameter and the realm from requestRealm. It must run
// after authMiddleware.
func (s *Server) deviceContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil {
			writeUnauthorized(w, "authentication required")
			return
		}
		rlm, err := requestRealm(r)
		if err != nil {
			writeError(w, err)
			return
		}

		sc := identity.NewContext(claims.Subject, chi.URLParam(r, "user"), rlm)
		next.ServeHTTP(w, r.WithContext(identity.WithSecurityContext(r.Context(), sc)))
	})
}

// requestSecurityContext returns the context stored by deviceContextMiddleware.
func requestSecurityContext(r *http.Request) (identity.SecurityContext, error) {
	sc, ok := identity.FromContext(r.Context())
	if !ok {
		return nil, rest.NewUnauthorized("authentication required")
	}
	return sc, nil
}

// requestRealm reads the X-Realm header, falling back to the {realm}
// path segment.
func requestRealm(r *http.Request) (realm.Realm, error) {
	if h := r.Header.Get(headerRealm); h != "" {
		rlm, err := realm.Parse(h)
		if err != nil {
			return realm.Realm{}, rest.NewBadRequest("invalid " + headerRealm + " header")
		}
		return rlm, nil
	}
	rlm, err := realm.FromSegment(chi.URLParam(r, "realm"))
	if err != nil {
		return realm.Realm{}, rest.NewBadRequest("invalid realm")
	}
	return rlm, nil
}

func actionRequest(r *http.Request) (identity.SecurityContext, rest.ActionRequest, error) {
	sc, err := requestSecurityContext(r)
	if err != nil {
		return nil, rest.ActionRequest{}, err
	}

	q := r.URL.Query()
	action := q.Get(paramAction)
	if action == "" {
		return nil, rest.ActionRequest{}, rest.NewBadRequest("missing " + paramAction + " parameter")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, rest.ActionRequest{}, rest.NewBadRequest("unreadable request body")
	}

	params := make(map[string]string, len(q))
	for k, v := range q {
		if k != paramAction && len(v) > 0 {
			params[k] = v[0]
		}
	}

	return sc, rest.ActionRequest{Action: action, Content: body, Params: params}, nil
}

func queryRequest(r *http.Request) (rest.QueryRequest, error) {
	q := r.URL.Query()
	req := rest.QueryRequest{
		QueryFilter:        q.Get(paramQueryFilter),
		SortKeys:           splitList(q.Get(paramSortKeys)),
		Fields:             splitList(q.Get(paramFields)),
		PagedResultsCookie: q.Get(paramPagedResultsCookie),
	}
	var err error
	if req.PageSize, err = intParam(q.Get(paramPageSize)); err != nil {
		return rest.QueryRequest{}, rest.NewBadRequest(paramPageSize + " must be a non-negative integer")
	}
	if req.PagedResultsOffset, err = intParam(q.Get(paramPagedResultsOffset)); err != nil {
		return rest.QueryRequest{}, rest.NewBadRequest(paramPagedResultsOffset + " must be a non-negative integer")
	}
	return req, nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
