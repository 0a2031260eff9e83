package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-logic-mfa/internal/rest"
)

// errMethodNotAllowed is written when a route exists for another method.
var errMethodNotAllowed = &rest.Error{
	Code:    http.StatusMethodNotAllowed,
	Reason:  "method_not_allowed",
	Message: "method not allowed",
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes err as {"status","code","message"}. Errors that are
// not *rest.Error are reported as internal errors without their text.
func writeError(w http.ResponseWriter, err error) {
	re := rest.AsError(err)
	writeJSON(w, re.Code, re)
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, rest.NewBadRequest(message))
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, rest.NewNotFound(message))
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, rest.NewUnauthorized(message))
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, rest.NewInternal(message, nil))
}
