package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Reason codes carried in the JSON error body.
const (
	ReasonBadRequest   = "bad_request"
	ReasonUnauthorized = "unauthorised"
	ReasonForbidden    = "forbidden"
	ReasonNotFound     = "not_found"
	ReasonConflict     = "conflict"
	ReasonInternal     = "internal_error"
	ReasonNotSupported = "not_supported"
)

// Error is a failure with an HTTP status. The optional cause is kept for
// logging and errors.Is but never serialised.
type Error struct {
	Code    int
	Reason  string
	Message string
	cause   error
}

func newError(code int, reason, message string, cause error) *Error {
	return &Error{Code: code, Reason: reason, Message: message, cause: cause}
}

// NewBadRequest reports a malformed request.
func NewBadRequest(message string) *Error {
	return newError(http.StatusBadRequest, ReasonBadRequest, message, nil)
}

// NewUnauthorized reports a missing or invalid credential.
func NewUnauthorized(message string) *Error {
	return newError(http.StatusUnauthorized, ReasonUnauthorized, message, nil)
}

// NewForbidden reports a caller that may not act on the target.
func NewForbidden(message string) *Error {
	return newError(http.StatusForbidden, ReasonForbidden, message, nil)
}

// NewNotFound reports a missing resource.
func NewNotFound(message string) *Error {
	return newError(http.StatusNotFound, ReasonNotFound, message, nil)
}

// NewConflict reports a write that lost a race with another writer.
func NewConflict(message string, cause error) *Error {
	return newError(http.StatusConflict, ReasonConflict, message, cause)
}

// NewInternal reports a server-side failure wrapping cause.
func NewInternal(message string, cause error) *Error {
	return newError(http.StatusInternalServerError, ReasonInternal, message, cause)
}

// NewNotSupported reports an operation or action the resource does not
// implement.
func NewNotSupported(message string) *Error {
	return newError(http.StatusNotImplemented, ReasonNotSupported, message, nil)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Message, e.cause)
	}
	return e.Reason + ": " + e.Message
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches another *Error with the same Code, so callers can write
// errors.Is(err, rest.NewNotFound("")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// MarshalJSON writes the client-facing body.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Status  int    `json:"status"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}{e.Code, e.Reason, e.Message})
}

// AsError returns err as a *Error, wrapping anything else as internal.
// It returns nil for a nil err.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	return NewInternal("internal server error", err)
}

// IsNotFound reports whether err carries a 404.
func IsNotFound(err error) bool { return hasCode(err, http.StatusNotFound) }

// IsNotSupported reports whether err carries a 501.
func IsNotSupported(err error) bool { return hasCode(err, http.StatusNotImplemented) }

// IsInternal reports whether err carries a 500.
func IsInternal(err error) bool { return hasCode(err, http.StatusInternalServerError) }

func hasCode(err error, code int) bool {
	var re *Error
	return errors.As(err, &re) && re.Code == code
}
