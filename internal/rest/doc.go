// Package rest holds the request, response and error types shared by
// resource implementations and the HTTP layer.
//
// Resources return a *Error for every failure a client should see; the
// HTTP layer turns it into a JSON body of the form
//
//	{"status": 404, "code": "not_found", "message": "..."}
//
// Any other error reaching the boundary is reported as an internal error
// and its text is not exposed.
package rest
