// Package api implements the HTTP REST API of the MFA service.
//
// This package provides:
//   - The OATH device collection of each user under
//     /api/v1/realms/{realm}/users/{user}/devices/2fa/oath
//   - Login issuing JWT access tokens
//   - Health, metrics and audit endpoints
//   - Middleware stack (request ID, logging, recovery, CORS, auth)
//
// # Realms
//
// The {realm} path segment names a top-level realm; "root" is the root
// realm "/". Nested realms are addressed with the X-Realm header, which
// carries the full path and takes precedence over the segment.
//
// # Errors
//
// Every failure is written as {"status","code","message"} with the
// status of the underlying rest.Error.
package api
