// Package auth authenticates API callers and describes what they may do.
//
// Users belong to a realm and hold one of three roles (user, admin,
// owner). Passwords are stored as Argon2id PHC strings and sessions are
// short-lived HS256 JWTs carrying the user id, role and realm. Role
// permissions are a static table with no database lookup.
package auth
