// Package identity resolves who a request acts for and gives access to
// that identity's attributes.
//
// A SecurityContext describes the authenticated caller, the user named by
// the request and the realm. A Resolver turns it into an Identity, checking
// that the caller is allowed to act for the target user. Identities are
// resolved on every request and never cached.
package identity
