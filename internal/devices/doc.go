// Package devices manages the OATH authentication devices enrolled for a
// user.
//
// Profiles are stored as one ordered list per (user, realm). Resource
// exposes the list over four operations: query the collection, delete one
// device by uuid, and the collection actions "skip" and "check" that set and
// read whether the user may skip OATH at login. Instance actions are not
// defined and always fail with rest.NewNotSupported.
//
// Every operation resolves the identity again and reads the store again;
// nothing is cached between calls. Stores that implement VersionedStore
// get conflict-checked deletes; plain stores accept last-writer-wins.
package devices
