// Package eventstore contains the types and abstractions shared by the
// Event Store backends of this module, so that aggregate-oriented Event Streams
// can be appended to, read from and subscribed to independently
// of the concrete storage in use.
//
// You might want to start from `subscription`, which models the position of
// a consumer in an Event Stream (or in the all-streams feed), and from `stream`,
// which routes Aggregate types to physical Event Stream names.
//
// `inmemory`, `postgres` and `firestore` contain the backend implementations.
package eventstore
