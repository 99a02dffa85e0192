// Package stream decides which physical Event Stream an Aggregate type
// is persisted to.
//
// A Router is built once at startup from an immutable Mapping of
// Aggregate types to stream names, and a Fallback strategy used for the
// Aggregate types the Mapping does not list. All instances of an Aggregate
// type share the resolved stream.
package stream
