package event

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/get-eventually/go-eventstore/version"
)

// Stream represents a write-only channel of Persisted events,
// used by Event Stores to stream events back to the caller.
//
// Implementations must close the Stream when done writing.
type Stream = chan<- Persisted

// StreamToSlice synchronously exhausts an Event Stream to a Persisted slice,
// and returns an error if the Event Stream origin, passed here as a closure,
// fails with an error.
func StreamToSlice(ctx context.Context, f func(ctx context.Context, stream Stream) error) ([]Persisted, error) {
	ch := make(chan Persisted, 1)
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error { return f(ctx, ch) })

	var events []Persisted
	for evt := range ch {
		events = append(events, evt)
	}

	return events, group.Wait()
}

// Reader is the Event Store port used to read Domain Events back.
//
// Both methods are synchronous and close the provided Stream when they return.
type Reader interface {
	// ReadStream streams the Events of a single Event Stream,
	// starting from the specified EventNumber (inclusive).
	ReadStream(ctx context.Context, stream Stream, streamID string, from version.EventNumber) error

	// ReadAll streams the Events of all Event Streams in global order,
	// starting from the specified CommitPosition (inclusive).
	ReadAll(ctx context.Context, stream Stream, from version.CommitPosition) error
}

// Appender is the Event Store port used to append new Domain Events
// to an Event Stream.
//
// It returns the EventNumber of the last Event in the Event Stream
// after the append.
type Appender interface {
	Append(ctx context.Context, streamID string, expected version.Check, events ...Envelope) (version.EventNumber, error)
}

// PositionReader returns the current tail of an Event Store.
//
// Using an empty streamID returns the last CommitPosition of the whole
// Event Store, with no EventNumber. Using a non-existing Event Stream
// returns version.FromBeginning.
type PositionReader interface {
	LatestPosition(ctx context.Context, streamID string) (version.Position, error)
}

// Store represents an Event Store, supporting both reading and appending.
type Store interface {
	Appender
	Reader
}

// FusedStore is a convenience type to fuse
// multiple Event Store interfaces where you might need to extend
// the functionality of the Store only partially.
//
// E.g. You might want to extend the functionality of the Append() method,
// but keep the Reader methods the same.
type FusedStore struct {
	Appender
	Reader
}
