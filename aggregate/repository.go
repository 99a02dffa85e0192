package aggregate

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/get-eventually/go-eventstore"
	"github.com/get-eventually/go-eventstore/event"
	"github.com/get-eventually/go-eventstore/stream"
	"github.com/get-eventually/go-eventstore/version"
)

// Metadata keys recorded on the Domain Events of an Aggregate Root.
const (
	IDKey      = "Aggregate-Id"
	TypeKey    = "Aggregate-Type"
	VersionKey = "Aggregate-Version"
)

// ErrRootNotFound is returned by the Repository when no Events for the
// specified Aggregate Root have been found.
var ErrRootNotFound = fmt.Errorf("aggregate.Repository: aggregate root not found, %w", eventstore.ErrNotFound)

// Repository is an Event-sourced Repository for Aggregate Roots of a single Type.
//
// All the instances of the Type share the Event Stream the stream.Router
// resolves for the Type name: the Domain Events of an instance are told
// apart through the Aggregate-Id metadata.
//
// Saves are guarded by an optimistic concurrency check on the whole
// Event Stream, since the version of an Aggregate Root is not the
// event number of its Events.
type Repository[I ID, T Root[I]] struct {
	typ    Type[I, T]
	store  event.Store
	router *stream.Router
}

// NewRepository returns a new Repository for the Aggregate Type,
// using the Event Store and the stream.Router provided.
func NewRepository[I ID, T Root[I]](typ Type[I, T], store event.Store, router *stream.Router) *Repository[I, T] {
	return &Repository[I, T]{
		typ:    typ,
		store:  store,
		router: router,
	}
}

// Get returns the Aggregate Root with the specified id.
//
// ErrRootNotFound is returned if no Domain Events for the Aggregate Root
// have been found.
func (r *Repository[I, T]) Get(ctx context.Context, id I) (T, error) {
	var zero T

	streamID, err := r.router.Resolve(r.typ.Name)
	if err != nil {
		return zero, fmt.Errorf("aggregate.Repository: failed to resolve stream, %w", err)
	}

	root, rootID := r.typ.Factory(), id.String()

	_, applied, err := r.scan(ctx, streamID, rootID, func(evt event.Persisted) error {
		if err := root.Apply(evt.Message); err != nil {
			return fmt.Errorf("aggregate.Repository: failed to rehydrate aggregate root, %w", err)
		}

		return nil
	})
	if err != nil {
		return zero, err
	}

	if applied == 0 {
		return zero, fmt.Errorf("%w: %s %q", ErrRootNotFound, r.typ.Name, rootID)
	}

	root.setVersion(applied)

	return root, nil
}

// Save appends the uncommitted Domain Events recorded through the
// Aggregate Root, if any, to the Event Stream of its Type.
//
// A version.ConflictError is returned if the Aggregate Root has not been
// loaded from its latest committed version, or if the Event Stream
// has been appended to while saving.
func (r *Repository[I, T]) Save(ctx context.Context, root T) error {
	events := root.FlushRecordedEvents()
	if len(events) == 0 {
		return nil
	}

	streamID, err := r.router.Resolve(r.typ.Name)
	if err != nil {
		return fmt.Errorf("aggregate.Repository: failed to resolve stream, %w", err)
	}

	rootID := root.AggregateID().String()
	firstVersion := root.Version() - int64(len(events)) + 1

	last, committed, err := r.scan(ctx, streamID, rootID, func(event.Persisted) error { return nil })
	if err != nil {
		return err
	}

	if committed != firstVersion-1 {
		return fmt.Errorf("aggregate.Repository: stale aggregate root %s %q, %w", r.typ.Name, rootID,
			version.ConflictError{
				Expected: version.EventNumber(firstVersion - 1),
				Actual:   version.EventNumber(committed),
			})
	}

	tagged := make([]event.Envelope, 0, len(events))
	for i, evt := range events {
		evt.Metadata = evt.Metadata.Clone().
			With(IDKey, rootID).
			With(TypeKey, r.typ.Name).
			With(VersionKey, strconv.FormatInt(firstVersion+int64(i), 10))

		tagged = append(tagged, evt)
	}

	if _, err := r.store.Append(ctx, streamID, version.CheckExact(last), tagged...); err != nil {
		return fmt.Errorf("aggregate.Repository: failed to commit recorded events, %w", err)
	}

	return nil
}

// scan reads the whole Event Stream, calling fn on the Events of the
// Aggregate Root. It returns the last event number of the Event Stream
// and the number of Events owned by the Aggregate Root.
func (r *Repository[I, T]) scan(
	ctx context.Context,
	streamID, rootID string,
	fn func(event.Persisted) error,
) (version.EventNumber, int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan event.Persisted, 1)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := r.store.ReadStream(ctx, events, streamID, 0); err != nil {
			return fmt.Errorf("aggregate.Repository: failed while reading event stream, %w", err)
		}

		return nil
	})

	last, owned := version.NoEventNumber, int64(0)

	for evt := range events {
		last = evt.EventNumber

		if !r.owns(evt, rootID) {
			continue
		}

		if err := fn(evt); err != nil {
			cancel()
			_ = group.Wait()

			return version.NoEventNumber, 0, err
		}

		owned++
	}

	if err := group.Wait(); err != nil {
		return version.NoEventNumber, 0, err
	}

	return last, owned, nil
}

func (r *Repository[I, T]) owns(evt event.Persisted, rootID string) bool {
	id, _ := evt.Metadata.Get(IDKey)
	typ, _ := evt.Metadata.Get(TypeKey)

	return id == rootID && typ == r.typ.Name
}
