// Package inmemory provides a thread-safe, in-memory Event Store
// supporting push-based Subscriptions. Useful for tests and prototypes.
package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/get-eventually/go-eventstore/event"
	"github.com/get-eventually/go-eventstore/subscription"
	"github.com/get-eventually/go-eventstore/version"
)

var (
	_ event.Store             = &EventStore{}
	_ event.PositionReader    = &EventStore{}
	_ subscription.Subscriber = &EventStore{}
)

// EventStore is a thread-safe, in-memory event.Store implementation.
//
// All Events are kept in a single global log, indexed by Event Stream.
// Subscriptions get woken up on every successful Append.
//
// The zero value is an empty EventStore ready to use.
type EventStore struct {
	mx       sync.RWMutex
	log      []event.Persisted
	streams  map[string][]version.CommitPosition
	appended chan struct{}

	now func() time.Time
}

// NewEventStore creates a new, empty EventStore.
func NewEventStore() *EventStore {
	return &EventStore{
		streams:  make(map[string][]version.CommitPosition),
		appended: make(chan struct{}),
		now:      time.Now,
	}
}

func contextErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("inmemory.EventStore: context error, %w", err)
	}

	return nil
}

// Append inserts the specified Domain Events at the end of the Event Stream,
// returning the event number of the last Event in the stream.
//
// version.CheckExact can be used to enable an optimistic concurrency check,
// which returns a version.ConflictError if the last event number of the
// Event Stream differs from the expected one.
func (es *EventStore) Append(
	_ context.Context,
	streamID string,
	expected version.Check,
	events ...event.Envelope,
) (version.EventNumber, error) {
	if err := event.ValidateStreamID(streamID); err != nil {
		return version.NoEventNumber, fmt.Errorf("inmemory.EventStore: failed to append events, %w", err)
	}

	es.mx.Lock()
	defer es.mx.Unlock()

	if es.streams == nil {
		es.streams = make(map[string][]version.CommitPosition)
	}

	last := version.EventNumber(len(es.streams[streamID])) - 1

	if err := version.Verify(expected, last); err != nil {
		return last, fmt.Errorf("inmemory.EventStore: failed to append events, %w", err)
	}

	if len(events) == 0 {
		return last, nil
	}

	recordedAt := time.Now()
	if es.now != nil {
		recordedAt = es.now()
	}

	for _, evt := range events {
		last++
		position := version.CommitPosition(len(es.log))

		es.log = append(es.log, event.Persisted{
			Envelope:       event.Stamp(evt, uuid.NewString(), recordedAt),
			StreamID:       streamID,
			EventNumber:    last,
			CommitPosition: position,
		})

		es.streams[streamID] = append(es.streams[streamID], position)
	}

	if es.appended != nil {
		close(es.appended)
	}

	es.appended = make(chan struct{})

	return last, nil
}

// ReadStream streams the Events of the specified Event Stream,
// starting from the provided event number (inclusive).
//
// This call is synchronous and fails only when the context is canceled.
func (es *EventStore) ReadStream(
	ctx context.Context,
	stream event.Stream,
	streamID string,
	from version.EventNumber,
) error {
	defer close(stream)

	return send(ctx, stream, es.streamEvents(streamID, from))
}

// ReadAll streams the Events of all Event Streams in commit order,
// starting from the provided commit position (inclusive).
//
// This call is synchronous and fails only when the context is canceled.
func (es *EventStore) ReadAll(ctx context.Context, stream event.Stream, from version.CommitPosition) error {
	defer close(stream)

	return send(ctx, stream, es.allEvents(from))
}

// LatestPosition returns the position of the last Event in the specified
// Event Stream, or in the whole Event Store if streamID is empty.
func (es *EventStore) LatestPosition(_ context.Context, streamID string) (version.Position, error) {
	es.mx.RLock()
	defer es.mx.RUnlock()

	if streamID == "" {
		return version.Position{
			CommitPosition: version.CommitPosition(len(es.log)) - 1,
			EventNumber:    version.NoEventNumber,
		}, nil
	}

	positions := es.streams[streamID]
	if len(positions) == 0 {
		return version.FromBeginning, nil
	}

	return version.Position{
		CommitPosition: positions[len(positions)-1],
		EventNumber:    version.EventNumber(len(positions)) - 1,
	}, nil
}

// Subscribe opens a Subscription delivering the Events following the provided
// position, first the ones already committed, then every new one as soon
// as it gets appended.
func (es *EventStore) Subscribe(
	ctx context.Context,
	streamID string,
	from version.Position,
	processor event.Processor,
) (subscription.Subscription, error) {
	sub, err := subscription.Open(ctx, streamID, from, func(ctx context.Context, sub subscription.Tracker) error {
		for {
			events, appended := es.pending(sub)

			for _, evt := range events {
				if err := subscription.Deliver(ctx, sub, processor, evt); err != nil {
					return err
				}
			}

			select {
			case <-ctx.Done():
				return contextErr(ctx)
			case <-appended:
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("inmemory.EventStore: failed to subscribe, %w", err)
	}

	return sub, nil
}

// pending returns the Events following the Subscription position,
// together with the channel closed on the next Append.
func (es *EventStore) pending(sub subscription.Subscription) ([]event.Persisted, <-chan struct{}) {
	es.mx.Lock()
	if es.appended == nil {
		es.appended = make(chan struct{})
	}

	appended := es.appended
	es.mx.Unlock()

	if lastEventNumber, ok := sub.LastEventNumber(); ok {
		return es.streamEvents(sub.StreamID(), lastEventNumber+1), appended
	}

	return es.allEvents(sub.LastCommitPosition() + 1), appended
}

func (es *EventStore) streamEvents(streamID string, from version.EventNumber) []event.Persisted {
	es.mx.RLock()
	defer es.mx.RUnlock()

	positions := es.streams[streamID]
	if from < 0 {
		from = 0
	}

	if int(from) >= len(positions) {
		return nil
	}

	events := make([]event.Persisted, 0, len(positions)-int(from))
	for _, position := range positions[from:] {
		events = append(events, clone(es.log[position]))
	}

	return events
}

func (es *EventStore) allEvents(from version.CommitPosition) []event.Persisted {
	es.mx.RLock()
	defer es.mx.RUnlock()

	if from < 0 {
		from = 0
	}

	if int(from) >= len(es.log) {
		return nil
	}

	events := make([]event.Persisted, 0, len(es.log)-int(from))
	for _, evt := range es.log[from:] {
		events = append(events, clone(evt))
	}

	return events
}

func clone(evt event.Persisted) event.Persisted {
	evt.Metadata = evt.Metadata.Clone()
	return evt
}

func send(ctx context.Context, stream event.Stream, events []event.Persisted) error {
	for _, evt := range events {
		select {
		case stream <- evt:
		case <-ctx.Done():
			return contextErr(ctx)
		}
	}

	return nil
}
