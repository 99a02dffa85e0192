package event

import (
	"context"
	"sync"

	"github.com/get-eventually/go-eventstore/version"
)

// TrackingStore is an Event Store wrapper to track the Events
// committed to the inner Event Store.
//
// Useful for tests assertion.
type TrackingStore struct {
	Appender

	mx       sync.RWMutex
	recorded []Persisted
}

// NewTrackingStore wraps an Event Store to capture events that get
// appended to it.
func NewTrackingStore(appender Appender) *TrackingStore {
	return &TrackingStore{Appender: appender}
}

// Recorded returns a copy of the Events that have been appended
// to the Event Store through this wrapper.
//
// Please note: these events do not record the Commit Position assigned by
// the Event Store. Usually you should not need it in test assertions, since
// the order of Events in the returned slice always follows the order
// of the Append calls.
func (es *TrackingStore) Recorded() []Persisted {
	es.mx.RLock()
	defer es.mx.RUnlock()

	recorded := make([]Persisted, len(es.recorded))
	copy(recorded, es.recorded)

	return recorded
}

// Append forwards the call to the wrapped Event Store instance and,
// if the operation concludes successfully, records these events internally.
func (es *TrackingStore) Append(
	ctx context.Context,
	streamID string,
	expected version.Check,
	events ...Envelope,
) (version.EventNumber, error) {
	es.mx.Lock()
	defer es.mx.Unlock()

	last, err := es.Appender.Append(ctx, streamID, expected, events...)
	if err != nil {
		return last, err
	}

	first := last - version.EventNumber(len(events)) + 1

	for i, evt := range events {
		es.recorded = append(es.recorded, Persisted{
			Envelope:       evt,
			StreamID:       streamID,
			EventNumber:    first + version.EventNumber(i),
			CommitPosition: version.NoCommitPosition,
		})
	}

	return last, nil
}
