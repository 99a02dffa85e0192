package event_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/go-eventstore"
	"github.com/get-eventually/go-eventstore/event"
	"github.com/get-eventually/go-eventstore/message"
	"github.com/get-eventually/go-eventstore/version"
)

type testEvent string

func (testEvent) Name() string { return "test_event" }

type appenderFunc func(ctx context.Context, streamID string, expected version.Check, events ...event.Envelope) (version.EventNumber, error)

func (fn appenderFunc) Append(
	ctx context.Context,
	streamID string,
	expected version.Check,
	events ...event.Envelope,
) (version.EventNumber, error) {
	return fn(ctx, streamID, expected, events...)
}

func TestValidateStreamID(t *testing.T) {
	assert.NoError(t, event.ValidateStreamID("orders"))
	assert.ErrorIs(t, event.ValidateStreamID(""), eventstore.ErrInvalidArgument)
	assert.ErrorIs(t, event.ValidateStreamID("  "), eventstore.ErrInvalidArgument)
}

func TestStamp(t *testing.T) {
	now := time.Date(2023, 4, 5, 6, 7, 8, 0, time.FixedZone("CEST", 2*3600))

	t.Run("sets id and recorded time without touching the input", func(t *testing.T) {
		original := event.Envelope{
			Message:  testEvent("a"),
			Metadata: message.Metadata{"Trace-Id": "abc"},
		}

		stamped := event.Stamp(original, "id-1", now)

		id, _ := stamped.Metadata.Get(event.IDKey)
		assert.Equal(t, "id-1", id)

		recordedAt, _ := stamped.Metadata.Get(event.RecordedAtKey)
		assert.Equal(t, "2023-04-05T04:07:08Z", recordedAt)

		traceID, _ := stamped.Metadata.Get("Trace-Id")
		assert.Equal(t, "abc", traceID)

		_, ok := original.Metadata.Get(event.IDKey)
		assert.False(t, ok)
	})

	t.Run("keeps an existing event id", func(t *testing.T) {
		stamped := event.Stamp(event.Envelope{
			Message:  testEvent("a"),
			Metadata: message.Metadata{event.IDKey: "existing"},
		}, "id-2", now)

		id, _ := stamped.Metadata.Get(event.IDKey)
		assert.Equal(t, "existing", id)
	})
}

func TestStreamToSlice(t *testing.T) {
	ctx := context.Background()

	t.Run("collects all streamed events", func(t *testing.T) {
		events, err := event.StreamToSlice(ctx, func(ctx context.Context, stream event.Stream) error {
			defer close(stream)

			for i := 0; i < 3; i++ {
				stream <- event.Persisted{
					Envelope:       event.Envelope{Message: testEvent("a")},
					StreamID:       "test",
					EventNumber:    version.EventNumber(i),
					CommitPosition: version.CommitPosition(i),
				}
			}

			return nil
		})

		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, version.Position{CommitPosition: 2, EventNumber: 2}, events[2].Position())
	})

	t.Run("returns the origin error", func(t *testing.T) {
		expectedErr := errors.New("failed")

		_, err := event.StreamToSlice(ctx, func(ctx context.Context, stream event.Stream) error {
			close(stream)
			return expectedErr
		})

		assert.ErrorIs(t, err, expectedErr)
	})
}

func TestTrackingStore(t *testing.T) {
	ctx := context.Background()
	last := version.NoEventNumber

	store := event.NewTrackingStore(appenderFunc(func(
		_ context.Context,
		streamID string,
		_ version.Check,
		events ...event.Envelope,
	) (version.EventNumber, error) {
		if streamID == "broken" {
			return version.NoEventNumber, errors.New("broken stream")
		}

		last += version.EventNumber(len(events))

		return last, nil
	}))

	n, err := store.Append(ctx, "test", version.Any,
		event.Envelope{Message: testEvent("a")},
		event.Envelope{Message: testEvent("b")},
	)
	require.NoError(t, err)
	assert.Equal(t, version.EventNumber(1), n)

	_, err = store.Append(ctx, "broken", version.Any, event.Envelope{Message: testEvent("c")})
	require.Error(t, err)

	recorded := store.Recorded()
	require.Len(t, recorded, 2)
	assert.Equal(t, testEvent("a"), recorded[0].Message)
	assert.Equal(t, version.EventNumber(0), recorded[0].EventNumber)
	assert.Equal(t, version.EventNumber(1), recorded[1].EventNumber)
	assert.Equal(t, version.NoCommitPosition, recorded[1].CommitPosition)
}
