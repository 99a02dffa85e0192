package correlation_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/go-eventstore/correlation"
	"github.com/get-eventually/go-eventstore/event"
	"github.com/get-eventually/go-eventstore/inmemory"
	"github.com/get-eventually/go-eventstore/message"
	"github.com/get-eventually/go-eventstore/version"
)

type stringPayload string

func (stringPayload) Name() string { return "string_payload" }

func sequence() correlation.Generator {
	var n int

	return func() string {
		n++
		return "id-" + strconv.Itoa(n)
	}
}

func read(t *testing.T, store event.Reader, streamID string) []event.Persisted {
	t.Helper()

	events, err := event.StreamToSlice(context.Background(), func(ctx context.Context, stream event.Stream) error {
		return store.ReadStream(ctx, stream, streamID, 0)
	})
	require.NoError(t, err)

	return events
}

func TestAppender(t *testing.T) {
	ctx := context.Background()
	eventStore := inmemory.NewEventStore()
	appender := correlation.Appender{Appender: eventStore, Generator: sequence()}

	_, err := appender.Append(ctx, "correlated", version.Any,
		event.Envelope{Message: stringPayload("first")},
		event.Envelope{Message: stringPayload("second"), Metadata: message.Metadata{event.IDKey: "custom"}},
	)
	require.NoError(t, err)

	events := read(t, eventStore, "correlated")
	require.Len(t, events, 2)

	correlation1, causation1 := correlation.IDs(events[0].Metadata)
	correlation2, causation2 := correlation.IDs(events[1].Metadata)

	assert.Equal(t, "id-1", correlation1)
	assert.Equal(t, correlation1, correlation2)
	assert.Equal(t, correlation1, causation1)
	assert.Equal(t, causation1, causation2)

	id1, _ := events[0].Metadata.Get(event.IDKey)
	id2, _ := events[1].Metadata.Get(event.IDKey)

	assert.Equal(t, "id-2", id1)
	assert.Equal(t, "custom", id2)

	t.Run("ids from the context take precedence", func(t *testing.T) {
		ctx := correlation.WithCorrelationID(ctx, "request")
		ctx = correlation.WithCausationID(ctx, "command")

		_, err := appender.Append(ctx, "from-context", version.Any, event.Envelope{Message: stringPayload("third")})
		require.NoError(t, err)

		correlationID, causationID := correlation.IDs(read(t, eventStore, "from-context")[0].Metadata)
		assert.Equal(t, "request", correlationID)
		assert.Equal(t, "command", causationID)
	})

	t.Run("input metadata is left untouched", func(t *testing.T) {
		metadata := message.Metadata{"Key": "value"}

		_, err := appender.Append(ctx, "untouched", version.Any, event.Envelope{
			Message:  stringPayload("fourth"),
			Metadata: metadata,
		})
		require.NoError(t, err)

		assert.Equal(t, message.Metadata{"Key": "value"}, metadata)
	})
}

func TestProcessor(t *testing.T) {
	ctx := context.Background()
	eventStore := inmemory.NewEventStore()
	appender := correlation.Appender{Appender: eventStore}

	// Events appended while processing are correlated to the processed one.
	processor := correlation.Processor{Processor: event.ProcessorFunc(
		func(ctx context.Context, evt event.Persisted) error {
			_, err := appender.Append(ctx, "reactions", version.Any, event.Envelope{Message: stringPayload("reaction")})
			return err
		},
	)}

	cause := event.Persisted{
		Envelope: event.Envelope{
			Message: stringPayload("cause"),
			Metadata: message.Metadata{
				event.IDKey:                  "cause-id",
				correlation.CorrelationIDKey: "request-id",
			},
		},
		StreamID: "causes",
	}

	require.NoError(t, processor.Process(ctx, cause))

	reactions := read(t, eventStore, "reactions")
	require.Len(t, reactions, 1)

	correlationID, causationID := correlation.IDs(reactions[0].Metadata)
	assert.Equal(t, "request-id", correlationID)
	assert.Equal(t, "cause-id", causationID)

	t.Run("missing ids leave the context untouched", func(t *testing.T) {
		processor := correlation.Processor{Processor: event.ProcessorFunc(
			func(ctx context.Context, _ event.Persisted) error {
				_, ok := correlation.CorrelationID(ctx)
				assert.False(t, ok)

				_, ok = correlation.CausationID(ctx)
				assert.False(t, ok)

				return nil
			},
		)}

		require.NoError(t, processor.Process(ctx, event.Persisted{
			Envelope: event.Envelope{Message: stringPayload("plain")},
		}))
	})
}
