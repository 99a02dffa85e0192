package correlation

import (
	"context"

	"github.com/google/uuid"

	"github.com/get-eventually/go-eventstore/event"
	"github.com/get-eventually/go-eventstore/version"
)

var _ event.Appender = Appender{}

// Generator returns a new unique id.
type Generator func() string

// Appender is an event.Appender wrapper that records Event, Correlation
// and Causation ids in the Metadata of every appended Domain Event.
//
// Ids are taken from the context when present. Otherwise a new id is
// generated for the append, used both as Correlation and Causation id.
type Appender struct {
	Appender  event.Appender
	Generator Generator
}

func (a Appender) generate() string {
	if a.Generator == nil {
		return uuid.NewString()
	}

	return a.Generator()
}

// Append forwards the correlated Domain Events to the wrapped event.Appender.
func (a Appender) Append(
	ctx context.Context,
	streamID string,
	expected version.Check,
	events ...event.Envelope,
) (version.EventNumber, error) {
	causeID := a.generate()

	correlationID, ok := CorrelationID(ctx)
	if !ok {
		correlationID = causeID
	}

	causationID, ok := CausationID(ctx)
	if !ok {
		causationID = causeID
	}

	correlated := make([]event.Envelope, 0, len(events))

	for _, evt := range events {
		metadata := evt.Metadata.Clone()

		if _, ok := metadata.Get(event.IDKey); !ok {
			metadata = metadata.With(event.IDKey, a.generate())
		}

		evt.Metadata = metadata.
			With(CorrelationIDKey, correlationID).
			With(CausationIDKey, causationID)

		correlated = append(correlated, evt)
	}

	return a.Appender.Append(ctx, streamID, expected, correlated...)
}
