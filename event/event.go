// Package event contains the Domain Event types and the Event Store ports
// used by the rest of the module: appending to, reading from and tracking
// the tail of Event Streams.
package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/get-eventually/go-eventstore"
	"github.com/get-eventually/go-eventstore/message"
	"github.com/get-eventually/go-eventstore/version"
)

// Metadata keys set by the Event Store backends on every appended Event.
const (
	IDKey         = "Event-Id"
	RecordedAtKey = "Recorded-At"
)

// Event is a Message representing some Domain information that has happened
// in the past, which is of vital information to the Domain itself.
//
// Event type names should be phrased in the past tense, to enforce the notion
// of "information happened in the past".
type Event = message.Message

// Envelope contains a Domain Event and possible metadata associated to it.
type Envelope = message.Envelope

// Persisted represents an Domain Event that has been persisted into the Event Store.
type Persisted struct {
	Envelope

	StreamID       string
	EventNumber    version.EventNumber
	CommitPosition version.CommitPosition
}

// Position returns the version.Position of the Persisted event.
func (p Persisted) Position() version.Position {
	return version.Position{
		CommitPosition: p.CommitPosition,
		EventNumber:    p.EventNumber,
	}
}

// ValidateStreamID returns an error if the provided Event Stream id
// cannot be used to address a physical Event Stream.
func ValidateStreamID(streamID string) error {
	if strings.TrimSpace(streamID) == "" {
		return fmt.Errorf("event: invalid stream id %q, %w", streamID, eventstore.ErrInvalidArgument)
	}

	return nil
}

// Stamp returns a copy of the provided Envelope with the metadata every
// backend records on append: a unique Event-Id (if not already present)
// and the Recorded-At time in RFC3339 format.
func Stamp(evt Envelope, id string, recordedAt time.Time) Envelope {
	metadata := evt.Metadata.Clone()

	if _, ok := metadata.Get(IDKey); !ok {
		metadata = metadata.With(IDKey, id)
	}

	evt.Metadata = metadata.With(RecordedAtKey, recordedAt.UTC().Format(time.RFC3339Nano))

	return evt
}
