// Package version contains the types used to address Domain Events inside
// an Event Store: the Event Number of an Event in its Event Stream, and the
// Commit Position of an Event in the global log of the Event Store.
package version

import (
	"fmt"

	"github.com/get-eventually/go-eventstore"
)

// EventNumber is the zero-based sequence index of a Domain Event
// inside one specific Event Stream.
type EventNumber int64

// NoEventNumber is the EventNumber sentinel used when no Event
// has been read or written yet in an Event Stream.
const NoEventNumber EventNumber = -1

// CommitPosition is the zero-based, monotonic offset of a Domain Event
// in the global transaction log of an Event Store, spanning all Event Streams.
type CommitPosition int64

// NoCommitPosition is the CommitPosition sentinel meaning "not yet started".
const NoCommitPosition CommitPosition = -1

// Position identifies the last Domain Event seen by a consumer.
//
// EventNumber is only meaningful for consumers of a single Event Stream.
type Position struct {
	CommitPosition CommitPosition
	EventNumber    EventNumber
}

// FromBeginning is the Position that precedes any Domain Event.
var FromBeginning = Position{
	CommitPosition: NoCommitPosition,
	EventNumber:    NoEventNumber,
}

// Validate returns an error if either the CommitPosition or the EventNumber
// fall below their "not yet started" sentinels.
func (p Position) Validate() error {
	if p.CommitPosition < NoCommitPosition {
		return fmt.Errorf("version.Position: commit position must be >= %d, got %d, %w",
			NoCommitPosition, p.CommitPosition, eventstore.ErrInvalidArgument)
	}

	if p.EventNumber < NoEventNumber {
		return fmt.Errorf("version.Position: event number must be >= %d, got %d, %w",
			NoEventNumber, p.EventNumber, eventstore.ErrInvalidArgument)
	}

	return nil
}
