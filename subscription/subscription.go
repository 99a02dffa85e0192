package subscription

import (
	"context"
	"fmt"

	"github.com/get-eventually/go-eventstore"
	"github.com/get-eventually/go-eventstore/event"
	"github.com/get-eventually/go-eventstore/version"
)

var (
	// ErrClosed is returned when tracking or delivering Events
	// through a Subscription that has been closed.
	ErrClosed = fmt.Errorf("subscription: closed, %w", eventstore.ErrIllegalState)

	// ErrPositionRegressed is returned when tracking an Event that would
	// move the Subscription position backwards.
	ErrPositionRegressed = fmt.Errorf("subscription: position regressed, %w", eventstore.ErrInvalidArgument)
)

// State is the lifecycle state of a Subscription.
type State int

// Possible Subscription states. Active is the only initial state,
// and a Closed Subscription never becomes Active again.
const (
	Active State = iota
	Closed
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Unsubscriber releases the backend resources held by a Subscription.
//
// Backends should make Unsubscribe idempotent, since it is called
// every time the Subscription gets closed.
type Unsubscriber interface {
	Unsubscribe() error
}

// UnsubscribeFunc is a functional Unsubscriber implementation.
type UnsubscribeFunc func() error

// Unsubscribe implements the Unsubscriber interface.
func (fn UnsubscribeFunc) Unsubscribe() error { return fn() }

// Subscription is a consumer position within an Event Stream,
// or within the feed of all Event Streams.
//
// All accessors are safe for concurrent use and valid in any State.
type Subscription interface {
	// StreamID returns the id of the subscribed Event Stream,
	// or an empty string when subscribed to all Event Streams.
	StreamID() string

	// IsSubscribedToAll is true when StreamID is empty.
	IsSubscribedToAll() bool

	// LastCommitPosition returns the commit position of the last Event
	// tracked, or version.NoCommitPosition if none was.
	LastCommitPosition() version.CommitPosition

	// LastEventNumber returns the event number of the last Event tracked
	// in the subscribed Event Stream. It is always absent when
	// subscribed to all Event Streams.
	LastEventNumber() (version.EventNumber, bool)

	// State returns the current lifecycle state.
	State() State

	// Close moves the Subscription to the Closed state and
	// unsubscribes it from the backend.
	Close() error

	// Done is closed when the Subscription stopped receiving Events.
	Done() <-chan struct{}

	// Err returns the error that stopped the Subscription, if any,
	// once Done has been closed.
	Err() error
}

// Tracker is a Subscription whose position can be advanced.
//
// Backends use it to record the Events they deliver.
type Tracker interface {
	Subscription

	// Track advances the Subscription position to the one of
	// the provided Event.
	Track(evt event.Persisted) error
}

// Subscriber opens Subscriptions on an Event Store.
//
// Events following the from position (exclusive) are pushed to the
// processor until the Subscription is closed, the context is canceled
// or the processor fails.
type Subscriber interface {
	Subscribe(
		ctx context.Context,
		streamID string,
		from version.Position,
		processor event.Processor,
	) (Subscription, error)
}
