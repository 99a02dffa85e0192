package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/get-eventually/go-eventstore"
	"github.com/get-eventually/go-eventstore/event"
	"github.com/get-eventually/go-eventstore/version"
)

var (
	_ Tracker = &AllStreams{}
	_ Tracker = &SingleStream{}
)

// base holds the state shared by both Subscription variants.
type base struct {
	unsubscriber Unsubscriber

	mx                 sync.RWMutex
	state              State
	lastCommitPosition version.CommitPosition
	err                error

	// driven subscriptions are closed by the end of their delivery loop,
	// standalone ones by Close.
	driven   bool
	done     chan struct{}
	doneOnce sync.Once
}

func (b *base) init(lastCommitPosition version.CommitPosition, unsubscriber Unsubscriber) error {
	if lastCommitPosition < version.NoCommitPosition {
		return fmt.Errorf("subscription: invalid last commit position %d, %w",
			lastCommitPosition, eventstore.ErrInvalidArgument)
	}

	if unsubscriber == nil {
		return fmt.Errorf("subscription: missing unsubscriber, %w", eventstore.ErrInvalidArgument)
	}

	b.unsubscriber = unsubscriber
	b.state = Active
	b.lastCommitPosition = lastCommitPosition
	b.done = make(chan struct{})

	return nil
}

// LastCommitPosition implements the Subscription interface.
func (b *base) LastCommitPosition() version.CommitPosition {
	b.mx.RLock()
	defer b.mx.RUnlock()

	return b.lastCommitPosition
}

// State implements the Subscription interface.
func (b *base) State() State {
	b.mx.RLock()
	defer b.mx.RUnlock()

	return b.state
}

// Close implements the Subscription interface.
//
// The position is never advanced after Close returns, although
// a processor call already in flight is not interrupted.
func (b *base) Close() error {
	b.mx.Lock()
	b.state = Closed
	b.mx.Unlock()

	if !b.driven {
		b.closeDone()
	}

	if err := b.unsubscriber.Unsubscribe(); err != nil {
		return fmt.Errorf("subscription: failed to unsubscribe, %w", err)
	}

	return nil
}

// Done implements the Subscription interface.
func (b *base) Done() <-chan struct{} { return b.done }

// Err implements the Subscription interface.
func (b *base) Err() error {
	b.mx.RLock()
	defer b.mx.RUnlock()

	return b.err
}

// finish marks the end of the delivery loop driving the Subscription.
func (b *base) finish(err error) {
	if errors.Is(err, ErrClosed) || errors.Is(err, context.Canceled) {
		err = nil
	}

	b.mx.Lock()
	b.state = Closed
	b.err = err
	b.mx.Unlock()

	b.closeDone()
}

func (b *base) closeDone() {
	b.doneOnce.Do(func() { close(b.done) })
}

// advance must be called with the write lock held.
func (b *base) advance(commitPosition version.CommitPosition) error {
	if b.state == Closed {
		return ErrClosed
	}

	if commitPosition < b.lastCommitPosition {
		return fmt.Errorf("subscription: commit position %d is behind %d, %w",
			commitPosition, b.lastCommitPosition, ErrPositionRegressed)
	}

	return nil
}

// AllStreams is a Subscription to the feed of all Event Streams,
// which only records the global commit position.
type AllStreams struct {
	base
}

// NewAllStreams returns a new Active Subscription to all Event Streams.
func NewAllStreams(lastCommitPosition version.CommitPosition, unsubscriber Unsubscriber) (*AllStreams, error) {
	s := new(AllStreams)
	if err := s.init(lastCommitPosition, unsubscriber); err != nil {
		return nil, err
	}

	return s, nil
}

// StreamID is always empty for an AllStreams subscription.
func (*AllStreams) StreamID() string { return "" }

// IsSubscribedToAll is always true for an AllStreams subscription.
func (*AllStreams) IsSubscribedToAll() bool { return true }

// LastEventNumber is always absent for an AllStreams subscription.
func (*AllStreams) LastEventNumber() (version.EventNumber, bool) {
	return version.NoEventNumber, false
}

// Track records the commit position of the provided Event.
func (s *AllStreams) Track(evt event.Persisted) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	if err := s.advance(evt.CommitPosition); err != nil {
		return fmt.Errorf("subscription.AllStreams: failed to track event, %w", err)
	}

	s.lastCommitPosition = evt.CommitPosition

	return nil
}

// SingleStream is a Subscription to a single Event Stream, recording both
// the global commit position and the event number within the stream.
type SingleStream struct {
	base

	streamID        string
	lastEventNumber version.EventNumber
}

// NewSingleStream returns a new Active Subscription to the specified Event Stream.
func NewSingleStream(
	streamID string,
	lastCommitPosition version.CommitPosition,
	lastEventNumber version.EventNumber,
	unsubscriber Unsubscriber,
) (*SingleStream, error) {
	if streamID == "" {
		return nil, fmt.Errorf("subscription.NewSingleStream: empty stream id, %w", eventstore.ErrInvalidArgument)
	}

	if lastEventNumber < version.NoEventNumber {
		return nil, fmt.Errorf("subscription.NewSingleStream: invalid last event number %d, %w",
			lastEventNumber, eventstore.ErrInvalidArgument)
	}

	s := &SingleStream{
		streamID:        streamID,
		lastEventNumber: lastEventNumber,
	}

	if err := s.init(lastCommitPosition, unsubscriber); err != nil {
		return nil, err
	}

	return s, nil
}

// StreamID returns the id of the subscribed Event Stream.
func (s *SingleStream) StreamID() string { return s.streamID }

// IsSubscribedToAll is always false for a SingleStream subscription.
func (*SingleStream) IsSubscribedToAll() bool { return false }

// LastEventNumber returns the event number of the last Event tracked.
func (s *SingleStream) LastEventNumber() (version.EventNumber, bool) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	return s.lastEventNumber, true
}

// Track records the commit position and the event number of the provided Event,
// which must belong to the subscribed Event Stream.
func (s *SingleStream) Track(evt event.Persisted) error {
	if evt.StreamID != s.streamID {
		return fmt.Errorf("subscription.SingleStream: event of stream %q tracked on stream %q, %w",
			evt.StreamID, s.streamID, eventstore.ErrInvalidArgument)
	}

	s.mx.Lock()
	defer s.mx.Unlock()

	if err := s.advance(evt.CommitPosition); err != nil {
		return fmt.Errorf("subscription.SingleStream: failed to track event, %w", err)
	}

	if evt.EventNumber < s.lastEventNumber {
		return fmt.Errorf("subscription.SingleStream: event number %d is behind %d, %w",
			evt.EventNumber, s.lastEventNumber, ErrPositionRegressed)
	}

	s.lastCommitPosition = evt.CommitPosition
	s.lastEventNumber = evt.EventNumber

	return nil
}

// New returns the Subscription variant matching the provided stream id:
// an AllStreams subscription if empty, a SingleStream one otherwise.
//
// The last event number must be nil exactly when the stream id is empty.
func New(
	streamID string,
	lastCommitPosition version.CommitPosition,
	lastEventNumber *version.EventNumber,
	unsubscriber Unsubscriber,
) (Tracker, error) {
	switch {
	case streamID == "" && lastEventNumber != nil:
		return nil, fmt.Errorf("subscription.New: event number set on an all-streams subscription, %w",
			eventstore.ErrInvalidArgument)

	case streamID == "":
		return NewAllStreams(lastCommitPosition, unsubscriber)

	case lastEventNumber == nil:
		return nil, fmt.Errorf("subscription.New: missing event number for stream %q, %w",
			streamID, eventstore.ErrInvalidArgument)

	default:
		return NewSingleStream(streamID, lastCommitPosition, *lastEventNumber, unsubscriber)
	}
}
