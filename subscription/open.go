package subscription

import (
	"context"
	"fmt"

	"github.com/get-eventually/go-eventstore/event"
	"github.com/get-eventually/go-eventstore/version"
)

// Loop is a backend delivery loop, pushing Events to a Subscription
// until the context is canceled or an error occurs.
type Loop func(ctx context.Context, sub Tracker) error

type drivenTracker interface {
	Tracker
	markDriven()
	finish(err error)
}

func (b *base) markDriven() { b.driven = true }

// track returns the Subscription variant for the stream id: both variants
// can be driven by a delivery loop.
func track(streamID string, from version.Position, unsubscriber Unsubscriber) (drivenTracker, error) {
	if streamID == "" {
		return NewAllStreams(from.CommitPosition, unsubscriber)
	}

	return NewSingleStream(streamID, from.CommitPosition, from.EventNumber, unsubscriber)
}

// Open creates the Subscription variant for the provided stream id, starting
// after the specified position, and runs the delivery loop in a new goroutine.
//
// Closing the Subscription cancels the context passed to the loop.
// The Subscription Done channel is closed once the loop has returned.
func Open(ctx context.Context, streamID string, from version.Position, loop Loop) (Subscription, error) {
	if err := from.Validate(); err != nil {
		return nil, fmt.Errorf("subscription.Open: invalid starting position, %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)

	unsubscriber := UnsubscribeFunc(func() error {
		cancel()
		return nil
	})

	sub, err := track(streamID, from, unsubscriber)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscription.Open: failed to create subscription, %w", err)
	}

	sub.markDriven()

	go func() {
		defer cancel()
		sub.finish(loop(ctx, sub))
	}()

	return sub, nil
}

// Deliver pushes an Event to the processor and tracks its position.
//
// Events at or before the current position of the Subscription
// are skipped. ErrClosed is returned if the Subscription is closed.
func Deliver(ctx context.Context, sub Tracker, processor event.Processor, evt event.Persisted) error {
	if seen(sub, evt) {
		return nil
	}

	if sub.State() == Closed {
		return ErrClosed
	}

	if err := processor.Process(ctx, evt); err != nil {
		return fmt.Errorf("subscription.Deliver: failed to process event %d of stream %q, %w",
			evt.EventNumber, evt.StreamID, err)
	}

	if err := sub.Track(evt); err != nil {
		return fmt.Errorf("subscription.Deliver: failed to track event, %w", err)
	}

	return nil
}

func seen(sub Subscription, evt event.Persisted) bool {
	if lastEventNumber, ok := sub.LastEventNumber(); ok {
		return evt.EventNumber <= lastEventNumber
	}

	return evt.CommitPosition <= sub.LastCommitPosition()
}
