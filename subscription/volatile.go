package subscription

import (
	"context"
	"fmt"

	"github.com/get-eventually/go-eventstore/event"
	"github.com/get-eventually/go-eventstore/version"
)

var _ Subscriber = Volatile{}

// Volatile is a Subscriber that only delivers the Events committed after
// the Subscription has been opened, ignoring the requested starting position.
//
// Use this Subscriber for volatile processes, such as projecting
// realtime metrics, or when you're only interested in newer events
// committed to the Event Store.
type Volatile struct {
	Subscriber Subscriber
	Positions  event.PositionReader
}

// Subscribe opens a Subscription starting from the current tail
// of the subscribed Event Stream.
func (v Volatile) Subscribe(
	ctx context.Context,
	streamID string,
	_ version.Position,
	processor event.Processor,
) (Subscription, error) {
	latest, err := v.Positions.LatestPosition(ctx, streamID)
	if err != nil {
		return nil, fmt.Errorf("subscription.Volatile: failed to get latest position, %w", err)
	}

	sub, err := v.Subscriber.Subscribe(ctx, streamID, latest, processor)
	if err != nil {
		return nil, fmt.Errorf("subscription.Volatile: failed to subscribe, %w", err)
	}

	return sub, nil
}
