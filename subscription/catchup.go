package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/get-eventually/go-eventstore"
	"github.com/get-eventually/go-eventstore/event"
	"github.com/get-eventually/go-eventstore/logger"
	"github.com/get-eventually/go-eventstore/subscription/checkpoint"
	"github.com/get-eventually/go-eventstore/version"
)

var _ Subscriber = &CatchUp{}

// CatchUp is a named Subscriber that survives restarts, by saving the
// position of every processed Event through a Checkpointer.
//
// When subscribing, the checkpointed position takes precedence over the
// requested one, which is only used the first time the subscription runs.
type CatchUp struct {
	Name         string
	Subscriber   Subscriber
	Checkpointer checkpoint.Checkpointer
	Logger       logger.Logger
}

// Subscribe opens a Subscription through the inner Subscriber, resuming
// from the last checkpoint if one exists.
func (c *CatchUp) Subscribe(
	ctx context.Context,
	streamID string,
	from version.Position,
	processor event.Processor,
) (Subscription, error) {
	position, err := c.Checkpointer.Read(ctx, c.Name)

	switch {
	case errors.Is(err, eventstore.ErrNotFound):
		position = from
	case err != nil:
		return nil, fmt.Errorf("subscription.CatchUp: failed to read checkpoint, %w", err)
	}

	logger.Info(c.Logger, "catch-up subscription is starting up",
		logger.With("subscription", c.Name),
		logger.With("streamId", streamID),
		logger.With("commitPosition", position.CommitPosition),
		logger.With("eventNumber", position.EventNumber),
	)

	sub, err := c.Subscriber.Subscribe(ctx, streamID, position, event.ProcessorFunc(
		func(ctx context.Context, evt event.Persisted) error {
			if err := processor.Process(ctx, evt); err != nil {
				return err
			}

			if err := c.Checkpointer.Write(ctx, c.Name, evt.Position()); err != nil {
				logger.Error(c.Logger, "failed to write checkpoint",
					logger.With("subscription", c.Name),
					logger.WithError(err),
				)

				return fmt.Errorf("subscription.CatchUp: failed to write checkpoint, %w", err)
			}

			return nil
		},
	))
	if err != nil {
		return nil, fmt.Errorf("subscription.CatchUp: failed to subscribe, %w", err)
	}

	return sub, nil
}
