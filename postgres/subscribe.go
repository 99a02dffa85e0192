package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/get-eventually/go-eventstore/event"
	"github.com/get-eventually/go-eventstore/logger"
	"github.com/get-eventually/go-eventstore/subscription"
	"github.com/get-eventually/go-eventstore/version"
)

// Subscribe opens a Subscription delivering the Events following the provided
// position. A dedicated connection is taken from the pool to LISTEN
// on the notify channel, and released once the Subscription is closed.
func (es *EventStore) Subscribe(
	ctx context.Context,
	streamID string,
	from version.Position,
	processor event.Processor,
) (subscription.Subscription, error) {
	conn, err := es.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres.EventStore: failed to acquire connection, %w", err)
	}

	channel := pgx.Identifier{es.channel}.Sanitize()

	if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("postgres.EventStore: failed to listen to channel, %w", err)
	}

	sub, err := subscription.Open(ctx, streamID, from, func(ctx context.Context, sub subscription.Tracker) error {
		defer es.release(conn, channel)

		for {
			if err := es.drain(ctx, sub, processor); err != nil {
				return err
			}

			if err := es.wait(ctx, conn, streamID); err != nil {
				return err
			}
		}
	})
	if err != nil {
		es.release(conn, channel)
		return nil, fmt.Errorf("postgres.EventStore: failed to subscribe, %w", err)
	}

	logger.Debug(es.logger, "subscription opened",
		logger.With("streamId", streamID),
		logger.With("commitPosition", from.CommitPosition),
	)

	return sub, nil
}

// wait blocks until a notification relevant for the stream id is received.
func (es *EventStore) wait(ctx context.Context, conn *pgxpool.Conn, streamID string) error {
	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			return fmt.Errorf("postgres.EventStore: failed to wait for notification, %w", err)
		}

		if streamID == "" || notification.Payload == streamID {
			return nil
		}
	}
}

// drain delivers all the committed Events following the Subscription position.
func (es *EventStore) drain(ctx context.Context, sub subscription.Tracker, processor event.Processor) error {
	stream := make(chan event.Persisted, es.bufferSize)
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if streamID := sub.StreamID(); streamID != "" {
			from, _ := sub.LastEventNumber()
			return es.ReadStream(ctx, stream, streamID, from+1)
		}

		return es.ReadAll(ctx, stream, sub.LastCommitPosition()+1)
	})

	group.Go(func() error {
		for evt := range stream {
			if err := subscription.Deliver(ctx, sub, processor, evt); err != nil {
				return err
			}
		}

		return nil
	})

	return group.Wait()
}

func (es *EventStore) release(conn *pgxpool.Conn, channel string) {
	defer conn.Release()

	if conn.Conn().IsClosed() {
		return
	}

	// The subscription context may be canceled already.
	if _, err := conn.Exec(context.Background(), "UNLISTEN "+channel); err != nil {
		logger.Error(es.logger, "failed to unlisten channel", logger.WithError(err))
	}
}
