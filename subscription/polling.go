package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/get-eventually/go-eventstore/event"
	"github.com/get-eventually/go-eventstore/logger"
	"github.com/get-eventually/go-eventstore/version"
)

// Default values used by a Polling subscriber.
const (
	DefaultPollingBufferSize = 48
	DefaultPullInterval      = 100 * time.Millisecond
	DefaultMaxPullInterval   = 1 * time.Second
)

var _ Subscriber = &Polling{}

// Polling is a Subscriber that works with any event.Reader,
// by periodically "pulling" the Events following the Subscription position.
//
// The interval between pulls grows exponentially while no new Events are
// found, and gets reset as soon as the Subscription makes progress.
type Polling struct {
	Reader event.Reader
	Logger logger.Logger

	// PullEvery is the minimum interval between each read call to the Event Store.
	//
	// Defaults to DefaultPullInterval if unspecified or negative value
	// has been provided.
	PullEvery time.Duration

	// MaxInterval is the maximum interval between each read call to the Event Store.
	// Use this value to ensure a specific eventual consistency window.
	//
	// Defaults to DefaultMaxPullInterval if unspecified or negative value
	// has been provided.
	MaxInterval time.Duration

	// BufferSize is the size of buffered channels used as event.Stream
	// when receiving Events from the Event Store.
	//
	// Defaults to DefaultPollingBufferSize if unspecified or a negative
	// value has been provided.
	BufferSize int
}

// Subscribe opens a new Subscription polling the Event Store.
func (p *Polling) Subscribe(
	ctx context.Context,
	streamID string,
	from version.Position,
	processor event.Processor,
) (Subscription, error) {
	sub, err := Open(ctx, streamID, from, func(ctx context.Context, sub Tracker) error {
		return p.run(ctx, sub, processor)
	})
	if err != nil {
		return nil, fmt.Errorf("subscription.Polling: failed to subscribe, %w", err)
	}

	return sub, nil
}

func (p *Polling) run(ctx context.Context, sub Tracker, processor event.Processor) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.pullEvery()
	b.MaxInterval = p.maxInterval()
	b.MaxElapsedTime = 0 // Don't stop the backoff!

	logger.Debug(p.Logger, "polling subscription is starting up",
		logger.With("streamId", sub.StreamID()),
		logger.With("lastCommitPosition", sub.LastCommitPosition()),
		logger.With("initialPullInterval", b.InitialInterval),
		logger.With("maxPullInterval", b.MaxInterval),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-time.After(b.NextBackOff()):
			before := sub.LastCommitPosition()

			if err := p.pull(ctx, sub, processor); err != nil {
				return fmt.Errorf("subscription.Polling: failed while pulling events, %w", err)
			}

			if after := sub.LastCommitPosition(); after > before {
				logger.Debug(p.Logger, "next commit position recorded",
					logger.With("streamId", sub.StreamID()),
					logger.With("commitPosition", after),
				)

				b.Reset()
			}
		}
	}
}

func (p *Polling) pull(ctx context.Context, sub Tracker, processor event.Processor) error {
	stream := make(chan event.Persisted, p.bufferSize())

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if lastEventNumber, ok := sub.LastEventNumber(); ok {
			return p.Reader.ReadStream(ctx, stream, sub.StreamID(), lastEventNumber+1)
		}

		return p.Reader.ReadAll(ctx, stream, sub.LastCommitPosition()+1)
	})

	group.Go(func() error {
		// Keep draining the stream on failure, so that the reader can return.
		var deliverErr error

		for evt := range stream {
			if deliverErr != nil {
				continue
			}

			deliverErr = Deliver(ctx, sub, processor, evt)
		}

		return deliverErr
	})

	return group.Wait()
}

func (p *Polling) pullEvery() time.Duration {
	if p.PullEvery <= 0 {
		return DefaultPullInterval
	}

	return p.PullEvery
}

func (p *Polling) maxInterval() time.Duration {
	if p.MaxInterval <= 0 {
		return DefaultMaxPullInterval
	}

	return p.MaxInterval
}

func (p *Polling) bufferSize() int {
	if p.BufferSize <= 0 {
		return DefaultPollingBufferSize
	}

	return p.BufferSize
}
