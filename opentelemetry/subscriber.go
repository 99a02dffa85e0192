package opentelemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/get-eventually/go-eventstore/event"
	"github.com/get-eventually/go-eventstore/subscription"
	"github.com/get-eventually/go-eventstore/version"
)

var _ subscription.Subscriber = &InstrumentedSubscriber{}

// InstrumentedSubscriber is a wrapper type over a subscription.Subscriber
// tracing the opening of Subscriptions and the processing of every
// delivered Event.
type InstrumentedSubscriber struct {
	subscriber subscription.Subscriber

	tracer             trace.Tracer
	processed          metric.Int64Counter
	processingDuration metric.Int64Histogram
}

// NewInstrumentedSubscriber returns a wrapper type to provide OpenTelemetry
// instrumentation (metrics and traces) around a subscription.Subscriber.
//
// An error is returned if metrics could not be registered.
func NewInstrumentedSubscriber(
	subscriber subscription.Subscriber,
	options ...Option,
) (*InstrumentedSubscriber, error) {
	cfg := newConfig(options...)
	meter := cfg.meter()

	is := &InstrumentedSubscriber{
		subscriber: subscriber,
		tracer:     cfg.tracer(),
	}

	var err error

	if is.processed, err = meter.Int64Counter(
		"eventstore.subscription.events",
		metric.WithDescription("Number of Domain Events delivered to Subscription processors."),
	); err != nil {
		return nil, fmt.Errorf("opentelemetry.InstrumentedSubscriber: failed to register metric, %w", err)
	}

	if is.processingDuration, err = meter.Int64Histogram(
		"eventstore.subscription.processing.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Duration in milliseconds of the processing of a delivered Domain Event."),
	); err != nil {
		return nil, fmt.Errorf("opentelemetry.InstrumentedSubscriber: failed to register metric, %w", err)
	}

	return is, nil
}

// Subscribe calls the wrapped subscription.Subscriber.Subscribe method,
// instrumenting the provided processor.
func (is *InstrumentedSubscriber) Subscribe(
	ctx context.Context,
	streamID string,
	from version.Position,
	processor event.Processor,
) (sub subscription.Subscription, err error) {
	// The Subscription outlives this span, so its context is not propagated.
	_, span := is.tracer.Start(ctx, "subscription.Subscriber.Subscribe", trace.WithAttributes(
		StreamIDKey.String(streamID),
		FromCommitPositionKey.Int64(int64(from.CommitPosition)),
		FromEventNumberKey.Int64(int64(from.EventNumber)),
	))

	defer func() { endSpan(span, err) }()

	return is.subscriber.Subscribe(ctx, streamID, from, event.ProcessorFunc(
		func(ctx context.Context, evt event.Persisted) (err error) {
			ctx, span := is.tracer.Start(ctx, "event.Processor.Process", trace.WithAttributes(
				StreamIDKey.String(evt.StreamID),
				EventNameKey.String(evt.Message.Name()),
				EventNumberKey.Int64(int64(evt.EventNumber)),
				CommitPositionKey.Int64(int64(evt.CommitPosition)),
			))

			start := time.Now()

			defer func() {
				attributes := metric.WithAttributes(
					StreamIDKey.String(evt.StreamID),
					ErrorKey.Bool(err != nil),
				)

				is.processed.Add(ctx, 1, attributes)
				is.processingDuration.Record(ctx, time.Since(start).Milliseconds(), attributes)

				endSpan(span, err)
			}()

			return processor.Process(ctx, evt)
		},
	))
}
