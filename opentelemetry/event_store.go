package opentelemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/get-eventually/go-eventstore/event"
	"github.com/get-eventually/go-eventstore/version"
)

var _ event.Store = &InstrumentedEventStore{}

// InstrumentedEventStore is a wrapper type over an event.Store
// instance to provide instrumentation, in the form of metrics and traces
// using OpenTelemetry.
//
// Use NewInstrumentedEventStore for constructing a new instance of this type.
type InstrumentedEventStore struct {
	store event.Store

	tracer         trace.Tracer
	appendDuration metric.Int64Histogram
	readDuration   metric.Int64Histogram
	eventsAppended metric.Int64Counter
}

// NewInstrumentedEventStore returns a wrapper type to provide OpenTelemetry
// instrumentation (metrics and traces) around an event.Store.
//
// An error is returned if metrics could not be registered.
func NewInstrumentedEventStore(store event.Store, options ...Option) (*InstrumentedEventStore, error) {
	cfg := newConfig(options...)
	meter := cfg.meter()

	ies := &InstrumentedEventStore{
		store:  store,
		tracer: cfg.tracer(),
	}

	var err error

	if ies.appendDuration, err = meter.Int64Histogram(
		"eventstore.append.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Duration in milliseconds of event.Store.Append operations performed."),
	); err != nil {
		return nil, fmt.Errorf("opentelemetry.InstrumentedEventStore: failed to register metric, %w", err)
	}

	if ies.readDuration, err = meter.Int64Histogram(
		"eventstore.read.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Duration in milliseconds of event.Store read operations performed."),
	); err != nil {
		return nil, fmt.Errorf("opentelemetry.InstrumentedEventStore: failed to register metric, %w", err)
	}

	if ies.eventsAppended, err = meter.Int64Counter(
		"eventstore.append.events",
		metric.WithDescription("Number of Domain Events appended to the Event Store."),
	); err != nil {
		return nil, fmt.Errorf("opentelemetry.InstrumentedEventStore: failed to register metric, %w", err)
	}

	return ies, nil
}

// Append calls the wrapped event.Store.Append method and records metrics and traces around it.
func (ies *InstrumentedEventStore) Append(
	ctx context.Context,
	streamID string,
	expected version.Check,
	events ...event.Envelope,
) (last version.EventNumber, err error) {
	ctx, span := ies.tracer.Start(ctx, "event.Store.Append", trace.WithAttributes(
		StreamIDKey.String(streamID),
		expectedEventNumber(expected),
		NumEventsKey.Int(len(events)),
	))

	defer ies.observe(ctx, span, ies.appendDuration, time.Now(), &err)

	if last, err = ies.store.Append(ctx, streamID, expected, events...); err == nil {
		ies.eventsAppended.Add(ctx, int64(len(events)), metric.WithAttributes(StreamIDKey.String(streamID)))
	}

	return last, err
}

// ReadStream calls the wrapped event.Store.ReadStream method and records metrics and traces around it.
func (ies *InstrumentedEventStore) ReadStream(
	ctx context.Context,
	stream event.Stream,
	streamID string,
	from version.EventNumber,
) (err error) {
	ctx, span := ies.tracer.Start(ctx, "event.Store.ReadStream", trace.WithAttributes(
		StreamIDKey.String(streamID),
		FromEventNumberKey.Int64(int64(from)),
	))

	defer ies.observe(ctx, span, ies.readDuration, time.Now(), &err)

	return ies.store.ReadStream(ctx, stream, streamID, from)
}

// ReadAll calls the wrapped event.Store.ReadAll method and records metrics and traces around it.
func (ies *InstrumentedEventStore) ReadAll(
	ctx context.Context,
	stream event.Stream,
	from version.CommitPosition,
) (err error) {
	ctx, span := ies.tracer.Start(ctx, "event.Store.ReadAll", trace.WithAttributes(
		FromCommitPositionKey.Int64(int64(from)),
	))

	defer ies.observe(ctx, span, ies.readDuration, time.Now(), &err)

	return ies.store.ReadAll(ctx, stream, from)
}

func (ies *InstrumentedEventStore) observe(
	ctx context.Context,
	span trace.Span,
	histogram metric.Int64Histogram,
	start time.Time,
	err *error,
) {
	failed := *err != nil
	histogram.Record(ctx, time.Since(start).Milliseconds(), metric.WithAttributes(ErrorKey.Bool(failed)))

	endSpan(span, *err)
}

func endSpan(span trace.Span, err error, attributes ...attribute.KeyValue) {
	span.SetAttributes(attributes...)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}
