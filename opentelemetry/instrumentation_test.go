package opentelemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/get-eventually/go-eventstore/event"
	"github.com/get-eventually/go-eventstore/inmemory"
	"github.com/get-eventually/go-eventstore/opentelemetry"
	"github.com/get-eventually/go-eventstore/version"
)

type itemWasAdded string

func (itemWasAdded) Name() string { return "item_was_added" }

type telemetry struct {
	spans   *tracetest.SpanRecorder
	metrics *sdkmetric.ManualReader
	options []opentelemetry.Option
}

func newTelemetry() telemetry {
	spans := tracetest.NewSpanRecorder()
	metrics := sdkmetric.NewManualReader()

	return telemetry{
		spans:   spans,
		metrics: metrics,
		options: []opentelemetry.Option{
			opentelemetry.WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))),
			opentelemetry.WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(metrics))),
		},
	}
}

func (tel telemetry) spanNames() []string {
	var names []string
	for _, span := range tel.spans.Ended() {
		names = append(names, span.Name())
	}

	return names
}

func (tel telemetry) metricNames(t *testing.T) map[string]metricdata.Aggregation {
	var rm metricdata.ResourceMetrics
	require.NoError(t, tel.metrics.Collect(context.Background(), &rm))

	result := make(map[string]metricdata.Aggregation)

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			result[m.Name] = m.Data
		}
	}

	return result
}

func TestInstrumentedEventStore(t *testing.T) {
	ctx := context.Background()
	tel := newTelemetry()

	store, err := opentelemetry.NewInstrumentedEventStore(inmemory.NewEventStore(), tel.options...)
	require.NoError(t, err)

	_, err = store.Append(ctx, "cart", version.NoStream,
		event.Envelope{Message: itemWasAdded("apple")},
		event.Envelope{Message: itemWasAdded("pear")},
	)
	require.NoError(t, err)

	_, err = store.Append(ctx, "cart", version.NoStream, event.Envelope{Message: itemWasAdded("kiwi")})
	require.Error(t, err)

	events, err := event.StreamToSlice(ctx, func(ctx context.Context, stream event.Stream) error {
		return store.ReadStream(ctx, stream, "cart", 0)
	})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, err = event.StreamToSlice(ctx, func(ctx context.Context, stream event.Stream) error {
		return store.ReadAll(ctx, stream, 1)
	})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	assert.Equal(t, []string{
		"event.Store.Append",
		"event.Store.Append",
		"event.Store.ReadStream",
		"event.Store.ReadAll",
	}, tel.spanNames())

	failed := tel.spans.Ended()[1]
	assert.NotEmpty(t, failed.Events(), "the conflict error should be recorded")

	metrics := tel.metricNames(t)
	assert.Contains(t, metrics, "eventstore.append.duration")
	assert.Contains(t, metrics, "eventstore.read.duration")

	appended, ok := metrics["eventstore.append.events"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, appended.DataPoints, 1)
	assert.Equal(t, int64(2), appended.DataPoints[0].Value)
}

func TestInstrumentedSubscriber(t *testing.T) {
	ctx := context.Background()
	tel := newTelemetry()
	store := inmemory.NewEventStore()

	subscriber, err := opentelemetry.NewInstrumentedSubscriber(store, tel.options...)
	require.NoError(t, err)

	processed := make(chan event.Persisted, 1)

	sub, err := subscriber.Subscribe(ctx, "", version.FromBeginning, event.ProcessorFunc(
		func(_ context.Context, evt event.Persisted) error {
			if evt.Message == itemWasAdded("broken") {
				return errors.New("broken item")
			}

			processed <- evt

			return nil
		},
	))
	require.NoError(t, err)

	_, err = store.Append(ctx, "cart", version.Any, event.Envelope{Message: itemWasAdded("apple")})
	require.NoError(t, err)

	select {
	case evt := <-processed:
		assert.Equal(t, itemWasAdded("apple"), evt.Message)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not processed in time")
	}

	_, err = store.Append(ctx, "cart", version.Any, event.Envelope{Message: itemWasAdded("broken")})
	require.NoError(t, err)

	select {
	case <-sub.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("subscription did not stop in time")
	}

	require.Error(t, sub.Err())

	assert.Equal(t, []string{
		"subscription.Subscriber.Subscribe",
		"event.Processor.Process",
		"event.Processor.Process",
	}, tel.spanNames())

	counter, ok := tel.metricNames(t)["eventstore.subscription.events"].(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, counter.DataPoints, 2, "one data point for successes, one for failures")
}
