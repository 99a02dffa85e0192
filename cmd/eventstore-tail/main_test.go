package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/go-eventstore"
	"github.com/get-eventually/go-eventstore/config"
	"github.com/get-eventually/go-eventstore/event"
	"github.com/get-eventually/go-eventstore/internal/account"
	"github.com/get-eventually/go-eventstore/logger"
	"github.com/get-eventually/go-eventstore/version"
)

func TestParseParams(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p, err := parseParams()
		require.NoError(t, err)

		assert.Equal(t, fromBeginning, p.From)
		assert.False(t, p.Poll)
	})

	t.Run("aggregate type and stream are mutually exclusive", func(t *testing.T) {
		t.Setenv("TAIL_AGGREGATE_TYPE", "account")
		t.Setenv("TAIL_STREAM", "accounts")

		_, err := parseParams()
		assert.ErrorIs(t, err, eventstore.ErrInvalidArgument)
	})

	t.Run("unsupported starting point", func(t *testing.T) {
		t.Setenv("TAIL_FROM", "yesterday")

		_, err := parseParams()
		assert.ErrorIs(t, err, eventstore.ErrInvalidArgument)
	})
}

func TestStreamID(t *testing.T) {
	cfg, err := config.Parse([]byte(`
event_store:
  aggregate_type_stream_map:
    account: bank_accounts
  fallback:
    strategy: none
`))
	require.NoError(t, err)

	id, err := streamID(&params{AggregateType: "account"}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "bank_accounts", id)

	id, err = streamID(&params{Stream: "explicit"}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "explicit", id)

	_, err = streamID(&params{AggregateType: "invoice"}, cfg)
	assert.ErrorIs(t, err, eventstore.ErrNotFound)
}

func TestSubscriber(t *testing.T) {
	ctx := context.Background()
	log := logger.NewTest(t)

	b, err := openBackend(ctx, config.EventStoreConfig{Backend: config.BackendInMemory}, log)
	require.NoError(t, err)

	defer b.close()

	_, err = b.store.Append(ctx, "bank_accounts", version.Any,
		event.Envelope{Message: &account.WasOpened{ID: "1", Owner: "John Doe"}},
		event.Envelope{Message: &account.MoneyWasDeposited{Amount: 10}},
	)
	require.NoError(t, err)

	s, err := subscriber(&params{Subscription: "tail", From: fromBeginning, Poll: true}, b, log)
	require.NoError(t, err)

	received := make(chan event.Persisted, 4)

	sub, err := s.Subscribe(ctx, "bank_accounts", version.FromBeginning, event.ProcessorFunc(
		func(ctx context.Context, evt event.Persisted) error {
			received <- evt
			return printer(log).Process(ctx, evt)
		},
	))
	require.NoError(t, err)

	for i := range 2 {
		select {
		case evt := <-received:
			assert.Equal(t, version.EventNumber(i), evt.EventNumber)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}

	require.NoError(t, sub.Close())
	<-sub.Done()

	position, err := b.checkpointer.Read(ctx, "tail")
	require.NoError(t, err)
	assert.Equal(t, version.EventNumber(1), position.EventNumber)
}

func TestSubscriber_LatestResumesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	log := logger.NewTest(t)

	b, err := openBackend(ctx, config.EventStoreConfig{Backend: config.BackendInMemory}, log)
	require.NoError(t, err)

	defer b.close()

	_, err = b.store.Append(ctx, "bank_accounts", version.Any,
		event.Envelope{Message: &account.WasOpened{ID: "1", Owner: "John Doe"}},
		event.Envelope{Message: &account.MoneyWasDeposited{Amount: 10}},
		event.Envelope{Message: &account.MoneyWasDeposited{Amount: 20}},
	)
	require.NoError(t, err)

	p := &params{Subscription: "tail", From: fromLatest}

	from, err := start(ctx, p, b, "bank_accounts")
	require.NoError(t, err)
	assert.Equal(t, version.EventNumber(2), from.EventNumber)

	require.NoError(t, b.checkpointer.Write(ctx, "tail", version.Position{CommitPosition: 0, EventNumber: 0}))

	s, err := subscriber(p, b, log)
	require.NoError(t, err)

	received := make(chan event.Persisted, 4)

	sub, err := s.Subscribe(ctx, "bank_accounts", from, event.ProcessorFunc(
		func(_ context.Context, evt event.Persisted) error {
			received <- evt
			return nil
		},
	))
	require.NoError(t, err)

	for _, expected := range []version.EventNumber{1, 2} {
		select {
		case evt := <-received:
			assert.Equal(t, expected, evt.EventNumber)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for event %d", expected)
		}
	}

	require.NoError(t, sub.Close())
	<-sub.Done()

	position, err := b.checkpointer.Read(ctx, "tail")
	require.NoError(t, err)
	assert.Equal(t, version.EventNumber(2), position.EventNumber)
}

func TestStart(t *testing.T) {
	ctx := context.Background()

	b, err := openBackend(ctx, config.EventStoreConfig{Backend: config.BackendInMemory}, logger.NewTest(t))
	require.NoError(t, err)

	defer b.close()

	_, err = b.store.Append(ctx, "bank_accounts", version.Any,
		event.Envelope{Message: &account.WasOpened{ID: "1", Owner: "John Doe"}})
	require.NoError(t, err)

	from, err := start(ctx, &params{From: fromLatest}, b, "bank_accounts")
	require.NoError(t, err)
	assert.Equal(t, version.FromBeginning, from, "unnamed subscriptions skip to the tail through Volatile")

	from, err = start(ctx, &params{Subscription: "tail", From: fromBeginning}, b, "bank_accounts")
	require.NoError(t, err)
	assert.Equal(t, version.FromBeginning, from)
}
