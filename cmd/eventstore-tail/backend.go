package main

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/get-eventually/go-eventstore/config"
	"github.com/get-eventually/go-eventstore/event"
	eventstorefirestore "github.com/get-eventually/go-eventstore/firestore"
	"github.com/get-eventually/go-eventstore/inmemory"
	"github.com/get-eventually/go-eventstore/internal/account"
	"github.com/get-eventually/go-eventstore/logger"
	"github.com/get-eventually/go-eventstore/postgres"
	"github.com/get-eventually/go-eventstore/subscription"
	"github.com/get-eventually/go-eventstore/subscription/checkpoint"
)

// backend groups the ports of the configured Event Store.
type backend struct {
	store        event.Store
	positions    event.PositionReader
	subscriber   subscription.Subscriber
	checkpointer checkpoint.Checkpointer
	close        func()
}

type pushStore interface {
	event.Store
	event.PositionReader
	subscription.Subscriber
}

func newBackend(store pushStore, checkpointer checkpoint.Checkpointer, closer func()) *backend {
	return &backend{
		store:        store,
		positions:    store,
		subscriber:   store,
		checkpointer: checkpointer,
		close:        closer,
	}
}

func openBackend(ctx context.Context, cfg config.EventStoreConfig, log logger.Logger) (*backend, error) {
	registry := account.NewRegistry()

	switch cfg.Backend {
	case config.BackendPostgres:
		if err := postgres.RunMigrations(cfg.Postgres.DSN); err != nil {
			return nil, fmt.Errorf("eventstore-tail: failed to run migrations, %w", err)
		}

		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("eventstore-tail: failed to connect to postgres, %w", err)
		}

		store := postgres.NewEventStore(pool, registry,
			postgres.WithNotifyChannel(cfg.Postgres.NotifyChannel),
			postgres.WithLogger(log),
		)

		return newBackend(store, postgres.NewCheckpointer(pool), pool.Close), nil

	case config.BackendFirestore:
		client, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("eventstore-tail: failed to connect to firestore, %w", err)
		}

		store := eventstorefirestore.NewEventStore(client, registry, eventstorefirestore.WithLogger(log))

		return newBackend(store, eventstorefirestore.NewCheckpointer(client), func() {
			if err := client.Close(); err != nil {
				logger.Error(log, "failed to close firestore client", logger.WithError(err))
			}
		}), nil

	default:
		return newBackend(inmemory.NewEventStore(), checkpoint.NewInMemory(), func() {}), nil
	}
}
