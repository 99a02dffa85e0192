// Package postgres provides an Event Store backend on PostgreSQL,
// using pgx for connections and LISTEN/NOTIFY to push new Events
// to Subscriptions.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/get-eventually/go-eventstore"
	"github.com/get-eventually/go-eventstore/event"
	"github.com/get-eventually/go-eventstore/logger"
	"github.com/get-eventually/go-eventstore/postgres/internal"
	"github.com/get-eventually/go-eventstore/serde"
	"github.com/get-eventually/go-eventstore/subscription"
	"github.com/get-eventually/go-eventstore/version"
)

var (
	_ event.Store             = &EventStore{}
	_ event.PositionReader    = &EventStore{}
	_ subscription.Subscriber = &EventStore{}
)

// appendLockID is the advisory lock key serializing all appends,
// so that commit positions are gap-free and become visible in order.
const appendLockID int64 = 0x6576656e7473 // "events"

// EventStore is an event.Store implementation targeted to PostgreSQL databases.
//
// The implementation uses the "event_streams" and "events" tables,
// created by RunMigrations. Appends are transactional.
type EventStore struct {
	pool     *pgxpool.Pool
	registry *serde.Registry

	channel    string
	bufferSize int
	logger     logger.Logger
}

// NewEventStore returns a new EventStore using the provided connection pool,
// and the serde.Registry to encode and decode Event payloads.
func NewEventStore(pool *pgxpool.Pool, registry *serde.Registry, options ...Option[*EventStore]) *EventStore {
	es := &EventStore{
		pool:       pool,
		registry:   registry,
		channel:    DefaultNotifyChannel,
		bufferSize: DefaultBufferSize,
	}

	for _, opt := range options {
		opt.apply(es)
	}

	return es
}

type row struct {
	id         uuid.UUID
	name       string
	payload    []byte
	metadata   []byte
	recordedAt time.Time
}

func (es *EventStore) encode(events []event.Envelope) ([]row, error) {
	rows := make([]row, 0, len(events))
	now := time.Now().UTC()

	for _, evt := range events {
		stamped := event.Stamp(evt, uuid.NewString(), now)
		rawID, _ := stamped.Metadata.Get(event.IDKey)

		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("postgres.EventStore: invalid event id %q, %v, %w",
				rawID, err, eventstore.ErrInvalidArgument)
		}

		payload, err := es.registry.Serialize(evt.Message)
		if err != nil {
			return nil, fmt.Errorf("postgres.EventStore: failed to serialize event, %w", err)
		}

		metadata, err := json.Marshal(stamped.Metadata)
		if err != nil {
			return nil, fmt.Errorf("postgres.EventStore: failed to serialize metadata, %w", err)
		}

		rows = append(rows, row{
			id:         id,
			name:       evt.Message.Name(),
			payload:    payload,
			metadata:   metadata,
			recordedAt: now,
		})
	}

	return rows, nil
}

// Append inserts the Domain Events at the end of the Event Stream,
// returning the event number of the last Event in the stream.
//
// version.CheckExact can be used to enable an optimistic concurrency check,
// which returns a version.ConflictError if the last event number of the
// Event Stream differs from the expected one.
func (es *EventStore) Append(
	ctx context.Context,
	streamID string,
	expected version.Check,
	events ...event.Envelope,
) (version.EventNumber, error) {
	if err := event.ValidateStreamID(streamID); err != nil {
		return version.NoEventNumber, fmt.Errorf("postgres.EventStore: failed to append events, %w", err)
	}

	rows, err := es.encode(events)
	if err != nil {
		return version.NoEventNumber, err
	}

	last := version.NoEventNumber

	err = internal.RunTransaction(ctx, es.pool, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	}, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockID); err != nil {
			return fmt.Errorf("failed to acquire append lock, %w", err)
		}

		err := tx.QueryRow(ctx,
			`SELECT last_event_number FROM event_streams WHERE stream_id = $1`,
			streamID,
		).Scan(&last)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to read event stream, %w", err)
		}

		if err := version.Verify(expected, last); err != nil {
			return err
		}

		if len(rows) == 0 {
			return nil
		}

		var position version.CommitPosition
		if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(commit_position), -1) FROM events`).Scan(&position); err != nil {
			return fmt.Errorf("failed to read last commit position, %w", err)
		}

		current := last
		batch := new(pgx.Batch)

		for _, r := range rows {
			last++
			position++

			batch.Queue(
				`INSERT INTO events
				(commit_position, event_id, stream_id, event_number, "type", payload, metadata, recorded_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				position, r.id, streamID, last, r.name, r.payload, r.metadata, r.recordedAt,
			)
		}

		batch.Queue(
			`INSERT INTO event_streams (stream_id, last_event_number, last_commit_position)
			VALUES ($1, $2, $3)
			ON CONFLICT (stream_id) DO
			UPDATE SET last_event_number = $2, last_commit_position = $3`,
			streamID, last, position,
		)

		batch.Queue(`SELECT pg_notify($1, $2)`, es.channel, streamID)

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return conflictOn(err, current)
		}

		return nil
	})
	if err != nil {
		return version.NoEventNumber, fmt.Errorf("postgres.EventStore: failed to append events, %w", err)
	}

	return last, nil
}

// streamEventNumberKey is the unique constraint on (stream_id, event_number).
const streamEventNumberKey = "events_stream_id_event_number_key"

// conflictOn maps violations of the event number uniqueness, which can only
// be caused by concurrent writers bypassing the append lock, to a
// version.ConflictError. Actual is a lower bound of the real last event number.
func conflictOn(err error, current version.EventNumber) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation &&
		pgErr.ConstraintName == streamEventNumberKey {
		return version.ConflictError{Expected: current, Actual: current + 1}
	}

	return fmt.Errorf("failed to insert events, %w", err)
}

// ReadStream streams the Events of the specified Event Stream,
// starting from the provided event number (inclusive).
func (es *EventStore) ReadStream(
	ctx context.Context,
	stream event.Stream,
	streamID string,
	from version.EventNumber,
) error {
	defer close(stream)

	rows, err := es.pool.Query(ctx,
		`SELECT commit_position, stream_id, event_number, "type", payload, metadata
		FROM events
		WHERE stream_id = $1 AND event_number >= $2
		ORDER BY event_number`,
		streamID, from,
	)
	if err != nil {
		return fmt.Errorf("postgres.EventStore: failed to query events table, %w", err)
	}

	return es.send(ctx, stream, rows)
}

// ReadAll streams the Events of all Event Streams in commit order,
// starting from the provided commit position (inclusive).
func (es *EventStore) ReadAll(ctx context.Context, stream event.Stream, from version.CommitPosition) error {
	defer close(stream)

	rows, err := es.pool.Query(ctx,
		`SELECT commit_position, stream_id, event_number, "type", payload, metadata
		FROM events
		WHERE commit_position >= $1
		ORDER BY commit_position`,
		from,
	)
	if err != nil {
		return fmt.Errorf("postgres.EventStore: failed to query events table, %w", err)
	}

	return es.send(ctx, stream, rows)
}

func (es *EventStore) send(ctx context.Context, stream event.Stream, rows pgx.Rows) error {
	var (
		evt      event.Persisted
		name     string
		payload  []byte
		metadata []byte
	)

	_, err := pgx.ForEachRow(rows, []any{
		&evt.CommitPosition, &evt.StreamID, &evt.EventNumber, &name, &payload, &metadata,
	}, func() error {
		msg, err := es.registry.Deserialize(name, payload)
		if err != nil {
			return fmt.Errorf("failed to deserialize event, %w", err)
		}

		evt.Message, evt.Metadata = msg, nil

		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &evt.Metadata); err != nil {
				return fmt.Errorf("failed to deserialize metadata, %w", err)
			}
		}

		select {
		case stream <- evt:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		return fmt.Errorf("postgres.EventStore: failed to read events, %w", err)
	}

	return nil
}

// LatestPosition returns the position of the last Event in the specified
// Event Stream, or in the whole Event Store if streamID is empty.
func (es *EventStore) LatestPosition(ctx context.Context, streamID string) (version.Position, error) {
	if streamID == "" {
		position := version.Position{EventNumber: version.NoEventNumber}

		if err := es.pool.QueryRow(ctx,
			`SELECT COALESCE(MAX(commit_position), -1) FROM events`,
		).Scan(&position.CommitPosition); err != nil {
			return version.FromBeginning, fmt.Errorf("postgres.EventStore: failed to read last commit position, %w", err)
		}

		return position, nil
	}

	var position version.Position

	err := es.pool.QueryRow(ctx,
		`SELECT last_commit_position, last_event_number FROM event_streams WHERE stream_id = $1`,
		streamID,
	).Scan(&position.CommitPosition, &position.EventNumber)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return version.FromBeginning, nil
	case err != nil:
		return version.FromBeginning, fmt.Errorf("postgres.EventStore: failed to read event stream, %w", err)
	default:
		return position, nil
	}
}
