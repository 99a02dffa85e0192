package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/get-eventually/go-eventstore"
	"github.com/get-eventually/go-eventstore/subscription/checkpoint"
	"github.com/get-eventually/go-eventstore/version"
)

var _ checkpoint.Checkpointer = Checkpointer{}

// Checkpointer is a checkpoint.Checkpointer implementation storing
// Subscription positions in the "subscription_checkpoints" table.
type Checkpointer struct {
	pool *pgxpool.Pool
}

// NewCheckpointer returns a new Checkpointer using the provided connection pool.
func NewCheckpointer(pool *pgxpool.Pool) Checkpointer {
	return Checkpointer{pool: pool}
}

// Read returns the stored position of the named Subscription.
func (c Checkpointer) Read(ctx context.Context, name string) (version.Position, error) {
	var position version.Position

	err := c.pool.QueryRow(ctx,
		`SELECT commit_position, event_number FROM subscription_checkpoints WHERE subscription_name = $1`,
		name,
	).Scan(&position.CommitPosition, &position.EventNumber)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return version.FromBeginning, fmt.Errorf("postgres.Checkpointer: no checkpoint for %q, %w",
			name, eventstore.ErrNotFound)
	case err != nil:
		return version.FromBeginning, fmt.Errorf("postgres.Checkpointer: failed to read checkpoint, %w", err)
	default:
		return position, nil
	}
}

// Write stores the position of the named Subscription.
//
// Positions only move forward: a position with a lower commit position
// than the stored one is ignored.
func (c Checkpointer) Write(ctx context.Context, name string, position version.Position) error {
	if err := position.Validate(); err != nil {
		return fmt.Errorf("postgres.Checkpointer: invalid position, %w", err)
	}

	_, err := c.pool.Exec(ctx,
		`INSERT INTO subscription_checkpoints (subscription_name, commit_position, event_number)
		VALUES ($1, $2, $3)
		ON CONFLICT (subscription_name) DO
		UPDATE SET commit_position = EXCLUDED.commit_position,
			event_number = EXCLUDED.event_number,
			updated_at = NOW()
		WHERE subscription_checkpoints.commit_position <= EXCLUDED.commit_position`,
		name, position.CommitPosition, position.EventNumber,
	)
	if err != nil {
		return fmt.Errorf("postgres.Checkpointer: failed to write checkpoint, %w", err)
	}

	return nil
}
