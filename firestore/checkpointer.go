package eventstorefirestore

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/get-eventually/go-eventstore"
	"github.com/get-eventually/go-eventstore/subscription/checkpoint"
	"github.com/get-eventually/go-eventstore/version"
)

// CheckpointsCollection is the collection used by the Checkpointer.
const CheckpointsCollection = "SubscriptionCheckpoints"

var _ checkpoint.Checkpointer = Checkpointer{}

type checkpointDocument struct {
	CommitPosition int64     `firestore:"commit_position"`
	EventNumber    int64     `firestore:"event_number"`
	UpdatedAt      time.Time `firestore:"updated_at"`
}

// Checkpointer is a checkpoint.Checkpointer implementation storing
// Subscription positions in Firestore.
type Checkpointer struct {
	client *firestore.Client
}

// NewCheckpointer returns a new Checkpointer using the provided Firestore client.
func NewCheckpointer(client *firestore.Client) Checkpointer {
	return Checkpointer{client: client}
}

func (c Checkpointer) ref(name string) *firestore.DocumentRef {
	return c.client.Collection(CheckpointsCollection).Doc(url.PathEscape(name))
}

// Read returns the stored position of the named Subscription.
func (c Checkpointer) Read(ctx context.Context, name string) (version.Position, error) {
	snapshot, err := c.ref(name).Get(ctx)

	switch {
	case isNotFound(err):
		return version.FromBeginning, fmt.Errorf("eventstorefirestore.Checkpointer: no checkpoint for %q, %w",
			name, eventstore.ErrNotFound)
	case err != nil:
		return version.FromBeginning, fmt.Errorf("eventstorefirestore.Checkpointer: failed to read checkpoint, %w", err)
	}

	var doc checkpointDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return version.FromBeginning, fmt.Errorf("eventstorefirestore.Checkpointer: failed to decode checkpoint, %w", err)
	}

	return version.Position{
		CommitPosition: version.CommitPosition(doc.CommitPosition),
		EventNumber:    version.EventNumber(doc.EventNumber),
	}, nil
}

// Write stores the position of the named Subscription.
//
// Positions only move forward: a position with a lower commit position
// than the stored one is ignored.
func (c Checkpointer) Write(ctx context.Context, name string, position version.Position) error {
	if err := position.Validate(); err != nil {
		return fmt.Errorf("eventstorefirestore.Checkpointer: invalid position, %w", err)
	}

	ref := c.ref(name)

	err := c.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		current := checkpointDocument{CommitPosition: int64(version.NoCommitPosition)}
		if err := get(tx, ref, &current); err != nil {
			return err
		}

		if int64(position.CommitPosition) < current.CommitPosition {
			return nil
		}

		return tx.Set(ref, checkpointDocument{
			CommitPosition: int64(position.CommitPosition),
			EventNumber:    int64(position.EventNumber),
			UpdatedAt:      time.Now().UTC(),
		})
	})
	if err != nil {
		return fmt.Errorf("eventstorefirestore.Checkpointer: failed to write checkpoint, %w", err)
	}

	return nil
}
