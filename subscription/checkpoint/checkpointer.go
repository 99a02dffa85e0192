package checkpoint

import (
	"context"
	"fmt"

	"github.com/get-eventually/go-eventstore"
	"github.com/get-eventually/go-eventstore/version"
)

// Checkpointer stores the position of named Subscriptions.
//
// Read returns an eventstore.ErrNotFound error when no position
// has been written for the subscription yet.
type Checkpointer interface {
	Read(ctx context.Context, name string) (version.Position, error)
	Write(ctx context.Context, name string, position version.Position) error
}

var (
	_ Checkpointer = NopCheckpointer{}
	_ Checkpointer = FixedCheckpointer{}
)

// NopCheckpointer never stores any position.
type NopCheckpointer struct{}

// Read always returns an eventstore.ErrNotFound error.
func (NopCheckpointer) Read(_ context.Context, name string) (version.Position, error) {
	return version.FromBeginning, notFound(name)
}

// Write discards the provided position.
func (NopCheckpointer) Write(context.Context, string, version.Position) error { return nil }

// FixedCheckpointer always starts from the same position.
type FixedCheckpointer struct{ StartingFrom version.Position }

// Read returns the fixed starting position.
func (fc FixedCheckpointer) Read(context.Context, string) (version.Position, error) {
	return fc.StartingFrom, nil
}

// Write discards the provided position.
func (FixedCheckpointer) Write(context.Context, string, version.Position) error { return nil }

func notFound(name string) error {
	return fmt.Errorf("checkpoint: no checkpoint for subscription %q, %w", name, eventstore.ErrNotFound)
}
