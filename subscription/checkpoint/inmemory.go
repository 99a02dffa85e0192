package checkpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/get-eventually/go-eventstore/version"
)

var _ Checkpointer = &InMemory{}

// InMemory is a thread-safe Checkpointer keeping positions in memory.
//
// Positions only move forward: writing a position with a lower commit
// position than the stored one is ignored.
//
// The zero value is an empty InMemory Checkpointer ready to use.
type InMemory struct {
	mx        sync.RWMutex
	positions map[string]version.Position
}

// NewInMemory returns a new, empty InMemory Checkpointer.
func NewInMemory() *InMemory {
	return &InMemory{positions: make(map[string]version.Position)}
}

// Read returns the stored position of the named subscription.
func (im *InMemory) Read(_ context.Context, name string) (version.Position, error) {
	im.mx.RLock()
	defer im.mx.RUnlock()

	position, ok := im.positions[name]
	if !ok {
		return version.FromBeginning, notFound(name)
	}

	return position, nil
}

// Write stores the position of the named subscription.
func (im *InMemory) Write(_ context.Context, name string, position version.Position) error {
	if err := position.Validate(); err != nil {
		return fmt.Errorf("checkpoint.InMemory: invalid position, %w", err)
	}

	im.mx.Lock()
	defer im.mx.Unlock()

	if current, ok := im.positions[name]; ok && position.CommitPosition < current.CommitPosition {
		return nil
	}

	if im.positions == nil {
		im.positions = make(map[string]version.Position)
	}

	im.positions[name] = position

	return nil
}
