package checkpoint_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/go-eventstore"
	"github.com/get-eventually/go-eventstore/subscription/checkpoint"
	"github.com/get-eventually/go-eventstore/version"
)

const subscriptionName = "test-subscription"

func TestNopCheckpointer(t *testing.T) {
	ctx := context.Background()
	checkpointer := checkpoint.NopCheckpointer{}

	_, err := checkpointer.Read(ctx, subscriptionName)
	assert.ErrorIs(t, err, eventstore.ErrNotFound)

	err = checkpointer.Write(ctx, subscriptionName, version.Position{CommitPosition: 1200, EventNumber: 3})
	assert.NoError(t, err)

	_, err = checkpointer.Read(ctx, subscriptionName)
	assert.ErrorIs(t, err, eventstore.ErrNotFound)
}

func TestFixedCheckpointer(t *testing.T) {
	ctx := context.Background()
	start := version.Position{CommitPosition: 100, EventNumber: version.NoEventNumber}
	checkpointer := checkpoint.FixedCheckpointer{StartingFrom: start}

	position, err := checkpointer.Read(ctx, subscriptionName)
	assert.NoError(t, err)
	assert.Equal(t, start, position)

	err = checkpointer.Write(ctx, subscriptionName, version.Position{CommitPosition: 1200, EventNumber: 3})
	assert.NoError(t, err)

	position, err = checkpointer.Read(ctx, subscriptionName)
	assert.NoError(t, err)
	assert.Equal(t, start, position)
}

func TestInMemory(t *testing.T) {
	ctx := context.Background()
	checkpointer := checkpoint.NewInMemory()

	_, err := checkpointer.Read(ctx, subscriptionName)
	require.ErrorIs(t, err, eventstore.ErrNotFound)

	second := version.Position{CommitPosition: 10, EventNumber: 2}
	require.NoError(t, checkpointer.Write(ctx, subscriptionName, second))

	position, err := checkpointer.Read(ctx, subscriptionName)
	require.NoError(t, err)
	assert.Equal(t, second, position)

	// Lower positions are ignored.
	require.NoError(t, checkpointer.Write(ctx, subscriptionName, version.Position{CommitPosition: 4, EventNumber: 1}))

	position, err = checkpointer.Read(ctx, subscriptionName)
	require.NoError(t, err)
	assert.Equal(t, second, position)

	err = checkpointer.Write(ctx, subscriptionName, version.Position{CommitPosition: -5, EventNumber: 1})
	assert.ErrorIs(t, err, eventstore.ErrInvalidArgument)

	_, err = checkpointer.Read(ctx, "other-subscription")
	assert.ErrorIs(t, err, eventstore.ErrNotFound)
}

func TestInMemory_ZeroValue(t *testing.T) {
	ctx := context.Background()
	checkpointer := &checkpoint.InMemory{}

	_, err := checkpointer.Read(ctx, subscriptionName)
	assert.ErrorIs(t, err, eventstore.ErrNotFound)

	expected := version.Position{CommitPosition: 42, EventNumber: 7}
	require.NoError(t, checkpointer.Write(ctx, subscriptionName, expected))

	position, err := checkpointer.Read(ctx, subscriptionName)
	require.NoError(t, err)
	assert.Equal(t, expected, position)
}
