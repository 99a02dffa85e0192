package eventstorefirestore_test

import (
	"context"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go/modules/gcloud"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/get-eventually/go-eventstore"
	eventstorefirestore "github.com/get-eventually/go-eventstore/firestore"
	"github.com/get-eventually/go-eventstore/internal/account"
	"github.com/get-eventually/go-eventstore/internal/storetest"
	"github.com/get-eventually/go-eventstore/logger"
	"github.com/get-eventually/go-eventstore/version"
)

const (
	emulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:367.0.0-emulators"
	projectID     = "eventstore-test"
)

func setup(t *testing.T) *firestore.Client {
	t.Helper()

	if testing.Short() {
		t.SkipNow()
	}

	ctx := context.Background()

	container, err := gcloud.RunFirestore(ctx, emulatorImage, gcloud.WithProjectID(projectID))
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, container.Terminate(context.Background()))
	})

	client, err := firestore.NewClient(ctx, projectID,
		option.WithEndpoint(container.URI),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, client.Close())
	})

	return client
}

func TestEventStore(t *testing.T) {
	client := setup(t)
	registry := account.NewRegistry()

	suite.Run(t, storetest.New(func() storetest.Backend {
		return eventstorefirestore.NewEventStore(client, registry,
			eventstorefirestore.WithLogger(logger.NewTest(t)),
		)
	}))
}

func TestCheckpointer(t *testing.T) {
	ctx := context.Background()
	checkpointer := eventstorefirestore.NewCheckpointer(setup(t))

	_, err := checkpointer.Read(ctx, "projections/balances")
	assert.ErrorIs(t, err, eventstore.ErrNotFound)

	position := version.Position{CommitPosition: 7, EventNumber: 3}
	require.NoError(t, checkpointer.Write(ctx, "projections/balances", position))

	actual, err := checkpointer.Read(ctx, "projections/balances")
	require.NoError(t, err)
	assert.Equal(t, position, actual)

	t.Run("positions never move backwards", func(t *testing.T) {
		require.NoError(t, checkpointer.Write(ctx, "projections/balances", version.FromBeginning))

		actual, err := checkpointer.Read(ctx, "projections/balances")
		require.NoError(t, err)
		assert.Equal(t, position, actual)
	})
}
