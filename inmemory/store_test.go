package inmemory_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/get-eventually/go-eventstore/inmemory"
	"github.com/get-eventually/go-eventstore/internal/storetest"
)

func TestEventStore(t *testing.T) {
	suite.Run(t, storetest.New(func() storetest.Backend {
		return inmemory.NewEventStore()
	}))
}

func TestEventStore_ZeroValue(t *testing.T) {
	suite.Run(t, storetest.New(func() storetest.Backend {
		return &inmemory.EventStore{}
	}))
}
