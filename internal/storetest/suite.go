// Package storetest contains a testing suite that any Event Store backend
// can run to verify it honors the event.Store, event.PositionReader and
// subscription.Subscriber contracts.
package storetest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/get-eventually/go-eventstore"
	"github.com/get-eventually/go-eventstore/correlation"
	"github.com/get-eventually/go-eventstore/event"
	"github.com/get-eventually/go-eventstore/internal/account"
	"github.com/get-eventually/go-eventstore/message"
	"github.com/get-eventually/go-eventstore/subscription"
	"github.com/get-eventually/go-eventstore/version"
)

// DeliveryTimeout is the maximum time the suite waits for a Subscription
// to deliver an expected Event.
const DeliveryTimeout = 10 * time.Second

// Backend is the set of interfaces an Event Store backend must implement.
type Backend interface {
	event.Store
	event.PositionReader
	subscription.Subscriber
}

// Suite is a full testing suite for a Backend instance.
//
// Event Stream names are unique for each test, and positions are always
// compared relative to the Event Store tail at the beginning of the test,
// so the same Backend storage can be shared by all tests.
type Suite struct {
	suite.Suite

	factory func() Backend
	backend Backend // NOTE: this instance is initialized in SetupTest.
}

// New creates a new testing suite using the provided Backend factory,
// called before each test.
func New(factory func() Backend) *Suite {
	return &Suite{factory: factory}
}

// SetupTest creates a new Backend instance for each test in the suite.
func (s *Suite) SetupTest() {
	s.backend = s.factory()
}

func (s *Suite) streamID(name string) string {
	return name + "-" + uuid.NewString()
}

func (s *Suite) tail(ctx context.Context) version.CommitPosition {
	position, err := s.backend.LatestPosition(ctx, "")
	s.Require().NoError(err)

	return position.CommitPosition
}

func deposit(amount int64) event.Envelope {
	return event.Envelope{Message: &account.MoneyWasDeposited{Amount: amount}}
}

func opened(id string) event.Envelope {
	return event.Envelope{
		Message:  &account.WasOpened{ID: id, Owner: "John Doe"},
		Metadata: message.Metadata{correlation.CorrelationIDKey: "correlation-" + id},
	}
}

// TestAppendAndReadStream appends Events to two interleaved streams and
// reads them back.
func (s *Suite) TestAppendAndReadStream() {
	ctx := context.Background()
	first, second := s.streamID("first"), s.streamID("second")

	n, err := s.backend.Append(ctx, first, version.NoStream, opened("1"), deposit(10))
	s.Require().NoError(err)
	s.Equal(version.EventNumber(1), n)

	n, err = s.backend.Append(ctx, second, version.Any, opened("2"))
	s.Require().NoError(err)
	s.Equal(version.EventNumber(0), n)

	n, err = s.backend.Append(ctx, first, version.CheckExact(1), deposit(20))
	s.Require().NoError(err)
	s.Equal(version.EventNumber(2), n)

	events, err := event.StreamToSlice(ctx, func(ctx context.Context, stream event.Stream) error {
		return s.backend.ReadStream(ctx, stream, first, 0)
	})
	s.Require().NoError(err)
	s.Require().Len(events, 3)

	s.Equal([]event.Event{
		&account.WasOpened{ID: "1", Owner: "John Doe"},
		&account.MoneyWasDeposited{Amount: 10},
		&account.MoneyWasDeposited{Amount: 20},
	}, messages(events))

	for i, evt := range events {
		s.Equal(first, evt.StreamID)
		s.Equal(version.EventNumber(i), evt.EventNumber)

		id, ok := evt.Metadata.Get(event.IDKey)
		s.True(ok)
		s.NotEmpty(id)

		_, ok = evt.Metadata.Get(event.RecordedAtKey)
		s.True(ok)
	}

	correlationID, _ := events[0].Metadata.Get(correlation.CorrelationIDKey)
	s.Equal("correlation-1", correlationID)
	s.Less(events[1].CommitPosition, events[2].CommitPosition)

	s.Run("reading from an event number is inclusive", func() {
		events, err := event.StreamToSlice(ctx, func(ctx context.Context, stream event.Stream) error {
			return s.backend.ReadStream(ctx, stream, first, 2)
		})
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(version.EventNumber(2), events[0].EventNumber)
	})

	s.Run("reading an unknown stream returns no events", func() {
		events, err := event.StreamToSlice(ctx, func(ctx context.Context, stream event.Stream) error {
			return s.backend.ReadStream(ctx, stream, s.streamID("unknown"), 0)
		})
		s.Require().NoError(err)
		s.Empty(events)
	})
}

// TestReadAll checks the global order of appended Events.
func (s *Suite) TestReadAll() {
	ctx := context.Background()
	first, second := s.streamID("first"), s.streamID("second")
	start := s.tail(ctx)

	_, err := s.backend.Append(ctx, first, version.Any, opened("1"))
	s.Require().NoError(err)

	_, err = s.backend.Append(ctx, second, version.Any, opened("2"), deposit(1))
	s.Require().NoError(err)

	_, err = s.backend.Append(ctx, first, version.Any, deposit(2))
	s.Require().NoError(err)

	events, err := event.StreamToSlice(ctx, func(ctx context.Context, stream event.Stream) error {
		return s.backend.ReadAll(ctx, stream, start+1)
	})
	s.Require().NoError(err)
	s.Require().Len(events, 4)

	expectedStreams := []string{first, second, second, first}
	expectedNumbers := []version.EventNumber{0, 0, 1, 1}

	for i, evt := range events {
		s.Equal(start+1+version.CommitPosition(i), evt.CommitPosition)
		s.Equal(expectedStreams[i], evt.StreamID)
		s.Equal(expectedNumbers[i], evt.EventNumber)
	}

	s.Run("reading from a commit position is inclusive", func() {
		events, err := event.StreamToSlice(ctx, func(ctx context.Context, stream event.Stream) error {
			return s.backend.ReadAll(ctx, stream, start+4)
		})
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(first, events[0].StreamID)
	})
}

// TestOptimisticConcurrency checks the version.Check support on Append.
func (s *Suite) TestOptimisticConcurrency() {
	ctx := context.Background()
	streamID := s.streamID("concurrency")

	_, err := s.backend.Append(ctx, streamID, version.CheckExact(0), opened("1"))

	var conflict version.ConflictError
	s.Require().True(errors.As(err, &conflict))
	s.Equal(version.ConflictError{Expected: 0, Actual: version.NoEventNumber}, conflict)

	_, err = s.backend.Append(ctx, streamID, version.NoStream, opened("1"))
	s.Require().NoError(err)

	_, err = s.backend.Append(ctx, streamID, version.NoStream, deposit(1))
	s.Require().True(errors.As(err, &conflict))
	s.Equal(version.ConflictError{Expected: version.NoEventNumber, Actual: 0}, conflict)

	n, err := s.backend.Append(ctx, streamID, version.CheckExact(0), deposit(1))
	s.Require().NoError(err)
	s.Equal(version.EventNumber(1), n)
}

// TestAppendEdgeCases checks empty appends and invalid stream ids.
func (s *Suite) TestAppendEdgeCases() {
	ctx := context.Background()
	streamID := s.streamID("edge")

	n, err := s.backend.Append(ctx, streamID, version.Any)
	s.Require().NoError(err)
	s.Equal(version.NoEventNumber, n)

	_, err = s.backend.Append(ctx, streamID, version.Any, opened("1"))
	s.Require().NoError(err)

	n, err = s.backend.Append(ctx, streamID, version.CheckExact(0))
	s.Require().NoError(err)
	s.Equal(version.EventNumber(0), n)

	_, err = s.backend.Append(ctx, "", version.Any, opened("1"))
	s.ErrorIs(err, eventstore.ErrInvalidArgument)
}

// TestLatestPosition checks the tail of streams and of the whole Event Store.
func (s *Suite) TestLatestPosition() {
	ctx := context.Background()
	streamID := s.streamID("latest")

	position, err := s.backend.LatestPosition(ctx, streamID)
	s.Require().NoError(err)
	s.Equal(version.FromBeginning, position)

	_, err = s.backend.Append(ctx, streamID, version.Any, opened("1"), deposit(1))
	s.Require().NoError(err)

	_, err = s.backend.Append(ctx, s.streamID("other"), version.Any, opened("2"))
	s.Require().NoError(err)

	global, err := s.backend.LatestPosition(ctx, "")
	s.Require().NoError(err)
	s.Equal(version.NoEventNumber, global.EventNumber)

	position, err = s.backend.LatestPosition(ctx, streamID)
	s.Require().NoError(err)
	s.Equal(version.EventNumber(1), position.EventNumber)
	s.Equal(global.CommitPosition-1, position.CommitPosition)
}

// TestSubscribeAll checks an all-streams Subscription catches up, follows
// new Events and stops on Close.
func (s *Suite) TestSubscribeAll() {
	ctx := context.Background()
	first, second := s.streamID("first"), s.streamID("second")
	start := s.tail(ctx)

	_, err := s.backend.Append(ctx, first, version.Any, opened("1"))
	s.Require().NoError(err)

	received := make(chan event.Persisted, 16)

	sub, err := s.backend.Subscribe(ctx, "",
		version.Position{CommitPosition: start, EventNumber: version.NoEventNumber},
		collect(received),
	)
	s.Require().NoError(err)

	s.True(sub.IsSubscribedToAll())
	s.Equal(subscription.Active, sub.State())

	_, hasEventNumber := sub.LastEventNumber()
	s.False(hasEventNumber)

	_, err = s.backend.Append(ctx, second, version.Any, opened("2"), deposit(3))
	s.Require().NoError(err)

	events := s.receive(received, 3)
	s.Equal([]string{first, second, second}, []string{events[0].StreamID, events[1].StreamID, events[2].StreamID})

	s.Eventually(func() bool {
		return sub.LastCommitPosition() == events[2].CommitPosition
	}, DeliveryTimeout, 10*time.Millisecond)

	s.Require().NoError(sub.Close())
	s.Equal(subscription.Closed, sub.State())
	s.waitDone(sub)
	s.NoError(sub.Err())

	last := sub.LastCommitPosition()

	_, err = s.backend.Append(ctx, first, version.Any, deposit(4))
	s.Require().NoError(err)

	// NOTE: this is bad, I know, but there is no event to wait for.
	<-time.After(100 * time.Millisecond)

	s.Empty(received)
	s.Equal(last, sub.LastCommitPosition())

	s.Require().NoError(sub.Close(), "closing twice should not fail")
}

// TestSubscribeSingleStream checks a single-stream Subscription only
// receives the Events of its stream.
func (s *Suite) TestSubscribeSingleStream() {
	ctx := context.Background()
	streamID, other := s.streamID("single"), s.streamID("other")

	_, err := s.backend.Append(ctx, streamID, version.Any, opened("1"), deposit(1))
	s.Require().NoError(err)

	received := make(chan event.Persisted, 16)

	sub, err := s.backend.Subscribe(ctx, streamID,
		version.Position{CommitPosition: version.NoCommitPosition, EventNumber: 0},
		collect(received),
	)
	s.Require().NoError(err)

	defer func() { s.NoError(sub.Close()) }()

	s.Equal(streamID, sub.StreamID())
	s.False(sub.IsSubscribedToAll())

	_, err = s.backend.Append(ctx, other, version.Any, opened("2"))
	s.Require().NoError(err)

	_, err = s.backend.Append(ctx, streamID, version.Any, deposit(2))
	s.Require().NoError(err)

	events := s.receive(received, 2)
	s.Equal(version.EventNumber(1), events[0].EventNumber)
	s.Equal(version.EventNumber(2), events[1].EventNumber)
	s.Equal(&account.MoneyWasDeposited{Amount: 2}, events[1].Message)

	s.Eventually(func() bool {
		n, ok := sub.LastEventNumber()
		return ok && n == 2
	}, DeliveryTimeout, 10*time.Millisecond)

	s.Equal(events[1].CommitPosition, sub.LastCommitPosition())
}

// TestSubscribeProcessorFailure checks a failing processor stops the Subscription.
func (s *Suite) TestSubscribeProcessorFailure() {
	ctx := context.Background()
	streamID := s.streamID("failure")
	expectedErr := errors.New("processor failed")

	sub, err := s.backend.Subscribe(ctx, streamID, version.FromBeginning,
		event.ProcessorFunc(func(context.Context, event.Persisted) error { return expectedErr }),
	)
	s.Require().NoError(err)

	_, err = s.backend.Append(ctx, streamID, version.Any, opened("1"))
	s.Require().NoError(err)

	s.waitDone(sub)
	s.ErrorIs(sub.Err(), expectedErr)
	s.Equal(subscription.Closed, sub.State())

	n, _ := sub.LastEventNumber()
	s.Equal(version.NoEventNumber, n)
}

func (s *Suite) receive(ch <-chan event.Persisted, n int) []event.Persisted {
	events := make([]event.Persisted, 0, n)
	timeout := time.After(DeliveryTimeout)

	for len(events) < n {
		select {
		case evt := <-ch:
			events = append(events, evt)
		case <-timeout:
			s.FailNowf("subscription timed out", "received %d events out of %d", len(events), n)
		}
	}

	return events
}

func (s *Suite) waitDone(sub subscription.Subscription) {
	select {
	case <-sub.Done():
	case <-time.After(DeliveryTimeout):
		s.FailNow("subscription did not stop in time")
	}
}

func collect(ch chan<- event.Persisted) event.Processor {
	return event.ProcessorFunc(func(ctx context.Context, evt event.Persisted) error {
		select {
		case ch <- evt:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func messages(events []event.Persisted) []event.Event {
	result := make([]event.Event, 0, len(events))
	for _, evt := range events {
		result = append(result, evt.Message)
	}

	return result
}
