// Package eventstorefirestore provides an Event Store backend on
// Google Cloud Firestore.
//
// Event Streams are kept in the "EventStreams" collection, Events in the
// "Events" collection keyed by their commit position, and the last commit
// position of the whole Event Store in the "Positions/global" document.
package eventstorefirestore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/get-eventually/go-eventstore/event"
	"github.com/get-eventually/go-eventstore/logger"
	"github.com/get-eventually/go-eventstore/serde"
	"github.com/get-eventually/go-eventstore/subscription"
	"github.com/get-eventually/go-eventstore/version"
)

var (
	_ event.Store             = &EventStore{}
	_ event.PositionReader    = &EventStore{}
	_ subscription.Subscriber = &EventStore{}
)

// Collection names used by the EventStore.
const (
	EventStreamsCollection = "EventStreams"
	EventsCollection       = "Events"
	PositionsCollection    = "Positions"
)

const globalPosition = "global"

type streamDocument struct {
	StreamID           string `firestore:"stream_id"`
	LastEventNumber    int64  `firestore:"last_event_number"`
	LastCommitPosition int64  `firestore:"last_commit_position"`
}

type eventDocument struct {
	CommitPosition int64             `firestore:"commit_position"`
	StreamID       string            `firestore:"stream_id"`
	EventNumber    int64             `firestore:"event_number"`
	Type           string            `firestore:"type"`
	Payload        []byte            `firestore:"payload"`
	Metadata       map[string]string `firestore:"metadata"`
	RecordedAt     time.Time         `firestore:"recorded_at"`
}

type positionDocument struct {
	LastCommitPosition int64 `firestore:"last_commit_position"`
}

// EventStore is an event.Store implementation using Firestore.
type EventStore struct {
	client   *firestore.Client
	registry *serde.Registry
	logger   logger.Logger
}

// Option configures an EventStore.
type Option func(*EventStore)

// WithLogger sets the Logger used by the EventStore Subscriptions.
func WithLogger(l logger.Logger) Option {
	return func(es *EventStore) { es.logger = l }
}

// NewEventStore returns a new EventStore using the provided Firestore client,
// and the serde.Registry to encode and decode Event payloads.
func NewEventStore(client *firestore.Client, registry *serde.Registry, options ...Option) *EventStore {
	es := &EventStore{client: client, registry: registry}

	for _, opt := range options {
		opt(es)
	}

	return es
}

func (es *EventStore) streamRef(streamID string) *firestore.DocumentRef {
	// Document ids cannot contain slashes.
	return es.client.Collection(EventStreamsCollection).Doc(url.PathEscape(streamID))
}

func (es *EventStore) eventRef(position version.CommitPosition) *firestore.DocumentRef {
	// Zero-padded, so that document ids sort in commit order.
	return es.client.Collection(EventsCollection).Doc(fmt.Sprintf("%020d", position))
}

func (es *EventStore) positionRef() *firestore.DocumentRef {
	return es.client.Collection(PositionsCollection).Doc(globalPosition)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (es *EventStore) encode(streamID string, events []event.Envelope) ([]eventDocument, error) {
	docs := make([]eventDocument, 0, len(events))
	now := time.Now().UTC()

	for _, evt := range events {
		payload, err := es.registry.Serialize(evt.Message)
		if err != nil {
			return nil, fmt.Errorf("eventstorefirestore.EventStore: failed to serialize event, %w", err)
		}

		stamped := event.Stamp(evt, uuid.NewString(), now)

		docs = append(docs, eventDocument{
			StreamID:   streamID,
			Type:       evt.Message.Name(),
			Payload:    payload,
			Metadata:   stamped.Metadata,
			RecordedAt: now,
		})
	}

	return docs, nil
}

// Append inserts the Domain Events at the end of the Event Stream in a single
// Firestore transaction, returning the event number of the last Event in the stream.
func (es *EventStore) Append(
	ctx context.Context,
	streamID string,
	expected version.Check,
	events ...event.Envelope,
) (version.EventNumber, error) {
	if err := event.ValidateStreamID(streamID); err != nil {
		return version.NoEventNumber, fmt.Errorf("eventstorefirestore.EventStore: failed to append events, %w", err)
	}

	docs, err := es.encode(streamID, events)
	if err != nil {
		return version.NoEventNumber, err
	}

	var last version.EventNumber

	err = es.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		stream := streamDocument{StreamID: streamID, LastEventNumber: -1, LastCommitPosition: -1}
		position := positionDocument{LastCommitPosition: -1}

		// All reads must happen before any write in a Firestore transaction.
		if err := get(tx, es.streamRef(streamID), &stream); err != nil {
			return fmt.Errorf("failed to read event stream, %w", err)
		}

		if err := get(tx, es.positionRef(), &position); err != nil {
			return fmt.Errorf("failed to read global position, %w", err)
		}

		last = version.EventNumber(stream.LastEventNumber)

		if err := version.Verify(expected, last); err != nil {
			return err
		}

		if len(docs) == 0 {
			return nil
		}

		for _, doc := range docs {
			stream.LastEventNumber++
			position.LastCommitPosition++

			doc.EventNumber = stream.LastEventNumber
			doc.CommitPosition = position.LastCommitPosition

			if err := tx.Create(es.eventRef(version.CommitPosition(doc.CommitPosition)), doc); err != nil {
				return fmt.Errorf("failed to create event, %w", err)
			}
		}

		stream.LastCommitPosition = position.LastCommitPosition
		last = version.EventNumber(stream.LastEventNumber)

		if err := tx.Set(es.streamRef(streamID), stream); err != nil {
			return fmt.Errorf("failed to update event stream, %w", err)
		}

		if err := tx.Set(es.positionRef(), position); err != nil {
			return fmt.Errorf("failed to update global position, %w", err)
		}

		return nil
	})
	if err != nil {
		return version.NoEventNumber, fmt.Errorf("eventstorefirestore.EventStore: failed to append events, %w", err)
	}

	return last, nil
}

// get reads the document into dst, leaving dst untouched if it does not exist.
func get(tx *firestore.Transaction, ref *firestore.DocumentRef, dst any) error {
	snapshot, err := tx.Get(ref)

	switch {
	case isNotFound(err):
		return nil
	case err != nil:
		return err
	default:
		return snapshot.DataTo(dst)
	}
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

	query := es.client.Collection(EventsCollection).
		Where("stream_id", "==", streamID).
		Where("event_number", ">=", int64(from)).
		OrderBy("event_number", firestore.Asc)

	return es.send(ctx, stream, query.Documents(ctx))
}

// ReadAll streams the Events of all Event Streams in commit order,
// starting from the provided commit position (inclusive).
func (es *EventStore) ReadAll(ctx context.Context, stream event.Stream, from version.CommitPosition) error {
	defer close(stream)

	query := es.client.Collection(EventsCollection).
		Where("commit_position", ">=", int64(from)).
		OrderBy("commit_position", firestore.Asc)

	return es.send(ctx, stream, query.Documents(ctx))
}

func (es *EventStore) send(ctx context.Context, stream event.Stream, iter *firestore.DocumentIterator) error {
	defer iter.Stop()

	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("eventstorefirestore.EventStore: failed while reading iterator, %w", err)
		}

		evt, err := es.decode(snapshot)
		if err != nil {
			return err
		}

		select {
		case stream <- evt:
		case <-ctx.Done():
			return fmt.Errorf("eventstorefirestore.EventStore: context error, %w", ctx.Err())
		}
	}
}

func (es *EventStore) decode(snapshot *firestore.DocumentSnapshot) (event.Persisted, error) {
	var doc eventDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return event.Persisted{}, fmt.Errorf("eventstorefirestore.EventStore: failed to decode event document, %w", err)
	}

	msg, err := es.registry.Deserialize(doc.Type, doc.Payload)
	if err != nil {
		return event.Persisted{}, fmt.Errorf("eventstorefirestore.EventStore: failed to deserialize event, %w", err)
	}

	return event.Persisted{
		Envelope: event.Envelope{
			Message:  msg,
			Metadata: doc.Metadata,
		},
		StreamID:       doc.StreamID,
		EventNumber:    version.EventNumber(doc.EventNumber),
		CommitPosition: version.CommitPosition(doc.CommitPosition),
	}, nil
}

// LatestPosition returns the position of the last Event in the specified
// Event Stream, or in the whole Event Store if streamID is empty.
func (es *EventStore) LatestPosition(ctx context.Context, streamID string) (version.Position, error) {
	if streamID == "" {
		position := positionDocument{LastCommitPosition: -1}
		if err := es.read(ctx, es.positionRef(), &position); err != nil {
			return version.FromBeginning, fmt.Errorf("eventstorefirestore.EventStore: failed to read global position, %w", err)
		}

		return version.Position{
			CommitPosition: version.CommitPosition(position.LastCommitPosition),
			EventNumber:    version.NoEventNumber,
		}, nil
	}

	stream := streamDocument{LastEventNumber: -1, LastCommitPosition: -1}
	if err := es.read(ctx, es.streamRef(streamID), &stream); err != nil {
		return version.FromBeginning, fmt.Errorf("eventstorefirestore.EventStore: failed to read event stream, %w", err)
	}

	return version.Position{
		CommitPosition: version.CommitPosition(stream.LastCommitPosition),
		EventNumber:    version.EventNumber(stream.LastEventNumber),
	}, nil
}

func (es *EventStore) read(ctx context.Context, ref *firestore.DocumentRef, dst any) error {
	snapshot, err := ref.Get(ctx)

	switch {
	case isNotFound(err):
		return nil
	case err != nil:
		return err
	default:
		return snapshot.DataTo(dst)
	}
}
