package eventstorefirestore

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"

	"github.com/get-eventually/go-eventstore/event"
	"github.com/get-eventually/go-eventstore/logger"
	"github.com/get-eventually/go-eventstore/subscription"
	"github.com/get-eventually/go-eventstore/version"
)

// Subscribe opens a Subscription delivering the Events following the provided
// position, through a Firestore query snapshot listener.
//
// The first snapshot contains all the committed Events following the position,
// every other snapshot the newly appended ones. Closing the Subscription stops
// the listener.
func (es *EventStore) Subscribe(
	ctx context.Context,
	streamID string,
	from version.Position,
	processor event.Processor,
) (subscription.Subscription, error) {
	sub, err := subscription.Open(ctx, streamID, from, func(ctx context.Context, sub subscription.Tracker) error {
		snapshots := es.query(sub).Snapshots(ctx)
		defer snapshots.Stop()

		for {
			snapshot, err := snapshots.Next()
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}

				return fmt.Errorf("eventstorefirestore.EventStore: snapshot listener failed, %w", err)
			}

			events, err := es.added(snapshot.Changes)
			if err != nil {
				return err
			}

			for _, evt := range events {
				if err := subscription.Deliver(ctx, sub, processor, evt); err != nil {
					return err
				}
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("eventstorefirestore.EventStore: failed to subscribe, %w", err)
	}

	logger.Debug(es.logger, "subscription opened",
		logger.With("streamId", streamID),
		logger.With("commitPosition", from.CommitPosition),
	)

	return sub, nil
}

func (es *EventStore) query(sub subscription.Subscription) firestore.Query {
	events := es.client.Collection(EventsCollection)

	if lastEventNumber, ok := sub.LastEventNumber(); ok {
		return events.
			Where("stream_id", "==", sub.StreamID()).
			Where("event_number", ">", int64(lastEventNumber)).
			OrderBy("event_number", firestore.Asc)
	}

	return events.
		Where("commit_position", ">", int64(sub.LastCommitPosition())).
		OrderBy("commit_position", firestore.Asc)
}

// added decodes the Events added to the query results, in commit order.
func (es *EventStore) added(changes []firestore.DocumentChange) ([]event.Persisted, error) {
	events := make([]event.Persisted, 0, len(changes))

	for _, change := range changes {
		if change.Kind != firestore.DocumentAdded {
			continue
		}

		evt, err := es.decode(change.Doc)
		if err != nil {
			return nil, err
		}

		events = append(events, evt)
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].CommitPosition < events[j].CommitPosition
	})

	return events, nil
}
