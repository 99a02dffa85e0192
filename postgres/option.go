package postgres

import "github.com/get-eventually/go-eventstore/logger"

// Option can be used to change the configuration of an object.
type Option[T any] interface {
	apply(T)
}

type option[T any] func(T)

func (fn option[T]) apply(val T) { fn(val) }

// DefaultNotifyChannel is the channel used to notify Subscriptions
// of new appended Events.
const DefaultNotifyChannel = "eventstore_events"

// DefaultBufferSize is the size of the channels used by Subscriptions
// to read Events from the database.
const DefaultBufferSize = 64

// WithNotifyChannel sets the LISTEN/NOTIFY channel used by the EventStore.
func WithNotifyChannel(channel string) Option[*EventStore] {
	return option[*EventStore](func(es *EventStore) {
		if channel != "" {
			es.channel = channel
		}
	})
}

// WithLogger sets the Logger used by the EventStore Subscriptions.
func WithLogger(l logger.Logger) Option[*EventStore] {
	return option[*EventStore](func(es *EventStore) { es.logger = l })
}

// WithBufferSize sets the size of the channels used by Subscriptions
// to read Events from the database.
func WithBufferSize(size int) Option[*EventStore] {
	return option[*EventStore](func(es *EventStore) {
		if size > 0 {
			es.bufferSize = size
		}
	})
}
