package opentelemetry

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/get-eventually/go-eventstore/version"
)

// Attribute keys used by the instrumentation.
const (
	StreamIDKey            attribute.Key = "event_stream.id"
	FromEventNumberKey     attribute.Key = "event_stream.from_event_number"
	FromCommitPositionKey  attribute.Key = "event_store.from_commit_position"
	ExpectedEventNumberKey attribute.Key = "event_stream.expected_event_number"
	NumEventsKey           attribute.Key = "event_store.num_events"
	EventNameKey           attribute.Key = "event.name"
	EventNumberKey         attribute.Key = "event.number"
	CommitPositionKey      attribute.Key = "event.commit_position"
	ErrorKey               attribute.Key = "error"
)

func expectedEventNumber(expected version.Check) attribute.KeyValue {
	if v, ok := expected.(version.CheckExact); ok {
		return ExpectedEventNumberKey.Int64(int64(v))
	}

	return ExpectedEventNumberKey.String("any")
}
