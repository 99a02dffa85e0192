package aggregate

import (
	"fmt"

	"github.com/get-eventually/go-eventstore/event"
)

// ID represents an Aggregate ID type.
//
// Aggregate IDs should be able to be marshaled into a string format,
// so that they can be recorded in the metadata of their Domain Events.
type ID interface {
	fmt.Stringer
}

// StringID is a string-typed Aggregate ID.
type StringID string

func (id StringID) String() string { return string(id) }

// Aggregate folds Domain Events into its own state.
type Aggregate interface {
	// Apply applies the specified Event to the Aggregate Root,
	// by causing a state change in the Aggregate Root instance.
	//
	// Since this method cause a state change, implementors should make sure
	// to use pointer semantics on their Aggregate Root method receivers.
	Apply(event.Event) error
}

// Root is the interface describing an Aggregate Root instance.
//
// This interface should be implemented by your Aggregate Root types.
// Make sure your Aggregate Root types embed the aggregate.BaseRoot type
// to complete the implementation of this interface.
type Root[I ID] interface {
	Aggregate

	AggregateID() I
	Version() int64
	FlushRecordedEvents() []event.Envelope

	setVersion(int64)
	recordThat(Aggregate, ...event.Envelope) error
}

// RecordThat records the Domain Event for the specified Aggregate Root.
//
// An error is typically returned if applying the Domain Event on the Aggregate
// Root instance fails with an error.
func RecordThat[I ID](root Root[I], events ...event.Envelope) error {
	return root.recordThat(root, events...)
}

// BaseRoot segregates and completes the aggregate.Root interface implementation
// when embedded to a user-defined Aggregate Root type.
//
// BaseRoot tracks the number of Domain Events applied to the Aggregate Root,
// which is its version, and the recorded-but-uncommitted Domain Events.
type BaseRoot struct {
	version        int64
	recordedEvents []event.Envelope
}

// Version returns the current version of the Aggregate Root instance.
func (br BaseRoot) Version() int64 { return br.version }

// FlushRecordedEvents returns the uncommitted Domain Events and
// forgets about them.
func (br *BaseRoot) FlushRecordedEvents() []event.Envelope {
	flushed := br.recordedEvents
	br.recordedEvents = nil

	return flushed
}

func (br *BaseRoot) setVersion(v int64) { br.version = v }

func (br *BaseRoot) recordThat(aggregate Aggregate, events ...event.Envelope) error {
	for _, evt := range events {
		if err := aggregate.Apply(evt.Message); err != nil {
			return fmt.Errorf("aggregate.RecordThat: failed to apply event %q, %w", evt.Message.Name(), err)
		}

		br.recordedEvents = append(br.recordedEvents, evt)
		br.version++
	}

	return nil
}

// Type represents the type of an Aggregate, exposing the name used to
// route its Domain Events and a factory to create new, zero-valued instances.
type Type[I ID, T Root[I]] struct {
	Name    string
	Factory func() T
}
