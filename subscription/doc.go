// Package subscription tracks the position of a consumer reading
// an Event Stream, or the virtual feed of all Event Streams, and provides
// the drivers that push new Events to an event.Processor.
//
// A Subscription is either an AllStreams subscription, which only records
// the last global commit position, or a SingleStream subscription, which
// also records the last event number of its stream.
//
// Backends implement the Subscriber interface, usually through Open and
// Deliver. Polling works with any event.Reader; CatchUp adds checkpointing
// on top of another Subscriber, and Volatile starts from the current tail
// of the Event Store.
package subscription
