// Package aggregate contains the Aggregate Root abstractions and an
// Event-sourced Repository persisting them through the Event Stream
// resolved for their Aggregate type.
package aggregate
