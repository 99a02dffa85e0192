package version

import "fmt"

// Any avoids optimistic concurrency checks when requiring a version.Check instance.
var Any = CheckAny{}

// NoStream requires the Event Stream not to exist when appending.
var NoStream = CheckExact(NoEventNumber)

// Check can be used to perform optimistic concurrency checks when writing to
// the Event Store using the event.Appender interface.
type Check interface {
	isVersionCheck()
}

// CheckAny is a Check variant that will avoid optimistic concurrency checks when used.
type CheckAny struct{}

func (CheckAny) isVersionCheck() {}

// CheckExact is a Check variant that will ensure the specified EventNumber
// is the last one recorded in the Event Stream.
type CheckExact EventNumber

func (CheckExact) isVersionCheck() {}

// ConflictError is an error returned by an Event Store when appending
// some events using an expected Event Stream version that does not match
// the current state of the Event Stream.
type ConflictError struct {
	Expected EventNumber
	Actual   EventNumber
}

func (err ConflictError) Error() string {
	return fmt.Sprintf(
		"version.Check: conflict detected; expected last event number: %d, actual: %d",
		err.Expected,
		err.Actual,
	)
}

// Verify returns a ConflictError if the Check does not hold
// against the last EventNumber of the Event Stream.
func Verify(expected Check, actual EventNumber) error {
	v, ok := expected.(CheckExact)
	if !ok || EventNumber(v) == actual {
		return nil
	}

	return ConflictError{
		Expected: EventNumber(v),
		Actual:   actual,
	}
}
