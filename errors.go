package eventstore

import "errors"

// Error kinds returned by the packages of this module.
//
// Errors are always wrapped with additional context, so use errors.Is
// to check for a specific kind.
var (
	// ErrInvalidArgument is returned when an operation receives malformed input,
	// e.g. an empty Aggregate type or an inconsistent Subscription position.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when a lookup does not yield any result,
	// e.g. a missing relation link or an unroutable Aggregate type.
	ErrNotFound = errors.New("not found")

	// ErrIllegalState is returned when an operation is attempted on a component
	// that cannot perform it anymore, e.g. tracking events on a closed Subscription.
	ErrIllegalState = errors.New("illegal state")
)
