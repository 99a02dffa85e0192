package stream

import (
	"fmt"

	"github.com/get-eventually/go-eventstore"
)

// Fallback produces the stream name of an Aggregate type
// that is not listed in a Mapping.
type Fallback interface {
	StreamFor(aggregateType string) (string, error)
}

// FallbackFunc is a functional Fallback implementation.
type FallbackFunc func(aggregateType string) (string, error)

// StreamFor implements the Fallback interface.
func (fn FallbackFunc) StreamFor(aggregateType string) (string, error) {
	return fn(aggregateType)
}

var (
	_ Fallback = Verbatim{}
	_ Fallback = Prefixed("")
	_ Fallback = NoFallback{}
)

// Verbatim uses the Aggregate type itself as the stream name.
type Verbatim struct{}

// StreamFor returns the Aggregate type unchanged.
func (Verbatim) StreamFor(aggregateType string) (string, error) {
	return aggregateType, nil
}

// Prefixed uses the Aggregate type, prefixed with the string value, as the stream name.
type Prefixed string

// StreamFor returns the prefixed Aggregate type.
func (p Prefixed) StreamFor(aggregateType string) (string, error) {
	return string(p) + aggregateType, nil
}

// NoFallback refuses to route Aggregate types that are not explicitly mapped.
type NoFallback struct{}

// StreamFor always returns an eventstore.ErrNotFound error.
func (NoFallback) StreamFor(aggregateType string) (string, error) {
	return "", fmt.Errorf("stream.NoFallback: no stream mapped for aggregate type %q, %w",
		aggregateType, eventstore.ErrNotFound)
}
