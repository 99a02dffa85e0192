package stream

import (
	"fmt"
	"strings"

	"github.com/get-eventually/go-eventstore"
)

// Router resolves Aggregate types into Event Stream names.
//
// A Router is immutable after construction and safe for concurrent use.
type Router struct {
	mapping  Mapping
	fallback Fallback
}

// NewRouter creates a new Router using the provided Mapping and Fallback.
//
// A nil Fallback defaults to Verbatim.
func NewRouter(mapping Mapping, fallback Fallback) *Router {
	if fallback == nil {
		fallback = Verbatim{}
	}

	return &Router{
		mapping:  mapping,
		fallback: fallback,
	}
}

// Mapping returns the Mapping used by the Router.
func (r *Router) Mapping() Mapping { return r.mapping }

// Resolve returns the name of the Event Stream the specified Aggregate type
// is persisted to.
//
// The exact match in the Mapping wins; otherwise the Fallback decides.
func (r *Router) Resolve(aggregateType string) (string, error) {
	if aggregateType == "" {
		return "", fmt.Errorf("stream.Router: empty aggregate type, %w", eventstore.ErrInvalidArgument)
	}

	if name, ok := r.mapping.Lookup(aggregateType); ok {
		return name, nil
	}

	name, err := r.fallback.StreamFor(aggregateType)
	if err != nil {
		return "", fmt.Errorf("stream.Router: failed to resolve aggregate type %q, %w", aggregateType, err)
	}

	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("stream.Router: aggregate type %q resolved to a blank stream, %w",
			aggregateType, eventstore.ErrInvalidArgument)
	}

	return name, nil
}
