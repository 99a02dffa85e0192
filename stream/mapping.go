package stream

import (
	"fmt"
	"strings"

	"github.com/get-eventually/go-eventstore"
)

// Route maps an Aggregate type to the name of the Event Stream
// its instances are persisted to.
type Route struct {
	AggregateType string
	Stream        string
}

// Mapping is an ordered, read-only collection of Routes.
//
// The zero value is an empty Mapping, ready to use.
type Mapping struct {
	routes []Route
	index  map[string]int
}

// NewMapping creates a new Mapping from the provided Routes,
// preserving their order.
//
// An error is returned if a Route has an empty Aggregate type or a blank
// stream name, or if the same Aggregate type is listed more than once.
func NewMapping(routes ...Route) (Mapping, error) {
	m := Mapping{
		routes: make([]Route, 0, len(routes)),
		index:  make(map[string]int, len(routes)),
	}

	for i, route := range routes {
		if route.AggregateType == "" {
			return Mapping{}, fmt.Errorf("stream.NewMapping: route #%d has an empty aggregate type, %w",
				i, eventstore.ErrInvalidArgument)
		}

		if strings.TrimSpace(route.Stream) == "" {
			return Mapping{}, fmt.Errorf("stream.NewMapping: aggregate type %q maps to a blank stream, %w",
				route.AggregateType, eventstore.ErrInvalidArgument)
		}

		if _, ok := m.index[route.AggregateType]; ok {
			return Mapping{}, fmt.Errorf("stream.NewMapping: aggregate type %q is mapped more than once, %w",
				route.AggregateType, eventstore.ErrInvalidArgument)
		}

		m.index[route.AggregateType] = len(m.routes)
		m.routes = append(m.routes, route)
	}

	return m, nil
}

// Lookup returns the stream mapped to the exact Aggregate type, if any.
func (m Mapping) Lookup(aggregateType string) (string, bool) {
	i, ok := m.index[aggregateType]
	if !ok {
		return "", false
	}

	return m.routes[i].Stream, true
}

// Routes returns a copy of the Routes in this Mapping, in insertion order.
func (m Mapping) Routes() []Route {
	routes := make([]Route, len(m.routes))
	copy(routes, m.routes)

	return routes
}

// Len returns the number of Routes in the Mapping.
func (m Mapping) Len() int { return len(m.routes) }
