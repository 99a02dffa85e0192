package correlation

import (
	"context"

	"github.com/get-eventually/go-eventstore/event"
)

var _ event.Processor = Processor{}

// Processor is an event.Processor wrapper that adds the Correlation
// and Causation ids to the context of the wrapped Processor, if found
// in the Metadata of the processed Event.
type Processor struct {
	Processor event.Processor
}

// Process calls the wrapped Processor with the augmented context.
func (p Processor) Process(ctx context.Context, evt event.Persisted) error {
	if correlationID, ok := evt.Metadata.Get(CorrelationIDKey); ok {
		ctx = WithCorrelationID(ctx, correlationID)
	}

	// Events appended by the Processor are caused by the processed Event.
	if eventID, ok := evt.Metadata.Get(event.IDKey); ok {
		ctx = WithCausationID(ctx, eventID)
	}

	return p.Processor.Process(ctx, evt)
}
