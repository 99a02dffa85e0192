package correlation

import (
	"context"

	"github.com/get-eventually/go-eventstore/message"
)

// Metadata keys used to record correlation data.
const (
	CorrelationIDKey = "Correlation-Id"
	CausationIDKey   = "Causation-Id"
)

type (
	correlationCtxKey struct{}
	causationCtxKey   struct{}
)

// WithCorrelationID returns a context carrying the Correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationCtxKey{}, id)
}

// WithCausationID returns a context carrying the Causation id.
func WithCausationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, causationCtxKey{}, id)
}

// CorrelationID returns the Correlation id carried by the context, if any.
func CorrelationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationCtxKey{}).(string)
	return id, ok && id != ""
}

// CausationID returns the Causation id carried by the context, if any.
func CausationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(causationCtxKey{}).(string)
	return id, ok && id != ""
}

// IDs returns the Correlation and Causation ids recorded in the Metadata.
func IDs(metadata message.Metadata) (correlationID, causationID string) {
	correlationID, _ = metadata.Get(CorrelationIDKey)
	causationID, _ = metadata.Get(CausationIDKey)

	return correlationID, causationID
}
