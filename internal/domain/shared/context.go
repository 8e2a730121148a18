package shared

import "context"

type correlationKey struct{}

// WithCorrelationID tags ctx with the id used to trace one event through the pipeline
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFrom returns the id set by WithCorrelationID, or ""
func CorrelationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
