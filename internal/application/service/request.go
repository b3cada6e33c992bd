package service

import "context"

type requestIDKey struct{}

// WithRequestID returns ctx carrying the id of the request being served.
// Effects produced while serving it carry the id as their correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request id carried by ctx, or ""
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
