package usecase

import (
	"context"

	"github.com/google/uuid"
)

// requestIDKey is a context key type for the request ID that audit logs are correlated by.
type requestIDKey struct{}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID uuid.UUID) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID stored in ctx, or uuid.Nil.
func RequestIDFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(requestIDKey{}).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}
