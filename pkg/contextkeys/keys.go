// Package contextkeys owns every request-scoped context value so that
// packages which cannot import each other (observability, middleware,
// httputil) agree on keys without sharing types.
package contextkeys

import "context"

type key int

const (
	identityKey key = iota
	requestIDKey
	userIDKey
	loggerKey
)

// WithIdentity stores the authenticated identity (an *auth.Identity)
func WithIdentity(ctx context.Context, identity interface{}) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// Identity returns the value stored by WithIdentity, or nil
func Identity(ctx context.Context) interface{} {
	return ctx.Value(identityKey)
}

// WithRequestID stores the request id
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the request id, or "" outside a request
func GetRequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDKey).(string)
	return requestID
}

// WithUserID stores the authenticated user's id for log correlation
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID reports the authenticated user's id
func GetUserID(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDKey).(int64)
	return userID, ok
}

// WithLogger stores a request logger (an *observability.Logger)
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// Logger returns the value stored by WithLogger, or nil
func Logger(ctx context.Context) interface{} {
	return ctx.Value(loggerKey)
}
