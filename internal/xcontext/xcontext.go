// Package xcontext carries request-scoped identifiers through a context.
package xcontext

import "context"

type key[T comparable] struct{ name string }

var (
	requestIDKey = key[string]{"request-id"}
	sessionIDKey = key[string]{"session-id"}
	userIDKey    = key[string]{"user-id"}
)

func with[T comparable](ctx context.Context, k key[T], v T) context.Context {
	return context.WithValue(ctx, k, v)
}

// from reports false for a missing or zero value.
func from[T comparable](ctx context.Context, k key[T]) (T, bool) {
	var zero T
	v, ok := ctx.Value(k).(T)
	return v, ok && v != zero
}

func SetRequestID(ctx context.Context, id string) context.Context {
	return with(ctx, requestIDKey, id)
}

func GetRequestID(ctx context.Context) (string, bool) {
	return from(ctx, requestIDKey)
}

// SetSessionID stores the identity a client announced for itself. It is not
// authenticated.
func SetSessionID(ctx context.Context, id string) context.Context {
	return with(ctx, sessionIDKey, id)
}

func GetSessionID(ctx context.Context) (string, bool) {
	return from(ctx, sessionIDKey)
}

// SetUserID stores the authenticated user id, taken from a verified bearer token.
func SetUserID(ctx context.Context, id string) context.Context {
	return with(ctx, userIDKey, id)
}

func GetUserID(ctx context.Context) (string, bool) {
	return from(ctx, userIDKey)
}
