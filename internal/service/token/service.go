package token

import (
	"context"
	"errors"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

type Service interface {
	// ValidateAndGetUserID validates a bearer token from the Authorization header
	// and returns the user it was issued to.
	// Returns ErrMissingToken if the header is empty.
	// Returns ErrInvalidToken if the header is malformed or the token is invalid or expired.
	ValidateAndGetUserID(ctx context.Context, authHeader string) (string, error)
}
