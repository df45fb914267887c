package token

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrTokenNotFound is returned when a token record is not found.
var ErrTokenNotFound = errors.New("token not found")

// ErrTokenRevoked is returned when attempting to revoke an already revoked token.
var ErrTokenRevoked = errors.New("token is revoked")

// Repository provides operations on the api_tokens table.
type Repository interface {
	Create(ctx context.Context, t *Token) error
	FindByPrefix(ctx context.Context, prefix string) ([]Token, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Token, error)
	Revoke(ctx context.Context, id uuid.UUID, userID uuid.UUID) error
}
