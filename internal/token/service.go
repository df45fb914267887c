package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/resreg/resreg/internal/user"
)

// ErrInvalidToken is returned when a raw token does not match any active record.
var ErrInvalidToken = errors.New("invalid or revoked API token")

// Service provides personal access token operations.
type Service struct {
	tokens     Repository
	users      user.Repository
	bcryptCost int
}

// NewService creates a new token Service.
func NewService(tokens Repository, users user.Repository, bcryptCost int) *Service {
	return &Service{tokens: tokens, users: users, bcryptCost: bcryptCost}
}

// Generate creates a new raw token. Returns the raw value, its prefix (first
// 8 chars) and the bcrypt hash. The raw value is shown to the caller exactly
// once; only prefix and hash are stored.
func (s *Service) Generate() (rawToken, prefix, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", fmt.Errorf("generating random bytes: %w", err)
	}

	rawToken = "rr_" + base64.RawURLEncoding.EncodeToString(b)
	prefix = rawToken[:8]

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(rawToken), s.bcryptCost)
	if err != nil {
		return "", "", "", fmt.Errorf("hashing token: %w", err)
	}
	hash = string(hashBytes)

	return rawToken, prefix, hash, nil
}

// Issue creates and persists a named token for a user, returning the token
// record and the raw value.
func (s *Service) Issue(ctx context.Context, userID uuid.UUID, name string) (*Token, string, error) {
	rawToken, prefix, hash, err := s.Generate()
	if err != nil {
		return nil, "", err
	}

	t := &Token{UserID: userID, Name: name, Prefix: prefix, Hash: hash}
	if err := s.tokens.Create(ctx, t); err != nil {
		return nil, "", fmt.Errorf("creating token: %w", err)
	}

	return t, rawToken, nil
}

// Authenticate resolves a raw token to its owning user. It extracts the
// prefix, looks up candidates, and bcrypt-compares each one.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*user.User, error) {
	if len(rawToken) < 8 {
		return nil, ErrInvalidToken
	}

	candidates, err := s.tokens.FindByPrefix(ctx, rawToken[:8])
	if err != nil {
		return nil, fmt.Errorf("finding tokens by prefix: %w", err)
	}

	for _, t := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(t.Hash), []byte(rawToken)) == nil {
			u, err := s.users.GetByID(ctx, t.UserID)
			if err != nil {
				return nil, fmt.Errorf("fetching token owner: %w", err)
			}
			return u, nil
		}
	}

	return nil, ErrInvalidToken
}
