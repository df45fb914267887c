package token

import (
	"time"

	"github.com/google/uuid"
)

// Token represents a row in the api_tokens table: a personal access token
// for machine clients, stored as a bcrypt hash plus a lookup prefix.
type Token struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      string
	Prefix    string
	Hash      string
	CreatedAt time.Time
	RevokedAt *time.Time
}
