package user

import (
	"time"

	"github.com/google/uuid"
)

// Permission tiers, ordered from least to most privileged.
const (
	TierDefault = "default"
	TierAdmin   = "admin"
	TierSuper   = "super"
)

// User represents a row in the users table: a local account correlated with
// the external directory.
//
// DirectoryID is the permanent external-directory correlation id. SessionID
// is the external-session correlation id; it is nil until a login for the
// matching email attaches it.
type User struct {
	ID            uuid.UUID
	DirectoryID   string
	SessionID     *string
	Email         string
	DisplayName   string
	Tier          string
	PersonID      *uuid.UUID
	Lectorates    []string
	Organisations []string
	FavoriteIDs   []uuid.UUID
	RecentIDs     []uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
