package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when a user record is not found.
var ErrUserNotFound = errors.New("user not found")

// Repository provides operations on the users table.
type Repository interface {
	// UpsertFromProfile inserts the user or, when a row with the same
	// directory id exists, attaches u.SessionID to it — but only when the
	// existing row's recorded email equals sessionEmail. On an email mismatch
	// the stored session id is left untouched. Returns the persisted row
	// either way.
	UpsertFromProfile(ctx context.Context, u *User, sessionEmail string) (*User, error)

	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByDirectoryID(ctx context.Context, directoryID string) (*User, error)
	GetBySessionID(ctx context.Context, sessionID string) (*User, error)
	List(ctx context.Context) ([]User, error)

	SetFavorites(ctx context.Context, id uuid.UUID, projectIDs []uuid.UUID) error
	TouchRecent(ctx context.Context, id uuid.UUID, projectID uuid.UUID) error
}
