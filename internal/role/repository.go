package role

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrRoleNotFound is returned when a project role record is not found.
var ErrRoleNotFound = errors.New("project role not found")

// Repository provides operations on the project_roles table and its user join.
type Repository interface {
	// Upsert atomically finds-or-creates the role keyed by (ProjectID, URN),
	// refreshing name/description/directory id from the directory snapshot.
	// On return r carries the persisted row.
	Upsert(ctx context.Context, r *ProjectRole) error

	GetByID(ctx context.Context, id uuid.UUID) (*ProjectRole, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]ProjectRole, error)

	// AssignUser associates a user with a role. Idempotent.
	AssignUser(ctx context.Context, userID, roleID uuid.UUID) error

	// UserHasRoleInProject reports whether an exact (user, project, roleType)
	// association exists. Read-only; unknown ids simply yield false.
	UserHasRoleInProject(ctx context.Context, userID, projectID uuid.UUID, roleType string) (bool, error)
}
