package project

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrProjectNotFound is returned when a project record is not found. The
// targeted syncer also returns it when the directory no longer resolves a
// project's correlation id.
var ErrProjectNotFound = errors.New("project not found")

// Update carries the mutable fields of a project PATCH. Nil fields are left
// unchanged.
type Update struct {
	Title       *string
	Description *string
	EndDate     *time.Time
}

// Repository provides operations on the projects table.
type Repository interface {
	// UpsertByCorrelationID atomically finds-or-creates the project keyed by
	// p.CorrelationID and overwrites title/description with the given values
	// (authoritative-source-wins). On return p carries the persisted row.
	UpsertByCorrelationID(ctx context.Context, p *Project) error

	GetByID(ctx context.Context, id uuid.UUID) (*Project, error)
	GetByCorrelationID(ctx context.Context, correlationID string) (*Project, error)
	List(ctx context.Context) ([]Project, error)

	// ListCorrelated returns every project that has a correlation id, for the
	// background re-sync sweep.
	ListCorrelated(ctx context.Context) ([]Project, error)

	Update(ctx context.Context, id uuid.UUID, upd Update) (*Project, error)
}
