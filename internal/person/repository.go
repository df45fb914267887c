package person

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrPersonNotFound is returned when a person record is not found.
var ErrPersonNotFound = errors.New("person not found")

// Repository provides operations on the persons table.
type Repository interface {
	Create(ctx context.Context, p *Person) error
	GetByID(ctx context.Context, id uuid.UUID) (*Person, error)
	GetByEmail(ctx context.Context, email string) (*Person, error)
}
