package person

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new person record.
func (r *PostgresRepository) Create(ctx context.Context, p *Person) error {
	query := `
		INSERT INTO persons (given_name, family_name, email, researcher_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		p.GivenName,
		p.FamilyName,
		p.Email,
		p.ResearcherID,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting person: %w", err)
	}

	return nil
}

// GetByID retrieves a single person by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Person, error) {
	query := `
		SELECT id, given_name, family_name, email, researcher_id, created_at, updated_at
		FROM persons
		WHERE id = $1`

	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail retrieves the most recently created person with the given email.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*Person, error) {
	query := `
		SELECT id, given_name, family_name, email, researcher_id, created_at, updated_at
		FROM persons
		WHERE email = $1
		ORDER BY created_at DESC
		LIMIT 1`

	return r.scanOne(r.pool.QueryRow(ctx, query, email))
}

func (r *PostgresRepository) scanOne(row pgx.Row) (*Person, error) {
	var p Person
	err := row.Scan(
		&p.ID, &p.GivenName, &p.FamilyName, &p.Email,
		&p.ResearcherID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPersonNotFound
		}
		return nil, fmt.Errorf("querying person: %w", err)
	}
	return &p, nil
}
