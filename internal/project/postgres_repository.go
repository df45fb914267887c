package project

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

// UpsertByCorrelationID inserts the project or, when a row with the same
// correlation id exists, overwrites its title and description. A single
// statement guarded by the unique index, so concurrent reconciliations of the
// same collaboration cannot create duplicates.
func (r *PostgresRepository) UpsertByCorrelationID(ctx context.Context, p *Project) error {
	query := `
		INSERT INTO projects (correlation_id, title, description, start_date, last_edited)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (correlation_id) DO UPDATE
		SET title = EXCLUDED.title,
		    description = EXCLUDED.description,
		    last_edited = NOW()
		RETURNING id, start_date, end_date, last_edited, created_at`

	err := r.pool.QueryRow(ctx, query,
		p.CorrelationID,
		p.Title,
		p.Description,
		p.StartDate,
	).Scan(&p.ID, &p.StartDate, &p.EndDate, &p.LastEdited, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting project: %w", err)
	}

	return nil
}

// GetByID retrieves a single project by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	query := `
		SELECT id, correlation_id, title, description, start_date, end_date, last_edited, created_at
		FROM projects
		WHERE id = $1`

	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// GetByCorrelationID retrieves a single project by its directory group id.
func (r *PostgresRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*Project, error) {
	query := `
		SELECT id, correlation_id, title, description, start_date, end_date, last_edited, created_at
		FROM projects
		WHERE correlation_id = $1`

	return r.scanOne(r.pool.QueryRow(ctx, query, correlationID))
}

// List retrieves all projects ordered by creation time.
func (r *PostgresRepository) List(ctx context.Context) ([]Project, error) {
	query := `
		SELECT id, correlation_id, title, description, start_date, end_date, last_edited, created_at
		FROM projects
		ORDER BY created_at ASC`

	return r.queryMany(ctx, query)
}

// ListCorrelated retrieves all projects linked to a directory group.
func (r *PostgresRepository) ListCorrelated(ctx context.Context) ([]Project, error) {
	query := `
		SELECT id, correlation_id, title, description, start_date, end_date, last_edited, created_at
		FROM projects
		WHERE correlation_id IS NOT NULL
		ORDER BY created_at ASC`

	return r.queryMany(ctx, query)
}

// Update applies non-nil fields of upd and bumps last_edited. Returns
// ErrProjectNotFound if no row matches.
func (r *PostgresRepository) Update(ctx context.Context, id uuid.UUID, upd Update) (*Project, error) {
	query := `
		UPDATE projects
		SET title = COALESCE($2, title),
		    description = COALESCE($3, description),
		    end_date = COALESCE($4, end_date),
		    last_edited = NOW()
		WHERE id = $1
		RETURNING id, correlation_id, title, description, start_date, end_date, last_edited, created_at`

	return r.scanOne(r.pool.QueryRow(ctx, query, id, upd.Title, upd.Description, upd.EndDate))
}

func (r *PostgresRepository) scanOne(row pgx.Row) (*Project, error) {
	var p Project
	err := row.Scan(
		&p.ID, &p.CorrelationID, &p.Title, &p.Description,
		&p.StartDate, &p.EndDate, &p.LastEdited, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("querying project: %w", err)
	}
	return &p, nil
}

func (r *PostgresRepository) queryMany(ctx context.Context, query string) ([]Project, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		err := rows.Scan(
			&p.ID, &p.CorrelationID, &p.Title, &p.Description,
			&p.StartDate, &p.EndDate, &p.LastEdited, &p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating project rows: %w", err)
	}

	if projects == nil {
		projects = []Project{}
	}

	return projects, nil
}
