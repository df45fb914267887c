package role

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

// Upsert inserts the role or refreshes an existing row with the same
// (project_id, urn). The unique index keeps repeated reconciliation from
// accumulating duplicate role rows.
func (r *PostgresRepository) Upsert(ctx context.Context, pr *ProjectRole) error {
	query := `
		INSERT INTO project_roles (project_id, role_type, name, description, urn, directory_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (project_id, urn) DO UPDATE
		SET role_type = EXCLUDED.role_type,
		    name = EXCLUDED.name,
		    description = EXCLUDED.description,
		    directory_id = EXCLUDED.directory_id
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query,
		pr.ProjectID,
		pr.RoleType,
		pr.Name,
		pr.Description,
		pr.URN,
		pr.DirectoryID,
	).Scan(&pr.ID, &pr.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting project role: %w", err)
	}

	return nil
}

// GetByID retrieves a single project role by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*ProjectRole, error) {
	query := `
		SELECT id, project_id, role_type, name, description, urn, directory_id, created_at
		FROM project_roles
		WHERE id = $1`

	var pr ProjectRole
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&pr.ID, &pr.ProjectID, &pr.RoleType, &pr.Name,
		&pr.Description, &pr.URN, &pr.DirectoryID, &pr.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("querying project role: %w", err)
	}

	return &pr, nil
}

// ListByProject retrieves all roles scoped to a project.
func (r *PostgresRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]ProjectRole, error) {
	query := `
		SELECT id, project_id, role_type, name, description, urn, directory_id, created_at
		FROM project_roles
		WHERE project_id = $1
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing project roles: %w", err)
	}
	defer rows.Close()

	var roles []ProjectRole
	for rows.Next() {
		var pr ProjectRole
		err := rows.Scan(
			&pr.ID, &pr.ProjectID, &pr.RoleType, &pr.Name,
			&pr.Description, &pr.URN, &pr.DirectoryID, &pr.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning project role row: %w", err)
		}
		roles = append(roles, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating project role rows: %w", err)
	}

	if roles == nil {
		roles = []ProjectRole{}
	}

	return roles, nil
}

// AssignUser inserts the (user, role) association if it is not already there.
func (r *PostgresRepository) AssignUser(ctx context.Context, userID, roleID uuid.UUID) error {
	query := `
		INSERT INTO user_project_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, userID, roleID); err != nil {
		return fmt.Errorf("assigning user to role: %w", err)
	}

	return nil
}

// UserHasRoleInProject runs a single EXISTS query against the role join.
// It performs no writes so it is safe on the per-request authorization path.
func (r *PostgresRepository) UserHasRoleInProject(ctx context.Context, userID, projectID uuid.UUID, roleType string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1
			FROM user_project_roles upr
			JOIN project_roles pr ON pr.id = upr.role_id
			WHERE upr.user_id = $1 AND pr.project_id = $2 AND pr.role_type = $3
		)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, projectID, roleType).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking project role: %w", err)
	}

	return exists, nil
}
