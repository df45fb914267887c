package user

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

const userColumns = `id, directory_id, session_id, email, display_name, tier,
	person_id, lectorates, organisations, favorite_projects, recent_projects,
	created_at, updated_at`

// UpsertFromProfile inserts the user keyed by directory id. On conflict the
// session id is attached only when the stored email equals sessionEmail; the
// guard lives in the statement itself so a mismatch never overwrites anything.
func (r *PostgresRepository) UpsertFromProfile(ctx context.Context, u *User, sessionEmail string) (*User, error) {
	query := `
		INSERT INTO users (directory_id, session_id, email, display_name, tier, person_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (directory_id) DO UPDATE
		SET session_id = EXCLUDED.session_id,
		    updated_at = NOW()
		WHERE users.email = $7
		RETURNING ` + userColumns

	row := r.pool.QueryRow(ctx, query,
		u.DirectoryID,
		u.SessionID,
		u.Email,
		u.DisplayName,
		u.Tier,
		u.PersonID,
		sessionEmail,
	)

	persisted, err := r.scanOne(row)
	if err == nil {
		return persisted, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	// Conflict with the email guard refused: the row exists but was not
	// updated, so the statement returned nothing. Fetch it as-is.
	return r.GetByDirectoryID(ctx, u.DirectoryID)
}

// GetByID retrieves a single user by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// GetByDirectoryID retrieves a single user by its directory correlation id.
func (r *PostgresRepository) GetByDirectoryID(ctx context.Context, directoryID string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE directory_id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, directoryID))
}

// GetBySessionID retrieves a single user by its external-session id.
func (r *PostgresRepository) GetBySessionID(ctx context.Context, sessionID string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE session_id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, sessionID))
}

// List retrieves all users ordered by creation time.
func (r *PostgresRepository) List(ctx context.Context) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}

	if users == nil {
		users = []User{}
	}

	return users, nil
}

// SetFavorites replaces the user's favorite project list.
func (r *PostgresRepository) SetFavorites(ctx context.Context, id uuid.UUID, projectIDs []uuid.UUID) error {
	query := `UPDATE users SET favorite_projects = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, uuidsToStrings(projectIDs))
	if err != nil {
		return fmt.Errorf("setting favorites: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// TouchRecent moves projectID to the front of the user's recent list,
// keeping at most ten entries.
func (r *PostgresRepository) TouchRecent(ctx context.Context, id uuid.UUID, projectID uuid.UUID) error {
	query := `
		UPDATE users
		SET recent_projects = (ARRAY[$2::text] || array_remove(recent_projects, $2::text))[1:10],
		    updated_at = NOW()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, projectID.String())
	if err != nil {
		return fmt.Errorf("touching recent projects: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepository) scanOne(row pgx.Row) (*User, error) {
	return scanUser(row)
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var favorites, recents []string
	err := row.Scan(
		&u.ID, &u.DirectoryID, &u.SessionID, &u.Email, &u.DisplayName, &u.Tier,
		&u.PersonID, &u.Lectorates, &u.Organisations, &favorites, &recents,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user row: %w", err)
	}

	if u.FavoriteIDs, err = stringsToUUIDs(favorites); err != nil {
		return nil, fmt.Errorf("parsing favorite project ids: %w", err)
	}
	if u.RecentIDs, err = stringsToUUIDs(recents); err != nil {
		return nil, fmt.Errorf("parsing recent project ids: %w", err)
	}

	return &u, nil
}

func uuidsToStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func stringsToUUIDs(values []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
