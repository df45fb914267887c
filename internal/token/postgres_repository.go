package token

import (
	"context"
	"fmt"

	"github.com/google/uuid"
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

// Create inserts a new token record.
func (r *PostgresRepository) Create(ctx context.Context, t *Token) error {
	query := `
		INSERT INTO api_tokens (user_id, name, prefix, hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query, t.UserID, t.Name, t.Prefix, t.Hash).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting token: %w", err)
	}

	return nil
}

// FindByPrefix returns active (non-revoked) tokens matching the lookup prefix.
func (r *PostgresRepository) FindByPrefix(ctx context.Context, prefix string) ([]Token, error) {
	query := `
		SELECT id, user_id, name, prefix, hash, created_at, revoked_at
		FROM api_tokens
		WHERE prefix = $1 AND revoked_at IS NULL`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("finding tokens by prefix: %w", err)
	}
	defer rows.Close()

	var tokens []Token
	for rows.Next() {
		var t Token
		err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Prefix, &t.Hash, &t.CreatedAt, &t.RevokedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating token rows: %w", err)
	}

	if tokens == nil {
		tokens = []Token{}
	}

	return tokens, nil
}

// ListByUser retrieves a user's tokens, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Token, error) {
	query := `
		SELECT id, user_id, name, prefix, hash, created_at, revoked_at
		FROM api_tokens
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing tokens: %w", err)
	}
	defer rows.Close()

	var tokens []Token
	for rows.Next() {
		var t Token
		err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Prefix, &t.Hash, &t.CreatedAt, &t.RevokedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating token rows: %w", err)
	}

	if tokens == nil {
		tokens = []Token{}
	}

	return tokens, nil
}

// Revoke sets revoked_at on a token owned by userID. Returns ErrTokenNotFound
// if no such token exists and ErrTokenRevoked if already revoked.
func (r *PostgresRepository) Revoke(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	query := `
		UPDATE api_tokens
		SET revoked_at = NOW()
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL`

	result, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		err := r.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM api_tokens WHERE id = $1 AND user_id = $2)`,
			id, userID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking token existence: %w", err)
		}
		if !exists {
			return ErrTokenNotFound
		}
		return ErrTokenRevoked
	}

	return nil
}
