// Package session implements the transport session store and the signed
// cookie that carries the session key to the browser.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resreg/resreg/internal/identity"
)

// PostgresStore implements identity.Store on the sessions table. Blobs are
// opaque to the store; expiry is enforced on read.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a session store backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get returns the blob stored under key, or identity.ErrSessionNotFound when
// the record is missing or expired.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT data FROM sessions WHERE id = $1 AND expires_at > NOW()`

	var data []byte
	err := s.pool.QueryRow(ctx, query, key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrSessionNotFound
		}
		return nil, fmt.Errorf("reading session: %w", err)
	}

	return data, nil
}

// Put stores the blob under key, replacing any existing record.
func (s *PostgresStore) Put(ctx context.Context, key string, data []byte, expires time.Time) error {
	query := `
		INSERT INTO sessions (id, data, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at`

	if _, err := s.pool.Exec(ctx, query, key, data, expires); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}

	return nil
}

// Delete removes the record under key. Deleting an absent key is not an error.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, key); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpired removes expired session rows. Run periodically.
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return result.RowsAffected(), nil
}
