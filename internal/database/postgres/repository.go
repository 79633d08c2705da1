package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Repository provides PostgreSQL-backed gate state storage
type Repository struct {
	pool *Pool
}

// NewRepository creates a new PostgreSQL auth repository
func NewRepository(pool *Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the value stored under key, or nil if absent
func (r *Repository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.pool.db.QueryRowContext(ctx, "SELECT value FROM auth_kv WHERE key = $1", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

// Set upserts all values in one transaction
func (r *Repository) Set(ctx context.Context, values map[string][]byte) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO auth_kv (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`
	for k, v := range values {
		if v == nil {
			v = []byte{}
		}
		if _, err := tx.ExecContext(ctx, query, k, v); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("set %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Clear deletes all keys in a single statement
func (r *Repository) Clear(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := r.pool.db.ExecContext(ctx, "DELETE FROM auth_kv WHERE key = ANY($1)", pq.Array(keys)); err != nil {
		return fmt.Errorf("clear keys: %w", err)
	}
	return nil
}
