package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Repository provides MariaDB-backed gate state storage
type Repository struct {
	pool *Pool
}

// NewRepository creates a new MariaDB auth repository
func NewRepository(pool *Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the value stored under key, or nil if absent
func (r *Repository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.pool.db.QueryRowContext(ctx, "SELECT auth_value FROM auth_kv WHERE auth_key = ?", key).Scan(&value)
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
	tx, err := r.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	query := `
		INSERT INTO auth_kv (auth_key, auth_value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP(6))
		ON DUPLICATE KEY UPDATE auth_value = VALUES(auth_value), updated_at = VALUES(updated_at)
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

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	query := "DELETE FROM auth_kv WHERE auth_key IN (" + placeholders + ")"
	if _, err := r.pool.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear keys: %w", err)
	}
	return nil
}
