package database

import (
	"context"
	"fmt"
)

// Keys persisted through an AuthRepository.
const (
	KeyTemplate   = "facegate.template"
	KeyEnrolledAt = "facegate.enrolled_at"
	KeyAttempts   = "facegate.attempts"
	KeyEnrolled   = "facegate.enrolled"

	// KeySalt holds the passphrase salt of a SealedRepository. It is stored
	// unsealed and survives ClearAll.
	KeySalt = "facegate.salt"
)

// AuthKeys are the keys removed together by ClearAll.
var AuthKeys = []string{KeyTemplate, KeyEnrolledAt, KeyAttempts, KeyEnrolled}

// AuthReader provides read-only access to persisted gate state
type AuthReader interface {
	// Get returns the value stored under key, or nil if absent
	Get(ctx context.Context, key string) ([]byte, error)
}

// AuthRepository provides read-write access to persisted gate state.
// Implementations must be safe for concurrent use.
type AuthRepository interface {
	AuthReader

	// Set stores all values in one atomic batch
	Set(ctx context.Context, values map[string][]byte) error

	// Clear removes all given keys in one atomic step. Missing keys are ignored.
	Clear(ctx context.Context, keys ...string) error
}

// ClearAll removes the template, its timestamp, the attempt ledger and the
// enrolled flag atomically.
func ClearAll(ctx context.Context, repo AuthRepository) error {
	if err := repo.Clear(ctx, AuthKeys...); err != nil {
		return fmt.Errorf("clear auth state: %w", err)
	}
	return nil
}
