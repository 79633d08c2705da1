// Package mock provides an in-memory AuthRepository with error injection for tests.
package mock

import (
	"context"
	"sync"

	"github.com/kozaktomas/facegate/internal/database/memory"
)

// MockRepository wraps memory.Repository with error injection and call counts.
type MockRepository struct {
	*memory.Repository

	mu     sync.Mutex
	sets   int
	clears int

	// Error injection
	GetError   error
	SetError   error
	ClearError error
}

// NewMockRepository creates an empty repository
func NewMockRepository() *MockRepository {
	return &MockRepository{Repository: memory.New()}
}

// Get returns a copy of the stored value, or nil if absent
func (m *MockRepository) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	return m.Repository.Get(ctx, key)
}

// Set stores all values in one batch
func (m *MockRepository) Set(ctx context.Context, values map[string][]byte) error {
	if m.SetError != nil {
		return m.SetError
	}
	if err := m.Repository.Set(ctx, values); err != nil {
		return err
	}
	m.mu.Lock()
	m.sets++
	m.mu.Unlock()
	return nil
}

// Clear removes all keys in one batch
func (m *MockRepository) Clear(ctx context.Context, keys ...string) error {
	if m.ClearError != nil {
		return m.ClearError
	}
	if err := m.Repository.Clear(ctx, keys...); err != nil {
		return err
	}
	m.mu.Lock()
	m.clears++
	m.mu.Unlock()
	return nil
}

// Put stores a raw value, bypassing error injection and counts.
func (m *MockRepository) Put(key string, value []byte) {
	_ = m.Repository.Set(context.Background(), map[string][]byte{key: value})
}

// Raw returns the stored bytes, ignoring GetError.
func (m *MockRepository) Raw(key string) []byte {
	v, _ := m.Repository.Get(context.Background(), key)
	return v
}

// Sets returns the number of successful Set batches.
func (m *MockRepository) Sets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

// Clears returns the number of successful Clear calls.
func (m *MockRepository) Clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}
