// Package memory provides a process-lifetime AuthRepository.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// Repository keeps values in a map guarded by a RWMutex. Values are copied
// on the way in and out.
type Repository struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// New creates an empty repository.
func New() *Repository {
	return &Repository{values: make(map[string][]byte)}
}

// Get returns a copy of the stored value, or nil if absent.
func (r *Repository) Get(ctx context.Context, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[key]
	if !ok {
		return nil, nil
	}
	return slices.Clone(v), nil
}

// Set stores all values under one lock.
func (r *Repository) Set(ctx context.Context, values map[string][]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range values {
		r.values[k] = slices.Clone(v)
	}
	return nil
}

// Clear removes all keys under one lock.
func (r *Repository) Clear(ctx context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		delete(r.values, k)
	}
	return nil
}

// Keys returns the stored keys, sorted.
func (r *Repository) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.values))
}
