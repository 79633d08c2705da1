package database

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/kozaktomas/facegate/internal/config"
)

// Backend opens an AuthRepository for a store configuration. The returned
// close function releases its connections and may be nil.
type Backend func(ctx context.Context, cfg *config.StoreConfig) (AuthRepository, func() error, error)

var (
	backendsMu sync.RWMutex
	backends   = map[string]Backend{}
)

// RegisterBackend registers a store backend under name.
// This is called by the CLI to keep this package free of driver imports.
func RegisterBackend(name string, open Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = open
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Store is an opened AuthRepository.
type Store struct {
	AuthRepository
	Backend string
	Sealed  bool
	close   func() error
}

// Close releases the backend connections.
func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open opens the configured backend and seals it when a key or passphrase is
// configured.
func Open(ctx context.Context, cfg *config.StoreConfig) (*Store, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Backend))

	backendsMu.RLock()
	open, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown store backend %q (available: %s)", cfg.Backend, strings.Join(Backends(), ", "))
	}

	repo, closeFn, err := open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", name, err)
	}
	store := &Store{AuthRepository: repo, Backend: name, close: closeFn}

	if !cfg.Sealed() {
		if !slices.Contains(volatileBackends, name) {
			log.Printf("database: %s store is not sealed, the template is stored in plain text", name)
		}
		return store, nil
	}

	sealed, err := seal(ctx, repo, cfg)
	if err != nil {
		if cerr := store.Close(); cerr != nil {
			log.Printf("database: failed to close %s store: %v", name, cerr)
		}
		return nil, err
	}
	store.AuthRepository = sealed
	store.Sealed = true
	return store, nil
}

// volatileBackends keep nothing on disk.
var volatileBackends = []string{"memory"}

func seal(ctx context.Context, repo AuthRepository, cfg *config.StoreConfig) (*SealedRepository, error) {
	if cfg.Key != "" {
		key, err := ParseKey(cfg.Key)
		if err != nil {
			return nil, err
		}
		return NewSealedRepository(repo, key)
	}
	return NewSealedRepositoryWithPassphrase(ctx, repo, cfg.Passphrase)
}
