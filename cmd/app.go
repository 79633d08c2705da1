package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kozaktomas/facegate/internal/camera"
	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/database/mariadb"
	"github.com/kozaktomas/facegate/internal/database/memory"
	"github.com/kozaktomas/facegate/internal/database/postgres"
	"github.com/kozaktomas/facegate/internal/database/sqlite"
	"github.com/kozaktomas/facegate/internal/facematch"
	"github.com/kozaktomas/facegate/internal/fingerprint"
	"github.com/kozaktomas/facegate/internal/gate"
)

func init() {
	registerBackends()
}

// registerBackends registers every store backend the CLI can open.
func registerBackends() {
	database.RegisterBackend("sqlite", func(ctx context.Context, cfg *config.StoreConfig) (database.AuthRepository, func() error, error) {
		repo, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	})

	database.RegisterBackend("postgres", func(ctx context.Context, cfg *config.StoreConfig) (database.AuthRepository, func() error, error) {
		if cfg.PostgresURL == "" {
			return nil, nil, errors.New("DATABASE_URL environment variable is required")
		}
		pool, err := postgres.Open(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewRepository(pool), pool.Close, nil
	})

	database.RegisterBackend("mariadb", func(ctx context.Context, cfg *config.StoreConfig) (database.AuthRepository, func() error, error) {
		if cfg.MariaDBDSN == "" {
			return nil, nil, errors.New("FACEGATE_MARIADB_DSN environment variable is required")
		}
		pool, err := mariadb.NewPool(cfg.MariaDBDSN, cfg.MaxOpenConns, cfg.MaxIdleConns)
		if err != nil {
			return nil, nil, err
		}
		return mariadb.NewRepository(pool), pool.Close, nil
	})

	// memory keeps state for the lifetime of the process, useful with serve.
	database.RegisterBackend("memory", func(ctx context.Context, cfg *config.StoreConfig) (database.AuthRepository, func() error, error) {
		return memory.New(), nil, nil
	})
}

// openStore opens the configured store backend.
func openStore(ctx context.Context, cfg *config.Config) (*database.Store, error) {
	store, err := database.Open(ctx, &cfg.Store)
	if err != nil {
		return nil, err
	}
	if store.Sealed {
		log.Printf("Using %s store (sealed)", store.Backend)
	} else {
		log.Printf("Using %s store", store.Backend)
	}
	return store, nil
}

// newCamera returns the folder camera, or a resource without a capture API
// when no folder is configured.
func newCamera(cfg *config.Config) *camera.Resource {
	opts := []camera.Option{
		camera.WithPreferredLabel(cfg.Camera.Label),
		camera.WithConstraints(camera.Constraints{
			MinWidth:  cfg.Camera.MinWidth,
			MinHeight: cfg.Camera.MinHeight,
		}),
	}
	if cfg.Camera.Dir == "" {
		log.Printf("FACEGATE_CAMERA_DIR is not set, no camera is available")
		return camera.NewResource(nil, opts...)
	}
	return camera.NewResource(camera.NewFolderDevice(cfg.Camera.Dir, nil), opts...)
}

// newExtractor selects the feature extractor by name.
func newExtractor(cfg *config.Config) (fingerprint.Extractor, error) {
	switch cfg.Extractor.Name {
	case fingerprint.GeometryName:
		return fingerprint.NewGeometryExtractor(), nil
	case fingerprint.EmbeddingName:
		return fingerprint.NewEmbeddingExtractor(fingerprint.NewEmbeddingClient(cfg.Extractor.EmbeddingURL), nil), nil
	}
	return nil, fmt.Errorf("unknown extractor %q (use %s or %s)", cfg.Extractor.Name, fingerprint.GeometryName, fingerprint.EmbeddingName)
}

// ledgerPolicy converts the lockout configuration.
func ledgerPolicy(cfg *config.Config) database.Policy {
	return database.Policy{
		Threshold: cfg.Lockout.Threshold,
		Window:    time.Duration(cfg.Lockout.WindowMinutes) * time.Minute,
		Capacity:  cfg.Lockout.Capacity,
	}
}

// newMachine wires the gate state machine over repo.
func newMachine(cfg *config.Config, repo database.AuthRepository) (*gate.Machine, error) {
	extractor, err := newExtractor(cfg)
	if err != nil {
		return nil, err
	}
	profile := cfg.GetMatchProfile(extractor.Name())

	return gate.New(gate.Components{
		Camera:     newCamera(cfg),
		Extractor:  extractor,
		Enrollment: database.NewEnrollmentStore(repo, time.Now),
		Ledger:     database.NewAttemptLedger(repo, ledgerPolicy(cfg), time.Now),
		Matcher:    facematch.NewMatcher(profile.Threshold, profile.MinVotes),
		Repository: repo,
	},
		gate.WithAcquireTimeout(cfg.Camera.Timeout()),
		gate.WithPollInterval(time.Duration(cfg.Session.PollIntervalMs)*time.Millisecond),
		gate.WithProgressInterval(time.Duration(cfg.Session.ProgressIntervalMs)*time.Millisecond),
		gate.WithEnrollRounds(cfg.Session.EnrollRounds),
	)
}
