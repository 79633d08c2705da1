//go:build integration

package mariadb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/facematch"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mariadb:11",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MARIADB_USER":          "test",
			"MARIADB_PASSWORD":      "test",
			"MARIADB_DATABASE":      "testdb",
			"MARIADB_ROOT_PASSWORD": "root",
		},
		WaitingFor: wait.ForListeningPort("3306/tcp").WithStartupTimeout(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("test:test@tcp(%s:%s)/testdb?parseTime=true", host, port.Port())

	// The port opens before the server accepts logins.
	var pool *Pool
	for range 30 {
		pool, err = NewPool(dsn, 0, 0)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}
	return pool, cleanup
}

func TestRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewRepository(pool)
	store := database.NewEnrollmentStore(repo, nil)

	t.Run("EnrollmentRoundTrip", func(t *testing.T) {
		d := facematch.NewDescriptor("geometry", facematch.Point{1, 2}, facematch.Point{3, 4})
		if err := store.Save(ctx, d); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}

		ok, err := store.Exists(ctx)
		if err != nil || !ok {
			t.Fatalf("expected enrolled, got %v (err %v)", ok, err)
		}

		got, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Failed to load: %v", err)
		}
		if got == nil || got.Descriptor.String() != d.String() {
			t.Errorf("expected %v, got %v", d, got)
		}
	})

	t.Run("ClearAll", func(t *testing.T) {
		if err := database.ClearAll(ctx, repo); err != nil {
			t.Fatalf("Failed to clear: %v", err)
		}
		ok, err := store.Exists(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Error("expected not enrolled after ClearAll")
		}
	})

	t.Run("ClearNoKeys", func(t *testing.T) {
		if err := repo.Clear(ctx); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
