package postgres

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// newTestPool starts a PostgreSQL container with the run and lot-size tables
// created by ../migrations/postgres/*.sql as init scripts. The container is
// terminated when t finishes. Skipped with -short.
func newTestPool(t *testing.T) *Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	// The migrations package imports this one, so scripts come from disk.
	scripts, err := filepath.Glob(filepath.Join("..", "migrations", "postgres", "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, scripts, "no postgres scripts found")
	sort.Strings(scripts)

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("momentum_test"),
		postgres.WithUsername("momentum"),
		postgres.WithPassword("momentum"),
		postgres.WithInitScripts(scripts...),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "connect to postgres")
	t.Cleanup(pool.Close)

	return pool
}

func ptr[T any](v T) *T {
	return &v
}
