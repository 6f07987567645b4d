package clickhouse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testImage    = "clickhouse/clickhouse-server:24.1-alpine"
	testDatabase = "momentum_test"
)

// newTestConn starts a ClickHouse container, creates the price and equity
// tables and returns a connection bound to the test database. The container
// is terminated when t finishes. Skipped with -short.
func newTestConn(t *testing.T) *Conn {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping clickhouse integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        testImage,
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"CLICKHOUSE_DB":                        testDatabase,
				"CLICKHOUSE_DEFAULT_ACCESS_MANAGEMENT": "1",
			},
			WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "start clickhouse container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate clickhouse container: %v", err)
		}
	})

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "")
	require.NoError(t, err)

	conn, err := NewConn(ctx, fmt.Sprintf("clickhouse://default:@%s/%s", endpoint, testDatabase))
	require.NoError(t, err, "connect to clickhouse")
	t.Cleanup(func() { _ = conn.Close() })

	applyScripts(t, conn)
	return conn
}

// applyScripts runs ../migrations/clickhouse/*.sql. The migrations package
// imports this one, so the scripts are read from disk instead of embed.
func applyScripts(t *testing.T, conn *Conn) {
	t.Helper()

	files, err := filepath.Glob(filepath.Join("..", "migrations", "clickhouse", "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files, "no clickhouse scripts found")
	sort.Strings(files)

	ctx := context.Background()
	for _, file := range files {
		script, err := os.ReadFile(file)
		require.NoError(t, err)
		for _, stmt := range SplitStatements(string(script)) {
			require.NoError(t, conn.Exec(ctx, stmt), "apply %s", filepath.Base(file))
		}
	}
}
