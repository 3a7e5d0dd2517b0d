package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/database"
	"github.com/davidleathers/commission-protection-backend/internal/testutil/containers"
)

// tables in truncation order
var tables = []string{
	"alerts",
	"commission_protections",
	"property_visits",
	"showings",
	"potential_breaches",
	"contracts",
}

// TestDB is a migrated PostgreSQL container with a pgx pool
type TestDB struct {
	t    *testing.T
	Pool *pgxpool.Pool
	URL  string
}

// NewTestDB starts a postgres container, applies every migration and
// registers cleanup. Integration tests are skipped under -short.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := containers.NewPostgresContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	m, err := database.NewMigrator(container.ConnectionString)
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	pool, err := pgxpool.New(ctx, container.ConnectionString)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return &TestDB{t: t, Pool: pool, URL: container.ConnectionString}
}

// TruncateTables empties every application table
func (tdb *TestDB) TruncateTables() {
	tdb.t.Helper()
	for _, table := range tables {
		_, err := tdb.Pool.Exec(context.Background(), fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		require.NoError(tdb.t, err)
	}
}

// AssertRowCount asserts the number of rows in a table
func (tdb *TestDB) AssertRowCount(table string, expected int) {
	tdb.t.Helper()

	var count int
	err := tdb.Pool.QueryRow(context.Background(), fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
	require.NoError(tdb.t, err)
	require.Equal(tdb.t, expected, count, "expected %d rows in %s, got %d", expected, table, count)
}
