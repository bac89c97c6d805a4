package database

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"testing"
	"testing/fstest"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMigrations_Embedded(t *testing.T) {
	names, err := ListMigrations(Migrations(), ".")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"0001_accounts.up.sql",
		"0002_promo_codes.up.sql",
		"0003_global_aggregate.up.sql",
	}, names)
}

func TestListMigrations_FiltersAndSorts(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/0002_b.up.sql":   {Data: []byte("SELECT 2")},
		"sql/0001_a.up.sql":   {Data: []byte("SELECT 1")},
		"sql/0001_a.down.sql": {Data: []byte("SELECT 0")},
		"sql/README.md":       {Data: []byte("docs")},
	}

	names, err := ListMigrations(fsys, "sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"sql/0001_a.up.sql", "sql/0002_b.up.sql"}, names)
}

func TestMigrator_Apply_Postgres(t *testing.T) {
	dsn := os.Getenv("TAPCOIN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TAPCOIN_TEST_POSTGRES_DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	m := NewMigrator(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, m.Apply(ctx, Migrations()))
	require.NoError(t, m.Apply(ctx, Migrations()), "applying twice is a no-op")

	var recorded int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT count(*) FROM schema_migrations WHERE name LIKE '000%'`).Scan(&recorded))
	assert.Equal(t, 3, recorded)

	var rows int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT count(*) FROM global_aggregate`).Scan(&rows))
	assert.Equal(t, 1, rows)
}
