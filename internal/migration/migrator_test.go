package migration

import (
	"context"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/config"
	"github.com/Additional-Code/servio/internal/database"
)

func TestGooseDialect(t *testing.T) {
	cases := map[string]string{"pg": "postgres", "postgres": "postgres", "mysql": "mysql", "sqlite": "sqlite3"}
	for driver, want := range cases {
		got, err := gooseDialect(driver)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := gooseDialect("oracle")
	assert.Error(t, err)
}

func TestIsNoMigrationErr(t *testing.T) {
	assert.False(t, isNoMigrationErr(nil))
	assert.True(t, isNoMigrationErr(goose.ErrNoNextVersion))
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := migrations.ReadDir(migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	body, err := migrations.ReadFile(migrationsDir + "/" + entries[0].Name())
	require.NoError(t, err)
	assert.Contains(t, string(body), "-- +goose Up")
	assert.Contains(t, string(body), "-- +goose Down")
}

func TestSQLiteUpAndDownUseModels(t *testing.T) {
	cfg := config.Config{Database: config.Database{Driver: "sqlite", WriterDSN: "file:migrator?mode=memory&cache=shared"}}
	conns, err := database.Open(cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	m, err := New(cfg, conns, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, m.Up(ctx))

	var count int
	require.NoError(t, conns.Writer.NewRaw("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'orders'").Scan(ctx, &count))
	assert.Equal(t, 1, count)

	require.NoError(t, m.Down(ctx, 0, true))
	require.NoError(t, conns.Writer.NewRaw("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'orders'").Scan(ctx, &count))
	assert.Equal(t, 0, count)
}
