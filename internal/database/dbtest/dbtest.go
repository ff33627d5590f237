// Package dbtest provides throwaway sqlite databases for tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/servio/internal/config"
	"github.com/Additional-Code/servio/internal/database"
	"github.com/Additional-Code/servio/internal/entity"
)

// Open returns connections to a private in-memory database with the full
// schema. A single connection is used, so code running inside a transaction
// must route every query through the transaction handle.
func Open(t *testing.T) *database.Connections {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	conns, err := database.Open(config.Database{
		Driver:       "sqlite",
		WriterDSN:    dsn,
		ReaderDSN:    dsn,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	require.NoError(t, database.CreateSchema(context.Background(), conns.Writer, entity.Models()...))
	return conns
}
