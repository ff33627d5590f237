//go:build integration

package database_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/config"
	"github.com/Additional-Code/servio/internal/database"
	"github.com/Additional-Code/servio/internal/entity"
	"github.com/Additional-Code/servio/internal/migration"
)

func openPostgres(t *testing.T) *database.Connections {
	t.Helper()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err)
	pool.MaxWait = 2 * time.Minute

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env:        []string{"POSTGRES_PASSWORD=servio", "POSTGRES_USER=servio", "POSTGRES_DB=servio"},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("postgres://servio:servio@%s/servio?sslmode=disable", resource.GetHostPort("5432/tcp"))
	cfg := config.Config{Database: config.Database{Driver: "postgres", WriterDSN: dsn, MaxOpenConns: 4}}

	var conns *database.Connections
	require.NoError(t, pool.Retry(func() error {
		c, err := database.Open(cfg.Database)
		if err != nil {
			return err
		}
		if err := c.Writer.PingContext(context.Background()); err != nil {
			_ = c.Close()
			return err
		}
		conns = c
		return nil
	}))
	t.Cleanup(func() { _ = conns.Close() })

	mig, err := migration.New(cfg, conns, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, mig.Up(context.Background()))
	return conns
}

func TestPostgresForUpdateSerialisesWriters(t *testing.T) {
	conns := openPostgres(t)
	ctx := context.Background()

	loc := &entity.Location{Name: "Hall", Color: "#000000", IsActive: true}
	_, err := conns.Writer.NewInsert().Model(loc).Exec(ctx)
	require.NoError(t, err)

	locked := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- conns.InTx(ctx, func(ctx context.Context, tx bun.Tx) error {
			row := new(entity.Location)
			q := tx.NewSelect().Model(row).Where("l.id = ?", loc.ID)
			if err := database.ForUpdate(tx, q).Scan(ctx); err != nil {
				return err
			}
			close(locked)
			<-release
			row.Name = "Hall A"
			_, err := tx.NewUpdate().Model(row).Column("name").WherePK().Exec(ctx)
			return err
		})
	}()
	<-locked

	secondStarted := time.Now()
	secondDone := make(chan error, 1)
	var seen string
	go func() {
		secondDone <- conns.InTx(ctx, func(ctx context.Context, tx bun.Tx) error {
			row := new(entity.Location)
			q := tx.NewSelect().Model(row).Where("l.id = ?", loc.ID)
			if err := database.ForUpdate(tx, q).Scan(ctx); err != nil {
				return err
			}
			seen = row.Name
			return nil
		})
	}()

	select {
	case err := <-secondDone:
		t.Fatalf("second transaction finished while the row was locked: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)
	assert.Equal(t, "Hall A", seen)
	assert.GreaterOrEqual(t, time.Since(secondStarted), 300*time.Millisecond)
}

func TestPostgresUniqueViolation(t *testing.T) {
	conns := openPostgres(t)
	ctx := context.Background()

	_, err := conns.Writer.NewInsert().Model(&entity.Location{Name: "Bar", Color: "#111111", IsActive: true}).Exec(ctx)
	require.NoError(t, err)
	_, err = conns.Writer.NewInsert().Model(&entity.Location{Name: "Bar", Color: "#222222", IsActive: true}).Exec(ctx)
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))
}
