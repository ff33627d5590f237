package migration

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/config"
	"github.com/Additional-Code/servio/internal/database"
	"github.com/Additional-Code/servio/internal/entity"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var migrations embed.FS

// Module registers the migrator with Fx.
var Module = fx.Provide(New)

// Migrator wraps goose operations. The embedded SQL targets PostgreSQL; other
// drivers get their schema from the bun models instead.
type Migrator struct {
	db      *bun.DB
	dialect string
	logger  *zap.Logger
}

// New constructs a goose-backed migrator.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	dialect, err := gooseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return nil, err
	}

	return &Migrator{
		db:      conns.Writer,
		dialect: dialect,
		logger:  logger,
	}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	if m.dialect != "postgres" {
		if err := database.CreateSchema(ctx, m.db, entity.Models()...); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		m.logger.Info("schema created from models", zap.String("dialect", m.dialect))
		return nil
	}

	if err := goose.UpContext(ctx, m.db.DB, migrationsDir); err != nil {
		if isNoMigrationErr(err) {
			m.logger.Info("no migrations to apply")

			return nil
		}
		return err
	}

	m.logger.Info("migrations applied")

	return nil
}

// Down rolls back migrations. Steps <=0 defaults to 1; all=true rolls everything back.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) error {
	if m.dialect != "postgres" {
		return dropModels(ctx, m.db)
	}

	if all {
		if err := goose.DownToContext(ctx, m.db.DB, migrationsDir, 0); err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback")

				return nil
			}
			return err
		}
		m.logger.Info("migrations rolled back", zap.String("mode", "all"))

		return nil
	}

	if steps <= 0 {
		steps = 1
	}

	for i := 0; i < steps; i++ {
		if err := goose.DownContext(ctx, m.db.DB, migrationsDir); err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback")

				return nil
			}
			return err
		}
	}

	m.logger.Info("migrations rolled back", zap.Int("steps", steps))

	return nil
}

// Status logs the applied state of every embedded migration.
func (m *Migrator) Status(ctx context.Context) error {
	if m.dialect != "postgres" {
		m.logger.Info("migration status is tracked only for postgres", zap.String("dialect", m.dialect))
		return nil
	}
	return goose.StatusContext(ctx, m.db.DB, migrationsDir)
}

// dropModels drops tables in reverse dependency order.
func dropModels(ctx context.Context, db *bun.DB) error {
	models := entity.Models()
	for i := len(models) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(models[i]).IfExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func gooseDialect(driver string) (string, error) {
	switch driver {
	case "postgres", "pg":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported goose dialect for driver %s", driver)
	}
}

func isNoMigrationErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, goose.ErrNoNextVersion) || errors.Is(err, goose.ErrNoMigrationFiles) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "no migrations")
}
