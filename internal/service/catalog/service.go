// Package catalog administers the menu: categories, dishes and their
// variations, ingredients and payment methods.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/cache"
	"github.com/Additional-Code/servio/internal/config"
	"github.com/Additional-Code/servio/internal/database"
	"github.com/Additional-Code/servio/internal/entity"
	catalogrepo "github.com/Additional-Code/servio/internal/repository/catalog"
	orderrepo "github.com/Additional-Code/servio/internal/repository/order"
	paymentrepo "github.com/Additional-Code/servio/internal/repository/payment"
	"github.com/Additional-Code/servio/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/servio/service/catalog")

// Service owns catalog writes and the cached guest menu.
type Service struct {
	db        *database.Connections
	repo      *catalogrepo.Repository
	orders    *orderrepo.Repository
	payments  *paymentrepo.Repository
	cache     cache.Store
	cacheTTL  time.Duration
	uploadDir string
	logger    *zap.Logger
	now       func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	DB       *database.Connections
	Repo     *catalogrepo.Repository
	Orders   *orderrepo.Repository
	Payments *paymentrepo.Repository
	Cache    cache.Store
	Config   config.Config
	Logger   *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		db:        p.DB,
		repo:      p.Repo,
		orders:    p.Orders,
		payments:  p.Payments,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		uploadDir: p.Config.Restaurant.UploadDir,
		logger:    p.Logger,
		now:       time.Now,
	}
}

// Menu returns active categories with available dishes and variations.
// The projection is cached until the next catalog write.
func (s *Service) Menu(ctx context.Context) ([]*entity.Category, error) {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.Menu")
	defer span.End()

	if raw, err := s.cache.Get(ctx, cache.MenuKey); err == nil {
		var menu []*entity.Category
		if err := json.Unmarshal(raw, &menu); err == nil {
			return menu, nil
		}
		s.logger.Warn("menu cache entry is corrupt; reloading")
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("menu cache read failed", zap.Error(err))
	}

	menu, err := s.repo.Menu(ctx)
	if err != nil {
		return nil, s.fail(span, err, "failed to load menu")
	}
	// Dishes without an orderable variation are hidden from guests.
	for _, c := range menu {
		kept := c.Dishes[:0]
		for _, d := range c.Dishes {
			if len(d.Variations) > 0 {
				kept = append(kept, d)
			}
		}
		c.Dishes = kept
	}

	if raw, err := json.Marshal(menu); err == nil {
		if err := s.cache.Set(ctx, cache.MenuKey, raw, s.cacheTTL); err != nil {
			s.logger.Warn("menu cache write failed", zap.Error(err))
		}
	}
	return menu, nil
}

// invalidateMenu drops the cached menu after a committed write.
func (s *Service) invalidateMenu(ctx context.Context) {
	if err := s.cache.Delete(ctx, cache.MenuKey); err != nil {
		s.logger.Warn("menu cache delete failed", zap.Error(err))
	}
}

func (s *Service) fail(span trace.Span, err error, msg string) error {
	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if database.IsUniqueViolation(err) {
		return errorbank.Conflict(msg+": a record with the same unique value exists", errorbank.WithCause(err))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return errorbank.Internal(msg, errorbank.WithCause(err))
}

func notFound(err error, what string) error {
	if errors.Is(err, catalogrepo.ErrNotFound) {
		return errorbank.NotFound(what + " not found")
	}
	return err
}
