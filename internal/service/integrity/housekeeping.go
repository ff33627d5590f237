package integrity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/config"
	"github.com/Additional-Code/servio/internal/dto"
	"github.com/Additional-Code/servio/internal/notify"
)

// Pruner drops dead realtime subscribers.
type Pruner interface {
	Prune() int
}

// Housekeeper periodically scans for integrity issues, repairs the
// configured issue types and prunes the notification hub.
type Housekeeper struct {
	service  *Service
	hub      Pruner
	cfg      config.Housekeeping
	logger   *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// HousekeepingParams collects housekeeping dependencies.
type HousekeepingParams struct {
	fx.In

	Service *Service
	Hub     *notify.Hub
	Config  config.Config
	Logger  *zap.Logger
}

// HousekeepingModule starts the periodic task with the application.
var HousekeepingModule = fx.Options(
	fx.Provide(NewHousekeeper),
	fx.Invoke(func(lc fx.Lifecycle, h *Housekeeper) {
		lc.Append(fx.Hook{
			OnStart: h.start,
			OnStop:  h.stop,
		})
	}),
)

// NewHousekeeper builds the periodic task.
func NewHousekeeper(p HousekeepingParams) *Housekeeper {
	return newHousekeeper(p.Service, p.Hub, p.Config.Housekeeping, p.Logger)
}

func newHousekeeper(svc *Service, hub Pruner, cfg config.Housekeeping, logger *zap.Logger) *Housekeeper {
	return &Housekeeper{service: svc, hub: hub, cfg: cfg, logger: logger}
}

func (h *Housekeeper) start(context.Context) error {
	if !h.cfg.Enabled {
		h.logger.Info("housekeeping disabled")
		return nil
	}
	interval := h.cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan struct{})

	go func() {
		defer close(h.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.RunOnce(ctx)
			}
		}
	}()

	h.logger.Info("housekeeping started",
		zap.Duration("interval", interval),
		zap.Strings("auto_fix", h.cfg.AutoFix),
	)
	return nil
}

func (h *Housekeeper) stop(ctx context.Context) error {
	if h.cancel == nil {
		return nil
	}
	h.stopOnce.Do(h.cancel)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		h.logger.Info("housekeeping stopped")
		return nil
	}
}

// RunOnce performs a single pass. Failures are logged and retried on the
// next tick.
func (h *Housekeeper) RunOnce(ctx context.Context) {
	if h.hub != nil {
		if pruned := h.hub.Prune(); pruned > 0 {
			h.logger.Info("pruned realtime subscribers", zap.Int("count", pruned))
		}
	}

	report, err := h.service.Check(ctx)
	if err != nil {
		h.logger.Error("integrity check failed", zap.Error(err))
		return
	}
	if report.Total == 0 {
		h.logger.Debug("integrity check clean")
		return
	}

	fields := []zap.Field{zap.Int("issues", report.Total)}
	for kind, n := range report.ByType {
		fields = append(fields, zap.Int(string(kind), n))
	}
	h.logger.Warn("integrity issues detected", fields...)

	if len(h.cfg.AutoFix) == 0 {
		return
	}
	result, err := h.service.AutoFix(ctx, &dto.IntegrityFixRequest{IssueTypes: h.cfg.AutoFix})
	if err != nil {
		h.logger.Error("integrity auto-fix failed", zap.Error(err))
		return
	}
	if result.Fixed > 0 {
		// Refresh the open-issue gauge after repairs.
		if _, err := h.service.Check(ctx); err != nil {
			h.logger.Error("integrity re-check failed", zap.Error(err))
		}
	}
}
