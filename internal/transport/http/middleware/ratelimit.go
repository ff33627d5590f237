package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/cache"
	"github.com/Additional-Code/servio/internal/config"
	"github.com/Additional-Code/servio/internal/presentation/http/response"
	"github.com/Additional-Code/servio/pkg/errorbank"
)

// RateLimiter is a fixed-window limiter keyed by client IP. A client that
// exceeds the budget is blocked for the configured duration.
type RateLimiter struct {
	store  cache.Store
	cfg    config.RateLimit
	logger *zap.Logger
}

// NewRateLimiter wires a limiter over the shared cache store.
func NewRateLimiter(store cache.Store, cfg config.Config, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{store: store, cfg: cfg.RateLimit, logger: logger}
}

// Middleware enforces the request budget. Store failures let requests through.
func (l *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.cfg.Enabled {
				return next(c)
			}
			ctx := c.Request().Context()
			ip := c.RealIP()
			blockKey := "ratelimit:block:" + ip

			if ttl, err := l.store.TTL(ctx, blockKey); err == nil && ttl > 0 {
				return l.reject(c, ttl)
			}

			n, err := l.store.Increment(ctx, "ratelimit:count:"+ip, l.cfg.Window)
			if err != nil {
				l.logger.Warn("rate limit counter unavailable", zap.Error(err))
				return next(c)
			}
			if n > int64(l.cfg.MaxRequests) {
				if err := l.store.Set(ctx, blockKey, []byte("1"), l.cfg.BlockDuration); err != nil {
					l.logger.Warn("rate limit block not stored", zap.Error(err))
				}
				l.logger.Warn("client rate limited", zap.String("ip", ip), zap.Int64("requests", n))
				return l.reject(c, l.cfg.BlockDuration)
			}
			return next(c)
		}
	}
}

func (l *RateLimiter) reject(c echo.Context, retry time.Duration) error {
	seconds := int(retry.Round(time.Second).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	c.Response().Header().Set("Retry-After", strconv.Itoa(seconds))
	return response.Fail(c, errorbank.RateLimited("too many requests",
		errorbank.WithDetail("retry_after_seconds", seconds)))
}
