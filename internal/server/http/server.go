package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/config"
	"github.com/Additional-Code/servio/internal/database"
	"github.com/Additional-Code/servio/internal/observability"
	"github.com/Additional-Code/servio/internal/presentation/http/response"
	catalogservice "github.com/Additional-Code/servio/internal/service/catalog"
	"github.com/Additional-Code/servio/internal/transport/http/middleware"
	"github.com/Additional-Code/servio/pkg/errorbank"
)

// Module exposes the HTTP server lifecycle to Fx.
var Module = fx.Module("http_server",
	fx.Provide(NewEcho),
	fx.Invoke(Run),
)

// Params defines dependencies for constructing the router.
type Params struct {
	fx.In

	Config  config.Config
	Obs     *observability.Manager `optional:"true"`
	DB      *database.Connections
	Limiter *middleware.RateLimiter
	Logger  *zap.Logger
}

// NewEcho configures the Echo router with the shared middleware chain.
func NewEcho(p Params) *echo.Echo {
	cfg := p.Config
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(p.Logger)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	if p.Obs != nil && p.Obs.TracingEnabled() {
		e.Use(otelecho.Middleware(cfg.Observability.ServiceName))
	}
	e.Use(middleware.RequestLogger(p.Logger, cfg.App.Debug))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
		AllowCredentials: true,
	}))
	e.Use(echomw.BodyLimitWithConfig(echomw.BodyLimitConfig{
		Limit: cfg.HTTP.BodyLimit,
		// image uploads carry their own cap
		Skipper: func(c echo.Context) bool {
			return strings.HasSuffix(c.Path(), "/image")
		},
	}))
	e.Use(response.Debug(cfg.App.Debug))
	e.Use(p.Limiter.Middleware())

	e.GET("/health", func(c echo.Context) error {
		if err := p.DB.Writer.PingContext(c.Request().Context()); err != nil {
			return response.Fail(c, errorbank.Internal("database unavailable", errorbank.WithCause(err)))
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	e.Static(catalogservice.UploadPrefix, cfg.Restaurant.UploadDir)

	if p.Obs != nil && p.Obs.MetricsEnabled() && p.Obs.MetricsHandler() != nil {
		e.GET(p.Obs.PrometheusPath(), echo.WrapHandler(p.Obs.MetricsHandler()))
	}

	return e
}

// errorHandler renders router-level failures (unknown routes, oversized
// bodies, panics) in the same envelope as handler errors.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		if !errors.As(err, &he) {
			_ = response.Fail(c, err)
			return
		}
		message := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			message = m
		}
		var appErr *errorbank.AppError
		switch {
		case he.Code == http.StatusNotFound:
			appErr = errorbank.NotFound(message)
		case he.Code == http.StatusUnauthorized:
			appErr = errorbank.Unauthenticated(message)
		case he.Code == http.StatusForbidden:
			appErr = errorbank.PermissionDenied(message)
		case he.Code == http.StatusTooManyRequests:
			appErr = errorbank.RateLimited(message)
		case he.Code < http.StatusInternalServerError:
			appErr = errorbank.BadRequest(message)
		default:
			logger.Error("http request failed", zap.Error(err))
			appErr = errorbank.Internal(message, errorbank.WithCause(err))
		}
		_ = response.New(c).WithStatus(he.Code).WithError(appErr).Build()
	}
}

// Run starts the HTTP server and ties it to the Fx lifecycle.
func Run(lc fx.Lifecycle, cfg config.Config, e *echo.Echo, logger *zap.Logger) {
	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)

	server := &http.Server{
		Addr:    addr,
		Handler: e,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting HTTP server", zap.String("addr", addr))
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping HTTP server")
			return server.Shutdown(ctx)
		},
	})
}
