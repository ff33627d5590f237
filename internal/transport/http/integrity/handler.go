// Package integrity exposes the consistency check and repair endpoints.
package integrity

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Additional-Code/servio/internal/dto"
	"github.com/Additional-Code/servio/internal/entity"
	"github.com/Additional-Code/servio/internal/presentation/http/response"
	service "github.com/Additional-Code/servio/internal/service/integrity"
	"github.com/Additional-Code/servio/internal/transport/http/middleware"
	"github.com/Additional-Code/servio/internal/transport/http/request"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/servio/transport/http/integrity")

// Handler exposes integrity endpoints.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an integrity Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts admin-only integrity routes.
func Register(e *echo.Echo, h *Handler, authn *middleware.Authenticator) {
	g := e.Group("/integrity", authn.Require(entity.RoleAdmin))
	g.GET("/check", h.check)
	g.POST("/fix", h.fix)
}

func (h *Handler) check(c echo.Context) error {
	ctx, span := httpTracer.Start(c.Request().Context(), "integrity.check")
	defer span.End()

	report, err := h.svc.Check(ctx)
	if err != nil {
		return response.Fail(c, err)
	}
	span.SetAttributes(attribute.Int("integrity.issues", report.Total))
	return response.OK(c, report)
}

func (h *Handler) fix(c echo.Context) error {
	var payload dto.IntegrityFixRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "integrity.fix")
	defer span.End()

	result, err := h.svc.AutoFix(ctx, &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	span.SetAttributes(attribute.Int("integrity.fixed", result.Fixed))
	return response.OK(c, result)
}
