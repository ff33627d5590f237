// Package kitchen exposes station queues, statistics and order progress.
package kitchen

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/servio/internal/config"
	"github.com/Additional-Code/servio/internal/dto"
	"github.com/Additional-Code/servio/internal/entity"
	"github.com/Additional-Code/servio/internal/presentation/http/response"
	service "github.com/Additional-Code/servio/internal/service/kitchen"
	"github.com/Additional-Code/servio/internal/transport/http/middleware"
	"github.com/Additional-Code/servio/internal/transport/http/request"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/servio/transport/http/kitchen")

// Handler exposes kitchen endpoints.
type Handler struct {
	svc *service.Service
	loc *time.Location
}

// NewHandler constructs a kitchen Handler.
func NewHandler(svc *service.Service, cfg config.Config) *Handler {
	return &Handler{svc: svc, loc: cfg.Restaurant.Location}
}

// Register mounts kitchen routes. Progress is visible to all staff.
func Register(e *echo.Echo, h *Handler, authn *middleware.Authenticator) {
	g := e.Group("/kitchen", authn.Require())
	station := authn.Require(entity.RoleKitchen, entity.RoleAdmin)

	g.GET("/queue/:department", h.queue, station)
	g.GET("/dishes", h.dishes, station)
	g.GET("/stats", h.stats, station)
	g.POST("/orders/:id/items/:item_id/start", h.start, station)
	g.GET("/orders/:id/progress", h.progress)
}

func (h *Handler) queue(c echo.Context) error {
	var q dto.KitchenQuery
	if err := request.Bind(c, &q); err != nil {
		return response.Fail(c, err)
	}
	department := c.Param("department")

	ctx, span := httpTracer.Start(c.Request().Context(), "kitchen.queue", trace.WithAttributes(attribute.String("department", department)))
	defer span.End()

	items, err := h.svc.Queue(ctx, department, &q)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.New(c).WithData(h.localize(items)).WithMeta("count", len(items)).Build()
}

func (h *Handler) dishes(c echo.Context) error {
	var q dto.KitchenQuery
	if err := request.Bind(c, &q); err != nil {
		return response.Fail(c, err)
	}
	items, err := h.svc.Dishes(c.Request().Context(), &q)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.New(c).WithData(h.localize(items)).WithMeta("count", len(items)).Build()
}

func (h *Handler) stats(c echo.Context) error {
	var q dto.KitchenStatsQuery
	if err := request.Bind(c, &q); err != nil {
		return response.Fail(c, err)
	}
	stats, err := h.svc.Stats(c.Request().Context(), &q)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, stats)
}

func (h *Handler) progress(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	progress, err := h.svc.Progress(c.Request().Context(), id)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, progress)
}

func (h *Handler) start(c echo.Context) error {
	orderID, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	itemID, err := request.ID(c, "item_id")
	if err != nil {
		return response.Fail(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "kitchen.start", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("item.id", itemID),
	))
	defer span.End()

	order, err := h.svc.StartPreparing(ctx, middleware.Actor(c), orderID, itemID)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, dto.NewOrderResponse(order, h.loc))
}

func (h *Handler) localize(items []service.QueueItem) []service.QueueItem {
	for i := range items {
		items[i].CreatedAt = dto.In(items[i].CreatedAt, h.loc)
		items[i].PreparationStartedAt = dto.InPtr(items[i].PreparationStartedAt, h.loc)
	}
	return items
}
