package order

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
	service "github.com/Additional-Code/servio/internal/service/order"
	"github.com/Additional-Code/servio/internal/transport/http/middleware"
	"github.com/Additional-Code/servio/internal/transport/http/request"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/servio/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *service.Service
	loc *time.Location
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service, cfg config.Config) *Handler {
	return &Handler{svc: svc, loc: cfg.Restaurant.Location}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler, authn *middleware.Authenticator) {
	floor := authn.Require(entity.RoleWaiter, entity.RoleAdmin)

	g := e.Group("/orders", authn.Require())
	g.GET("", h.list)
	g.GET("/:id", h.getByID)
	g.GET("/:id/history", h.history)
	g.POST("", h.create, floor)
	g.POST("/:id/items", h.addItems, floor)
	g.POST("/:id/send-to-kitchen", h.sendToKitchen, floor)
	g.PATCH("/:id/status", h.setStatus)
	g.PATCH("/:id/payment", h.setPayment, floor)
	g.PATCH("/:id/items/:item_id", h.setItemQuantity, floor)
	g.PATCH("/:id/items/:item_id/status", h.setItemStatus)
}

func (h *Handler) list(c echo.Context) error {
	var q dto.OrderListQuery
	if err := request.Bind(c, &q); err != nil {
		return response.Fail(c, err)
	}
	if err := dto.Check(&q); err != nil {
		return response.Fail(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list")
	defer span.End()

	orders, err := h.svc.List(ctx, middleware.Actor(c), q.Filter(h.loc))
	if err != nil {
		return response.Fail(c, err)
	}
	return response.New(c).
		WithData(dto.NewOrderResponses(orders, h.loc)).
		WithMeta("count", len(orders)).
		Build()
}

func (h *Handler) getByID(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, dto.NewOrderResponse(order, h.loc))
}

func (h *Handler) history(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.history", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	logs, err := h.svc.History(ctx, id)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, dto.NewStatusLogResponses(logs, h.loc))
}

func (h *Handler) create(c echo.Context) error {
	var payload dto.CreateOrderRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create")
	span.SetAttributes(attribute.String("order.type", payload.OrderType))
	defer span.End()

	order, err := h.svc.Create(ctx, middleware.Actor(c), &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.New(c).Created(dto.NewOrderResponse(order, h.loc)).Build()
}

func (h *Handler) addItems(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	var payload dto.AddItemsRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.addItems", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.AddItems(ctx, middleware.Actor(c), id, &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, dto.NewOrderResponse(order, h.loc))
}

func (h *Handler) sendToKitchen(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	order, err := h.svc.SendToKitchen(c.Request().Context(), id)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.New(c).
		WithData(dto.NewOrderResponse(order, h.loc)).
		WithMeta("deprecated", true).
		Build()
}

func (h *Handler) setStatus(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	var payload dto.UpdateOrderStatusRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.setStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status", payload.Status),
	))
	defer span.End()

	order, err := h.svc.SetStatus(ctx, middleware.Actor(c), id, &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, dto.NewOrderResponse(order, h.loc))
}

func (h *Handler) setPayment(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	var payload dto.UpdatePaymentRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.setPayment", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.SetPayment(ctx, middleware.Actor(c), id, &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, dto.NewOrderResponse(order, h.loc))
}

func (h *Handler) setItemQuantity(c echo.Context) error {
	orderID, itemID, err := itemParams(c)
	if err != nil {
		return response.Fail(c, err)
	}
	var payload dto.UpdateItemQuantityRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.setItemQuantity", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("item.id", itemID),
	))
	defer span.End()

	order, err := h.svc.SetItemQuantity(ctx, middleware.Actor(c), orderID, itemID, &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, dto.NewOrderResponse(order, h.loc))
}

func (h *Handler) setItemStatus(c echo.Context) error {
	orderID, itemID, err := itemParams(c)
	if err != nil {
		return response.Fail(c, err)
	}
	var payload dto.UpdateItemStatusRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.setItemStatus", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("item.id", itemID),
		attribute.String("item.status", payload.Status),
	))
	defer span.End()

	order, err := h.svc.SetItemStatus(ctx, middleware.Actor(c), orderID, itemID, &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, dto.NewOrderResponse(order, h.loc))
}

func itemParams(c echo.Context) (int64, int64, error) {
	orderID, err := request.ID(c, "id")
	if err != nil {
		return 0, 0, err
	}
	itemID, err := request.ID(c, "item_id")
	if err != nil {
		return 0, 0, err
	}
	return orderID, itemID, nil
}
