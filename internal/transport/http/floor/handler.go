// Package floor exposes location and table administration over HTTP.
package floor

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/servio/internal/dto"
	"github.com/Additional-Code/servio/internal/entity"
	"github.com/Additional-Code/servio/internal/presentation/http/response"
	tablerepo "github.com/Additional-Code/servio/internal/repository/table"
	service "github.com/Additional-Code/servio/internal/service/floor"
	"github.com/Additional-Code/servio/internal/transport/http/middleware"
	"github.com/Additional-Code/servio/internal/transport/http/request"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/servio/transport/http/floor")

// Handler exposes floor endpoints.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a floor Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts location and table routes. Reads are open to staff,
// writes to admins.
func Register(e *echo.Echo, h *Handler, authn *middleware.Authenticator) {
	admin := authn.Require(entity.RoleAdmin)

	loc := e.Group("/locations", authn.Require())
	loc.GET("", h.listLocations)
	loc.GET("/:id", h.getLocation)
	loc.GET("/:id/tables", h.locationTables)
	loc.POST("", h.createLocation, admin)
	loc.PATCH("/:id", h.updateLocation, admin)
	loc.DELETE("/:id", h.deleteLocation, admin)

	tables := e.Group("/tables", authn.Require())
	tables.GET("", h.listTables)
	tables.GET("/:id", h.getTable)
	tables.POST("", h.createTable, admin)
	tables.PATCH("/:id", h.updateTable, admin)
	tables.DELETE("/:id", h.deleteTable, admin)
}

func (h *Handler) listLocations(c echo.Context) error {
	active, err := request.Bool(c, "active")
	if err != nil {
		return response.Fail(c, err)
	}
	locations, err := h.svc.ListLocations(c.Request().Context(), active != nil && *active)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, locations)
}

func (h *Handler) getLocation(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	location, err := h.svc.GetLocation(c.Request().Context(), id)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, location)
}

func (h *Handler) locationTables(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	tables, err := h.svc.LocationTables(c.Request().Context(), id)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, tables)
}

func (h *Handler) createLocation(c echo.Context) error {
	var payload dto.CreateLocationRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}
	location, err := h.svc.CreateLocation(c.Request().Context(), &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.New(c).Created(location).Build()
}

func (h *Handler) updateLocation(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	var payload dto.UpdateLocationRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "locations.update", trace.WithAttributes(attribute.Int64("location.id", id)))
	defer span.End()

	result, err := h.svc.UpdateLocation(ctx, id, &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.New(c).
		WithData(result.Location).
		WithMeta("tables_deactivated", result.TablesDeactivated).
		WithMeta("tables_activated", result.TablesActivated).
		Build()
}

func (h *Handler) deleteLocation(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	if err := h.svc.DeleteLocation(c.Request().Context(), id); err != nil {
		return response.Fail(c, err)
	}
	return response.NoContent(c)
}

func (h *Handler) listTables(c echo.Context) error {
	var filter tablerepo.Filter
	var err error
	if filter.LocationID, err = request.Int64(c, "location_id"); err != nil {
		return response.Fail(c, err)
	}
	if filter.IsActive, err = request.Bool(c, "active"); err != nil {
		return response.Fail(c, err)
	}
	if filter.IsOccupied, err = request.Bool(c, "occupied"); err != nil {
		return response.Fail(c, err)
	}
	tables, err := h.svc.ListTables(c.Request().Context(), filter)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, tables)
}

func (h *Handler) getTable(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	table, err := h.svc.GetTable(c.Request().Context(), id)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, table)
}

func (h *Handler) createTable(c echo.Context) error {
	var payload dto.CreateTableRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}
	table, err := h.svc.CreateTable(c.Request().Context(), &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.New(c).Created(table).Build()
}

func (h *Handler) updateTable(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	var payload dto.UpdateTableRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "tables.update", trace.WithAttributes(attribute.Int64("table.id", id)))
	defer span.End()

	table, err := h.svc.UpdateTable(ctx, id, &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, table)
}

func (h *Handler) deleteTable(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	if err := h.svc.DeleteTable(c.Request().Context(), id); err != nil {
		return response.Fail(c, err)
	}
	return response.NoContent(c)
}
