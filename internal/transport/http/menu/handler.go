// Package menu serves the anonymous guest-facing menu and QR lookups.
package menu

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/servio/internal/entity"
	"github.com/Additional-Code/servio/internal/presentation/http/response"
	catalogservice "github.com/Additional-Code/servio/internal/service/catalog"
	floorservice "github.com/Additional-Code/servio/internal/service/floor"
	"github.com/Additional-Code/servio/pkg/errorbank"
)

// Handler exposes public menu endpoints.
type Handler struct {
	catalog *catalogservice.Service
	floor   *floorservice.Service
}

// NewHandler constructs a menu Handler.
func NewHandler(catalog *catalogservice.Service, floor *floorservice.Service) *Handler {
	return &Handler{catalog: catalog, floor: floor}
}

// tableMenu is the menu as seen from a scanned table.
type tableMenu struct {
	TableNumber int                `json:"table_number"`
	Categories  []*entity.Category `json:"categories"`
}

// Register mounts anonymous routes.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/menu", h.menu)
	e.GET("/menu/tables/:qr_token", h.tableMenu)
	e.GET("/qr/:qr_token", h.qr)
}

func (h *Handler) menu(c echo.Context) error {
	menu, err := h.catalog.Menu(c.Request().Context())
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, menu)
}

func (h *Handler) tableMenu(c echo.Context) error {
	token, err := qrToken(c)
	if err != nil {
		return response.Fail(c, err)
	}
	ctx := c.Request().Context()
	table, err := h.floor.TableByQR(ctx, token)
	if err != nil {
		return response.Fail(c, err)
	}
	menu, err := h.catalog.Menu(ctx)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, tableMenu{TableNumber: table.Number, Categories: menu})
}

func (h *Handler) qr(c echo.Context) error {
	token, err := qrToken(c)
	if err != nil {
		return response.Fail(c, err)
	}
	link, err := h.floor.QRLink(c.Request().Context(), token)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, link)
}

func qrToken(c echo.Context) (string, error) {
	token := strings.TrimSpace(c.Param("qr_token"))
	if token == "" {
		return "", errorbank.BadRequest("qr token is required")
	}
	return token, nil
}
