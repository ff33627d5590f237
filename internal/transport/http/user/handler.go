// Package user exposes authentication, shifts and staff administration
// over HTTP.
package user

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/servio/internal/auth"
	"github.com/Additional-Code/servio/internal/config"
	"github.com/Additional-Code/servio/internal/dto"
	"github.com/Additional-Code/servio/internal/entity"
	"github.com/Additional-Code/servio/internal/presentation/http/response"
	userrepo "github.com/Additional-Code/servio/internal/repository/user"
	service "github.com/Additional-Code/servio/internal/service/user"
	"github.com/Additional-Code/servio/internal/transport/http/middleware"
	"github.com/Additional-Code/servio/internal/transport/http/request"
	"github.com/Additional-Code/servio/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/servio/transport/http/user")

// Handler exposes user endpoints.
type Handler struct {
	svc   *service.Service
	authn *middleware.Authenticator
	loc   *time.Location
}

// NewHandler constructs a user Handler.
func NewHandler(svc *service.Service, authn *middleware.Authenticator, cfg config.Config) *Handler {
	return &Handler{svc: svc, authn: authn, loc: cfg.Restaurant.Location}
}

// sessionResponse is returned by both login flows.
type sessionResponse struct {
	*auth.Token
	User dto.UserResponse `json:"user"`
}

// Register mounts auth and user routes.
func Register(e *echo.Echo, h *Handler, authn *middleware.Authenticator) {
	a := e.Group("/auth")
	a.POST("/login", h.login)
	a.POST("/pin-login", h.pinLogin)
	a.GET("/me", h.me, authn.Require())
	a.POST("/shift/start", h.startShift, authn.Require())
	a.POST("/shift/end", h.endShift, authn.Require())
	a.POST("/password", h.changePassword, authn.Require())

	users := e.Group("/users", authn.Require(entity.RoleAdmin))
	users.GET("", h.list)
	users.GET("/:id", h.get)
	users.POST("", h.create)
	users.PATCH("/:id", h.update)
	users.DELETE("/:id", h.delete)
}

func (h *Handler) login(c echo.Context) error {
	var payload dto.LoginRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auth.login")
	defer span.End()

	session, err := h.svc.Login(ctx, &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, h.session(session))
}

func (h *Handler) pinLogin(c echo.Context) error {
	var payload dto.PinLoginRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auth.pinLogin")
	defer span.End()

	session, err := h.svc.PinLogin(ctx, &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, h.session(session))
}

func (h *Handler) session(s *service.Session) sessionResponse {
	return sessionResponse{Token: s.Token, User: dto.NewUserResponse(s.User, h.loc)}
}

func (h *Handler) me(c echo.Context) error {
	return response.OK(c, dto.NewUserResponse(middleware.User(c), h.loc))
}

func (h *Handler) startShift(c echo.Context) error {
	u, err := h.svc.StartShift(c.Request().Context(), middleware.Actor(c))
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, dto.NewUserResponse(u, h.loc))
}

func (h *Handler) endShift(c echo.Context) error {
	u, err := h.svc.EndShift(c.Request().Context(), middleware.Actor(c))
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, dto.NewUserResponse(u, h.loc))
}

func (h *Handler) changePassword(c echo.Context) error {
	var payload dto.ChangePasswordRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}
	err := h.svc.ChangePassword(c.Request().Context(), middleware.Actor(c), h.authn.IsFresh(c), &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.NoContent(c)
}

func (h *Handler) list(c echo.Context) error {
	var filter userrepo.Filter
	if raw := strings.TrimSpace(c.QueryParam("role")); raw != "" {
		role, ok := entity.ParseRole(raw)
		if !ok {
			return response.Fail(c, errorbank.BadRequest("invalid role", errorbank.WithDetail("role", raw)))
		}
		filter.Role = role
	}
	active, err := request.Bool(c, "active")
	if err != nil {
		return response.Fail(c, err)
	}
	filter.ActiveOnly = active != nil && *active
	if filter.OnShift, err = request.Bool(c, "on_shift"); err != nil {
		return response.Fail(c, err)
	}

	users, err := h.svc.List(c.Request().Context(), filter)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, dto.NewUserResponses(users, h.loc))
}

func (h *Handler) get(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	u, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, dto.NewUserResponse(u, h.loc))
}

func (h *Handler) create(c echo.Context) error {
	var payload dto.CreateUserRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}
	u, err := h.svc.Create(c.Request().Context(), middleware.Actor(c), &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.New(c).Created(dto.NewUserResponse(u, h.loc)).Build()
}

func (h *Handler) update(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	var payload dto.UpdateUserRequest
	if err := request.Bind(c, &payload); err != nil {
		return response.Fail(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "users.update", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	u, err := h.svc.Update(ctx, middleware.Actor(c), id, &payload)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, dto.NewUserResponse(u, h.loc))
}

func (h *Handler) delete(c echo.Context) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.Fail(c, err)
	}
	if err := h.svc.Delete(c.Request().Context(), middleware.Actor(c), id); err != nil {
		return response.Fail(c, err)
	}
	return response.NoContent(c)
}
