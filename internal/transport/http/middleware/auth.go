// Package middleware contains the echo middleware chain: authentication,
// role checks, rate limiting and request logging.
package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/servio/internal/auth"
	"github.com/Additional-Code/servio/internal/entity"
	"github.com/Additional-Code/servio/internal/presentation/http/response"
	userservice "github.com/Additional-Code/servio/internal/service/user"
	"github.com/Additional-Code/servio/pkg/errorbank"
)

const (
	claimsKey = "auth.claims"
	userKey   = "auth.user"
)

// Authenticator verifies bearer tokens and loads the calling account.
type Authenticator struct {
	tokens *auth.TokenManager
	users  *userservice.Service
}

// NewAuthenticator wires an Authenticator.
func NewAuthenticator(tokens *auth.TokenManager, users *userservice.Service) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Require authenticates the request and, when roles are given, checks the
// caller holds one of them.
func (a *Authenticator) Require(roles ...entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, user, err := a.Resolve(c)
			if err != nil {
				return response.Fail(c, err)
			}
			if len(roles) > 0 && !user.Role.OneOf(roles...) {
				return response.Fail(c, errorbank.PermissionDenied("insufficient role",
					errorbank.WithDetail("role", user.Role)))
			}
			c.Set(claimsKey, claims)
			c.Set(userKey, user)
			return next(c)
		}
	}
}

// Resolve parses the bearer token from the Authorization header, or the
// token query parameter for websocket handshakes, and loads the user.
func (a *Authenticator) Resolve(c echo.Context) (*auth.Claims, *entity.User, error) {
	raw := bearer(c.Request().Header.Get(echo.HeaderAuthorization))
	if raw == "" {
		raw = c.QueryParam("token")
	}
	if raw == "" {
		return nil, nil, errorbank.Unauthenticated("missing bearer token")
	}
	claims, err := a.tokens.Parse(raw)
	if err != nil {
		return nil, nil, err
	}
	user, err := a.users.Authenticate(c.Request().Context(), claims)
	if err != nil {
		return nil, nil, err
	}
	return claims, user, nil
}

// IsFresh reports whether the request carries a fresh token.
func (a *Authenticator) IsFresh(c echo.Context) bool {
	return a.tokens.IsFresh(Claims(c))
}

func bearer(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Claims returns the verified token claims of the request.
func Claims(c echo.Context) *auth.Claims {
	claims, _ := c.Get(claimsKey).(*auth.Claims)
	return claims
}

// User returns the authenticated account of the request.
func User(c echo.Context) *entity.User {
	user, _ := c.Get(userKey).(*entity.User)
	return user
}

// Actor returns the caller identity passed to services.
func Actor(c echo.Context) entity.Actor {
	if user := User(c); user != nil {
		return entity.Actor{UserID: user.ID, Role: user.Role}
	}
	return entity.Actor{}
}
