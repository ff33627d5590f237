// Package auth issues and verifies staff bearer tokens and handles
// password and PIN digests.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/Additional-Code/servio/internal/config"
	"github.com/Additional-Code/servio/internal/entity"
	"github.com/Additional-Code/servio/pkg/errorbank"
)

// Module provides the token manager and PIN hasher.
var Module = fx.Provide(
	NewTokenManager,
	func(cfg config.Config) *PinHasher { return NewPinHasher(cfg.Auth.SecretKey) },
)

// Claims is the JWT payload. Subject carries the login name.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64       `json:"uid"`
	Role   entity.Role `json:"role"`
	Fresh  bool        `json:"fresh"`
}

// Actor returns the identity the service layer consumes.
func (c *Claims) Actor() entity.Actor {
	return entity.Actor{UserID: c.UserID, Role: c.Role}
}

// Token is an issued bearer token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Fresh       bool      `json:"fresh"`
}

// TokenManager signs and verifies tokens with a shared HMAC key.
type TokenManager struct {
	secret      []byte
	method      jwt.SigningMethod
	ttl         time.Duration
	freshWindow time.Duration
	issuer      string
	audience    string
	now         func() time.Time
}

// NewTokenManager builds a manager from validated configuration.
func NewTokenManager(cfg config.Config) (*TokenManager, error) {
	method := jwt.GetSigningMethod(cfg.Auth.Algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown signing method %s", cfg.Auth.Algorithm)
	}
	return &TokenManager{
		secret:      []byte(cfg.Auth.SecretKey),
		method:      method,
		ttl:         cfg.Auth.TokenTTL,
		freshWindow: cfg.Auth.FreshWindow,
		issuer:      cfg.Auth.Issuer,
		audience:    cfg.Auth.Audience,
		now:         time.Now,
	}, nil
}

// Issue mints a token for user. Fresh tokens come from password logins only.
func (m *TokenManager) Issue(user *entity.User, fresh bool) (*Token, error) {
	now := m.now()
	expires := now.Add(m.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
		UserID: user.ID,
		Role:   user.Role,
		Fresh:  fresh,
	}

	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Token{AccessToken: signed, TokenType: "Bearer", ExpiresAt: expires, Fresh: fresh}, nil
}

// Parse verifies signature, algorithm, issuer, audience and expiry.
func (m *TokenManager) Parse(raw string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errorbank.Unauthenticated("token expired", errorbank.WithCause(err))
		}
		return nil, errorbank.Unauthenticated("invalid token", errorbank.WithCause(err))
	}
	if claims.UserID <= 0 {
		return nil, errorbank.Unauthenticated("invalid token")
	}
	if _, ok := entity.ParseRole(string(claims.Role)); !ok {
		return nil, errorbank.Unauthenticated("invalid token")
	}
	return claims, nil
}

// IsFresh reports whether claims came from a recent password login.
func (m *TokenManager) IsFresh(claims *Claims) bool {
	if claims == nil || !claims.Fresh || claims.IssuedAt == nil {
		return false
	}
	return m.now().Sub(claims.IssuedAt.Time) <= m.freshWindow
}
