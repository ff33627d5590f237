// Package user manages staff accounts, logins and shifts.
package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/auth"
	"github.com/Additional-Code/servio/internal/config"
	"github.com/Additional-Code/servio/internal/database"
	"github.com/Additional-Code/servio/internal/dto"
	"github.com/Additional-Code/servio/internal/entity"
	repo "github.com/Additional-Code/servio/internal/repository/user"
	"github.com/Additional-Code/servio/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/servio/service/user")

// Disconnector drops a user's realtime channel.
type Disconnector interface {
	Disconnect(userID int64) bool
}

// Service owns staff accounts.
type Service struct {
	db          *database.Connections
	repo        *repo.Repository
	tokens      *auth.TokenManager
	pins        *auth.PinHasher
	realtime    Disconnector
	minPassword int
	logger      *zap.Logger
	now         func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	DB       *database.Connections
	Repo     *repo.Repository
	Tokens   *auth.TokenManager
	Pins     *auth.PinHasher
	Realtime Disconnector
	Config   config.Config
	Logger   *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		db:          p.DB,
		repo:        p.Repo,
		tokens:      p.Tokens,
		pins:        p.Pins,
		realtime:    p.Realtime,
		minPassword: p.Config.Auth.PasswordMinLength,
		logger:      p.Logger,
		now:         time.Now,
	}
}

// Session is the result of a successful login.
type Session struct {
	Token *auth.Token
	User  *entity.User
}

var errBadCredentials = errorbank.Unauthenticated("invalid credentials")

// Login authenticates with username and password and returns a fresh token.
func (s *Service) Login(ctx context.Context, req *dto.LoginRequest) (*Session, error) {
	if req == nil {
		return nil, errorbank.BadRequest("login payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "UserService.Login")
	defer span.End()

	u, err := s.repo.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, s.fail(span, err, "failed to load user")
	}
	if !u.IsActive || !auth.CheckPassword(u.PasswordHash, req.Password) {
		s.logger.Info("login rejected", zap.String("username", u.Username))
		return nil, errBadCredentials
	}
	return s.startSession(ctx, span, u, true)
}

// PinLogin authenticates with a PIN. PIN sessions are never fresh.
func (s *Service) PinLogin(ctx context.Context, req *dto.PinLoginRequest) (*Session, error) {
	if req == nil {
		return nil, errorbank.BadRequest("login payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "UserService.PinLogin")
	defer span.End()

	u, err := s.repo.GetByPinHash(ctx, s.pins.Digest(req.Pin))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, s.fail(span, err, "failed to load user")
	}
	if !u.IsActive {
		return nil, errBadCredentials
	}
	return s.startSession(ctx, span, u, false)
}

func (s *Service) startSession(ctx context.Context, span trace.Span, u *entity.User, fresh bool) (*Session, error) {
	now := s.now().UTC()
	u.LastLoginAt = &now
	u.UpdatedAt = now
	if err := s.repo.Update(ctx, u, "last_login_at"); err != nil {
		return nil, s.fail(span, err, "failed to record login")
	}
	token, err := s.tokens.Issue(u, fresh)
	if err != nil {
		return nil, s.fail(span, err, "failed to issue token")
	}
	span.SetAttributes(attribute.Int64("user.id", u.ID), attribute.Bool("token.fresh", fresh))
	return &Session{Token: token, User: u}, nil
}

// Authenticate resolves token claims to an active account.
func (s *Service) Authenticate(ctx context.Context, claims *auth.Claims) (*entity.User, error) {
	if claims == nil {
		return nil, errorbank.Unauthenticated("missing credentials")
	}
	u, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.Unauthenticated("account no longer exists")
		}
		return nil, errorbank.Internal("failed to load user", errorbank.WithCause(err))
	}
	if !u.IsActive {
		return nil, errorbank.Unauthenticated("account is deactivated")
	}
	if u.Role != claims.Role {
		return nil, errorbank.Unauthenticated("role changed; log in again")
	}
	return u, nil
}

// List returns users matching filter.
func (s *Service) List(ctx context.Context, filter repo.Filter) ([]*entity.User, error) {
	ctx, span := serviceTracer.Start(ctx, "UserService.List")
	defer span.End()

	users, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, s.fail(span, err, "failed to list users")
	}
	return users, nil
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id int64) (*entity.User, error) {
	ctx, span := serviceTracer.Start(ctx, "UserService.Get", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, notFound(err), "failed to load user")
	}
	return u, nil
}

// Create adds a staff account on behalf of actor.
func (s *Service) Create(ctx context.Context, actor entity.Actor, req *dto.CreateUserRequest) (*entity.User, error) {
	if req == nil {
		return nil, errorbank.BadRequest("user payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(req.Password, s.minPassword); err != nil {
		return nil, errorbank.ValidationFailed("validation failed", errorbank.WithDetail("password", err.Error()))
	}
	role, _ := entity.ParseRole(req.Role)

	ctx, span := serviceTracer.Start(ctx, "UserService.Create")
	defer span.End()

	digest, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, s.fail(span, err, "failed to hash password")
	}

	now := s.now().UTC()
	u := &entity.User{
		Username:     strings.TrimSpace(req.Username),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         role,
		IsActive:     true,
		PasswordHash: digest,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if actor.UserID > 0 {
		u.CreatedByID = &actor.UserID
	}
	if req.Pin != nil {
		pin := s.pins.Digest(*req.Pin)
		u.PinHash = &pin
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, s.fail(span, err, "failed to create user")
	}
	s.logger.Info("user created", zap.Int64("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

// Update patches an account. An empty PIN clears it. Role changes and
// deactivation end the user's realtime channel.
func (s *Service) Update(ctx context.Context, actor entity.Actor, id int64, req *dto.UpdateUserRequest) (*entity.User, error) {
	if req == nil {
		return nil, errorbank.BadRequest("user payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "UserService.Update", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	var (
		updated *entity.User
		kick    bool
	)
	err := s.db.InTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		users := s.repo.WithTx(tx)
		u, err := users.GetByID(ctx, id)
		if err != nil {
			return notFound(err)
		}

		var columns []string
		if req.FullName != nil {
			u.FullName = strings.TrimSpace(*req.FullName)
			columns = append(columns, "full_name")
		}
		if req.Role != nil {
			role, _ := entity.ParseRole(*req.Role)
			if role != u.Role {
				if id == actor.UserID {
					return errorbank.PreconditionFailed("you cannot change your own role")
				}
				u.Role = role
				kick = true
				columns = append(columns, "role")
			}
		}
		if req.IsActive != nil && *req.IsActive != u.IsActive {
			if !*req.IsActive && id == actor.UserID {
				return errorbank.PreconditionFailed("you cannot deactivate your own account")
			}
			u.IsActive = *req.IsActive
			columns = append(columns, "is_active")
			if !u.IsActive {
				kick = true
				u.IsOnShift = false
				u.ShiftStartedAt = nil
				columns = append(columns, "is_on_shift", "shift_started_at")
			}
		}
		if req.Pin != nil {
			if *req.Pin == "" {
				u.PinHash = nil
			} else {
				pin := s.pins.Digest(*req.Pin)
				u.PinHash = &pin
			}
			columns = append(columns, "pin_hash")
		}
		if len(columns) == 0 {
			updated = u
			return nil
		}
		u.UpdatedAt = s.now().UTC()
		if err := users.Update(ctx, u, columns...); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to update user")
	}
	if kick {
		s.realtime.Disconnect(id)
	}
	return updated, nil
}

// Delete deactivates an account. Users are never removed so orders keep
// their waiter.
func (s *Service) Delete(ctx context.Context, actor entity.Actor, id int64) error {
	active := false
	_, err := s.Update(ctx, actor, id, &dto.UpdateUserRequest{IsActive: &active})
	return err
}

// StartShift marks the user as on shift. Starting twice keeps the original start.
func (s *Service) StartShift(ctx context.Context, actor entity.Actor) (*entity.User, error) {
	return s.setShift(ctx, actor, true)
}

// EndShift marks the user as off shift.
func (s *Service) EndShift(ctx context.Context, actor entity.Actor) (*entity.User, error) {
	return s.setShift(ctx, actor, false)
}

func (s *Service) setShift(ctx context.Context, actor entity.Actor, on bool) (*entity.User, error) {
	ctx, span := serviceTracer.Start(ctx, "UserService.SetShift", trace.WithAttributes(
		attribute.Int64("user.id", actor.UserID),
		attribute.Bool("shift.on", on),
	))
	defer span.End()

	u, err := s.repo.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, s.fail(span, notFound(err), "failed to load user")
	}
	if u.IsOnShift == on {
		return u, nil
	}
	now := s.now().UTC()
	u.IsOnShift = on
	if on {
		u.ShiftStartedAt = &now
	} else {
		u.ShiftStartedAt = nil
	}
	u.UpdatedAt = now
	if err := s.repo.Update(ctx, u, "is_on_shift", "shift_started_at"); err != nil {
		return nil, s.fail(span, err, "failed to update shift")
	}
	return u, nil
}

// ChangePassword replaces the caller's password. The caller must hold a
// fresh token and know the current password.
func (s *Service) ChangePassword(ctx context.Context, actor entity.Actor, fresh bool, req *dto.ChangePasswordRequest) error {
	if req == nil {
		return errorbank.BadRequest("password payload is required")
	}
	if err := dto.Check(req); err != nil {
		return err
	}
	if !fresh {
		return errorbank.Unauthenticated("a fresh password login is required", errorbank.WithDetail("reason", "fresh_login_required"))
	}
	if err := auth.ValidatePassword(req.NewPassword, s.minPassword); err != nil {
		return errorbank.ValidationFailed("validation failed", errorbank.WithDetail("new_password", err.Error()))
	}

	ctx, span := serviceTracer.Start(ctx, "UserService.ChangePassword", trace.WithAttributes(attribute.Int64("user.id", actor.UserID)))
	defer span.End()

	u, err := s.repo.GetByID(ctx, actor.UserID)
	if err != nil {
		return s.fail(span, notFound(err), "failed to load user")
	}
	if !auth.CheckPassword(u.PasswordHash, req.CurrentPassword) {
		return errorbank.Unauthenticated("current password is incorrect")
	}
	digest, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return s.fail(span, err, "failed to hash password")
	}
	u.PasswordHash = digest
	u.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, u, "password_hash"); err != nil {
		return s.fail(span, err, "failed to change password")
	}
	return nil
}

func (s *Service) fail(span trace.Span, err error, msg string) error {
	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if database.IsUniqueViolation(err) {
		return errorbank.Conflict(msg+": username or PIN already in use", errorbank.WithCause(err))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return errorbank.Internal(msg, errorbank.WithCause(err))
}

func notFound(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return errorbank.NotFound("user not found")
	}
	return err
}
