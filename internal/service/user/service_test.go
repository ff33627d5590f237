package user

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/auth"
	"github.com/Additional-Code/servio/internal/config"
	"github.com/Additional-Code/servio/internal/database/dbtest"
	"github.com/Additional-Code/servio/internal/dto"
	"github.com/Additional-Code/servio/internal/entity"
	repo "github.com/Additional-Code/servio/internal/repository/user"
	"github.com/Additional-Code/servio/pkg/errorbank"
)

type fakeRealtime struct {
	dropped []int64
}

func (f *fakeRealtime) Disconnect(userID int64) bool {
	f.dropped = append(f.dropped, userID)
	return true
}

type fixture struct {
	svc      *Service
	seed     *dbtest.Seed
	tokens   *auth.TokenManager
	realtime *fakeRealtime
	admin    entity.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conns := dbtest.Open(t)
	cfg := config.Config{Auth: config.Auth{
		SecretKey:         strings.Repeat("k", 40),
		Algorithm:         "HS256",
		TokenTTL:          time.Hour,
		FreshWindow:       10 * time.Minute,
		Issuer:            "servio",
		Audience:          "servio-staff",
		PasswordMinLength: 8,
	}}
	tokens, err := auth.NewTokenManager(cfg)
	require.NoError(t, err)

	realtime := &fakeRealtime{}
	svc := NewService(Params{
		DB:       conns,
		Repo:     repo.NewRepository(conns),
		Tokens:   tokens,
		Pins:     auth.NewPinHasher(cfg.Auth.SecretKey),
		Realtime: realtime,
		Config:   cfg,
		Logger:   zap.NewNop(),
	})
	seed := dbtest.NewSeed(t, conns)
	admin := seed.User("root", entity.RoleAdmin)
	return &fixture{
		svc:      svc,
		seed:     seed,
		tokens:   tokens,
		realtime: realtime,
		admin:    entity.Actor{UserID: admin.ID, Role: entity.RoleAdmin},
	}
}

func requireKind(t *testing.T, err error, kind errorbank.Kind) *errorbank.AppError {
	t.Helper()
	require.Error(t, err)
	appErr := errorbank.From(err)
	require.Equalf(t, kind, appErr.Kind(), "unexpected error: %v", err)
	return appErr
}

func strPtr(v string) *string { return &v }

func (f *fixture) createWaiter(t *testing.T, username, pin string) *entity.User {
	t.Helper()
	req := &dto.CreateUserRequest{Username: username, FullName: "Waiter " + username, Role: "waiter", Password: "secret123"}
	if pin != "" {
		req.Pin = &pin
	}
	u, err := f.svc.Create(context.Background(), f.admin, req)
	require.NoError(t, err)
	return u
}

func TestCreateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.createWaiter(t, "anna", "1234")
	assert.Equal(t, entity.RoleWaiter, u.Role)
	assert.True(t, u.IsActive)
	require.NotNil(t, u.CreatedByID)
	assert.Equal(t, f.admin.UserID, *u.CreatedByID)
	assert.NotEqual(t, "secret123", u.PasswordHash)
	require.NotNil(t, u.PinHash)
	assert.NotEqual(t, "1234", *u.PinHash)

	_, err := f.svc.Create(ctx, f.admin, &dto.CreateUserRequest{Username: "anna", FullName: "Dup", Role: "WAITER", Password: "secret123"})
	requireKind(t, err, errorbank.KindConflict)

	_, err = f.svc.Create(ctx, f.admin, &dto.CreateUserRequest{Username: "boris", FullName: "B", Role: "WAITER", Password: "secret123", Pin: strPtr("1234")})
	requireKind(t, err, errorbank.KindConflict)

	_, err = f.svc.Create(ctx, f.admin, &dto.CreateUserRequest{Username: "boris", FullName: "B", Role: "WAITER", Password: "lettersonly"})
	appErr := requireKind(t, err, errorbank.KindValidationFailed)
	assert.Contains(t, appErr.Details(), "password")

	_, err = f.svc.Create(ctx, f.admin, &dto.CreateUserRequest{Username: "boris", FullName: "B", Role: "CHEF", Password: "secret123"})
	requireKind(t, err, errorbank.KindValidationFailed)

	_, err = f.svc.Create(ctx, f.admin, &dto.CreateUserRequest{Username: "boris", FullName: "B", Role: "WAITER", Password: "secret123", Pin: strPtr("12")})
	requireKind(t, err, errorbank.KindValidationFailed)
}

func TestLoginIssuesFreshTokenAndPinDoesNot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createWaiter(t, "anna", "4321")

	session, err := f.svc.Login(ctx, &dto.LoginRequest{Username: "anna", Password: "secret123"})
	require.NoError(t, err)
	assert.True(t, session.Token.Fresh)
	require.NotNil(t, session.User.LastLoginAt)

	claims, err := f.tokens.Parse(session.Token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.True(t, f.tokens.IsFresh(claims))

	session, err = f.svc.PinLogin(ctx, &dto.PinLoginRequest{Pin: "4321"})
	require.NoError(t, err)
	assert.False(t, session.Token.Fresh)
	assert.Equal(t, u.ID, session.User.ID)

	_, err = f.svc.Login(ctx, &dto.LoginRequest{Username: "anna", Password: "wrong1234"})
	requireKind(t, err, errorbank.KindUnauthenticated)
	_, err = f.svc.Login(ctx, &dto.LoginRequest{Username: "ghost", Password: "secret123"})
	requireKind(t, err, errorbank.KindUnauthenticated)
	_, err = f.svc.PinLogin(ctx, &dto.PinLoginRequest{Pin: "9999"})
	requireKind(t, err, errorbank.KindUnauthenticated)
}

func TestDeactivatedUserCannotAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createWaiter(t, "anna", "1111")

	session, err := f.svc.Login(ctx, &dto.LoginRequest{Username: "anna", Password: "secret123"})
	require.NoError(t, err)
	claims, err := f.tokens.Parse(session.Token.AccessToken)
	require.NoError(t, err)

	_, err = f.svc.StartShift(ctx, claims.Actor())
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, f.admin, u.ID))
	assert.Equal(t, []int64{u.ID}, f.realtime.dropped)

	stored, err := f.svc.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.False(t, stored.IsOnShift)

	_, err = f.svc.Authenticate(ctx, claims)
	requireKind(t, err, errorbank.KindUnauthenticated)
	_, err = f.svc.Login(ctx, &dto.LoginRequest{Username: "anna", Password: "secret123"})
	requireKind(t, err, errorbank.KindUnauthenticated)
	_, err = f.svc.PinLogin(ctx, &dto.PinLoginRequest{Pin: "1111"})
	requireKind(t, err, errorbank.KindUnauthenticated)

	err = f.svc.Delete(ctx, f.admin, f.admin.UserID)
	requireKind(t, err, errorbank.KindPreconditionFailed)
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createWaiter(t, "anna", "1234")

	updated, err := f.svc.Update(ctx, f.admin, u.ID, &dto.UpdateUserRequest{Role: strPtr("kitchen"), Pin: strPtr("")})
	require.NoError(t, err)
	assert.Equal(t, entity.RoleKitchen, updated.Role)
	assert.Nil(t, updated.PinHash)
	assert.Equal(t, []int64{u.ID}, f.realtime.dropped)

	_, err = f.svc.Update(ctx, f.admin, f.admin.UserID, &dto.UpdateUserRequest{Role: strPtr("WAITER")})
	requireKind(t, err, errorbank.KindPreconditionFailed)

	_, err = f.svc.Update(ctx, f.admin, 999, &dto.UpdateUserRequest{FullName: strPtr("Nobody")})
	requireKind(t, err, errorbank.KindNotFound)

	kitchen, err := f.svc.List(ctx, repo.Filter{Role: entity.RoleKitchen})
	require.NoError(t, err)
	require.Len(t, kitchen, 1)
	assert.Equal(t, u.ID, kitchen[0].ID)
}

func TestShift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createWaiter(t, "anna", "")
	actor := entity.Actor{UserID: u.ID, Role: u.Role}

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return start }
	on, err := f.svc.StartShift(ctx, actor)
	require.NoError(t, err)
	assert.True(t, on.IsOnShift)
	require.NotNil(t, on.ShiftStartedAt)

	f.svc.now = func() time.Time { return start.Add(time.Hour) }
	again, err := f.svc.StartShift(ctx, actor)
	require.NoError(t, err)
	assert.True(t, again.ShiftStartedAt.Equal(start))

	onShift := true
	listed, err := f.svc.List(ctx, repo.Filter{OnShift: &onShift})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	off, err := f.svc.EndShift(ctx, actor)
	require.NoError(t, err)
	assert.False(t, off.IsOnShift)
	assert.Nil(t, off.ShiftStartedAt)
}

func TestChangePasswordNeedsFreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createWaiter(t, "anna", "")
	actor := entity.Actor{UserID: u.ID, Role: u.Role}

	req := &dto.ChangePasswordRequest{CurrentPassword: "secret123", NewPassword: "better4567"}
	err := f.svc.ChangePassword(ctx, actor, false, req)
	appErr := requireKind(t, err, errorbank.KindUnauthenticated)
	assert.Equal(t, "fresh_login_required", appErr.Details()["reason"])

	err = f.svc.ChangePassword(ctx, actor, true, &dto.ChangePasswordRequest{CurrentPassword: "nope12345", NewPassword: "better4567"})
	requireKind(t, err, errorbank.KindUnauthenticated)

	err = f.svc.ChangePassword(ctx, actor, true, &dto.ChangePasswordRequest{CurrentPassword: "secret123", NewPassword: "short1"})
	requireKind(t, err, errorbank.KindValidationFailed)

	require.NoError(t, f.svc.ChangePassword(ctx, actor, true, req))
	_, err = f.svc.Login(ctx, &dto.LoginRequest{Username: "anna", Password: "better4567"})
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, &dto.LoginRequest{Username: "anna", Password: "secret123"})
	requireKind(t, err, errorbank.KindUnauthenticated)
}
