package seeder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/auth"
	"github.com/Additional-Code/servio/internal/database/dbtest"
	"github.com/Additional-Code/servio/internal/entity"
)

func TestParseEmbeddedFixtures(t *testing.T) {
	f, err := Parse(defaultFixtures)
	require.NoError(t, err)

	assert.Len(t, f.Users, 3)
	assert.NotEmpty(t, f.Locations)
	assert.NotEmpty(t, f.Categories)
	assert.NotEmpty(t, f.PaymentMethods)
	for _, c := range f.Categories {
		for _, d := range c.Dishes {
			assert.NotEmpty(t, d.Variations, d.Name)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	conns := dbtest.Open(t)
	pins := auth.NewPinHasher("seed-secret")
	s := New(conns, pins, zap.NewNop())
	s.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }

	ctx := context.Background()
	require.NoError(t, s.Run(ctx))
	require.NoError(t, s.Run(ctx))

	users, err := conns.Writer.NewSelect().Model((*entity.User)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, users)

	tables, err := conns.Writer.NewSelect().Model((*entity.Table)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, tables)

	var admin entity.User
	require.NoError(t, conns.Writer.NewSelect().Model(&admin).Where("username = ?", "admin").Scan(ctx))
	assert.Equal(t, entity.RoleAdmin, admin.Role)
	assert.True(t, auth.CheckPassword(admin.PasswordHash, "admin12345"))
	require.NotNil(t, admin.PinHash)
	assert.Equal(t, pins.Digest("1111"), *admin.PinHash)

	defaults, err := conns.Writer.NewSelect().Model((*entity.DishVariation)(nil)).Where("is_default = ?", true).Count(ctx)
	require.NoError(t, err)
	dishes, err := conns.Writer.NewSelect().Model((*entity.Dish)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, dishes, defaults)
}

func TestLoadRejectsUnknownRole(t *testing.T) {
	conns := dbtest.Open(t)
	s := New(conns, auth.NewPinHasher("seed-secret"), zap.NewNop())

	err := s.Load(context.Background(), &Fixtures{Users: []UserFixture{{Username: "x", Role: "CHEF", Password: "secret123"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}
