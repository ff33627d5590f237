package floor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/config"
	"github.com/Additional-Code/servio/internal/database/dbtest"
	"github.com/Additional-Code/servio/internal/dto"
	"github.com/Additional-Code/servio/internal/entity"
	locationrepo "github.com/Additional-Code/servio/internal/repository/location"
	orderrepo "github.com/Additional-Code/servio/internal/repository/order"
	tablerepo "github.com/Additional-Code/servio/internal/repository/table"
	"github.com/Additional-Code/servio/pkg/errorbank"
)

func newService(t *testing.T) (*Service, *dbtest.Seed) {
	t.Helper()
	conns := dbtest.Open(t)
	cfg := config.Config{}
	cfg.Restaurant.QRBaseURL = "https://menu.example.com/menu/"
	svc := NewService(Params{
		DB:        conns,
		Locations: locationrepo.NewRepository(conns),
		Tables:    tablerepo.NewRepository(conns),
		Orders:    orderrepo.NewRepository(conns),
		Config:    cfg,
		Logger:    zap.NewNop(),
	})
	return svc, dbtest.NewSeed(t, conns)
}

func boolPtr(v bool) *bool { return &v }

func requireKind(t *testing.T, err error, kind errorbank.Kind) *errorbank.AppError {
	t.Helper()
	require.Error(t, err)
	appErr := errorbank.From(err)
	require.Equalf(t, kind, appErr.Kind(), "unexpected error: %v", err)
	return appErr
}

func TestDeactivateLocationBlockedByActiveOrder(t *testing.T) {
	svc, seed := newService(t)
	ctx := context.Background()

	waiter := seed.User("waiter", entity.RoleWaiter)
	hall := seed.Location("Hall", true)
	t1 := seed.Table(1, &hall.ID, true)
	seed.Table(2, &hall.ID, true)
	o := seed.Order(waiter.ID, &t1.ID, entity.OrderInProgress)
	seed.Occupy(t1, o.ID)

	_, err := svc.UpdateLocation(ctx, hall.ID, &dto.UpdateLocationRequest{IsActive: boolPtr(false)})
	appErr := requireKind(t, err, errorbank.KindPreconditionFailed)
	assert.Equal(t, 1, appErr.Details()["active_orders_count"])
	assert.Equal(t, []int{1}, appErr.Details()["blocking_tables"])

	loc, err := svc.GetLocation(ctx, hall.ID)
	require.NoError(t, err)
	assert.True(t, loc.IsActive)

	stored := seed.ReloadTable(t1.ID)
	assert.True(t, stored.IsActive)
	assert.True(t, stored.IsOccupied)
	require.NotNil(t, stored.CurrentOrderID)
	assert.Equal(t, o.ID, *stored.CurrentOrderID)
}

func TestDeactivateLocationBlockedByServedOrder(t *testing.T) {
	svc, seed := newService(t)

	waiter := seed.User("waiter", entity.RoleWaiter)
	hall := seed.Location("Hall", true)
	t1 := seed.Table(1, &hall.ID, true)
	seed.Order(waiter.ID, &t1.ID, entity.OrderDining)

	_, err := svc.UpdateLocation(context.Background(), hall.ID, &dto.UpdateLocationRequest{IsActive: boolPtr(false)})
	requireKind(t, err, errorbank.KindPreconditionFailed)
}

func TestDeactivateThenReactivateLocation(t *testing.T) {
	svc, seed := newService(t)
	ctx := context.Background()

	waiter := seed.User("waiter", entity.RoleWaiter)
	hall := seed.Location("Hall", true)
	t1 := seed.Table(1, &hall.ID, true)
	t2 := seed.Table(2, &hall.ID, true)
	seed.Order(waiter.ID, &t1.ID, entity.OrderCompleted)

	res, err := svc.UpdateLocation(ctx, hall.ID, &dto.UpdateLocationRequest{IsActive: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, res.Location.IsActive)
	assert.Equal(t, 2, res.TablesDeactivated)
	assert.False(t, seed.ReloadTable(t1.ID).IsActive)
	assert.False(t, seed.ReloadTable(t2.ID).IsActive)

	res, err = svc.UpdateLocation(ctx, hall.ID, &dto.UpdateLocationRequest{IsActive: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, res.Location.IsActive)
	assert.Zero(t, res.TablesActivated)
	assert.False(t, seed.ReloadTable(t1.ID).IsActive)
	assert.False(t, seed.ReloadTable(t2.ID).IsActive)

	res, err = svc.UpdateLocation(ctx, hall.ID, &dto.UpdateLocationRequest{ForceSync: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TablesActivated)
	assert.True(t, seed.ReloadTable(t1.ID).IsActive)
	assert.True(t, seed.ReloadTable(t2.ID).IsActive)
}

func TestLocationCreateAndDelete(t *testing.T) {
	svc, seed := newService(t)
	ctx := context.Background()

	loc, err := svc.CreateLocation(ctx, &dto.CreateLocationRequest{Name: " Terrace "})
	require.NoError(t, err)
	assert.Equal(t, "Terrace", loc.Name)
	assert.Equal(t, "#6B7280", loc.Color)
	assert.True(t, loc.IsActive)

	_, err = svc.CreateLocation(ctx, &dto.CreateLocationRequest{Name: "Terrace"})
	requireKind(t, err, errorbank.KindConflict)

	_, err = svc.CreateLocation(ctx, &dto.CreateLocationRequest{Name: "Bar", Color: "blue"})
	requireKind(t, err, errorbank.KindValidationFailed)

	seed.Table(1, &loc.ID, true)
	err = svc.DeleteLocation(ctx, loc.ID)
	requireKind(t, err, errorbank.KindPreconditionFailed)

	empty := seed.Location("Cellar", true)
	require.NoError(t, svc.DeleteLocation(ctx, empty.ID))
	_, err = svc.GetLocation(ctx, empty.ID)
	requireKind(t, err, errorbank.KindNotFound)
}

func TestCreateTablePlacement(t *testing.T) {
	svc, seed := newService(t)
	ctx := context.Background()

	hall := seed.Location("Hall", true)
	closed := seed.Location("Closed", false)

	table, err := svc.CreateTable(ctx, &dto.CreateTableRequest{Number: 7, Seats: 4, LocationID: &hall.ID})
	require.NoError(t, err)
	assert.True(t, table.IsActive)
	assert.NotEmpty(t, table.QRToken)

	_, err = svc.CreateTable(ctx, &dto.CreateTableRequest{Number: 8, Seats: 4})
	requireKind(t, err, errorbank.KindValidationFailed)

	_, err = svc.CreateTable(ctx, &dto.CreateTableRequest{Number: 8, Seats: 4, LocationID: &closed.ID})
	requireKind(t, err, errorbank.KindPreconditionFailed)

	parked, err := svc.CreateTable(ctx, &dto.CreateTableRequest{Number: 8, Seats: 4, LocationID: &closed.ID, IsActive: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, parked.IsActive)

	_, err = svc.CreateTable(ctx, &dto.CreateTableRequest{Number: 7, Seats: 2, LocationID: &hall.ID})
	requireKind(t, err, errorbank.KindConflict)

	missing := int64(999)
	_, err = svc.CreateTable(ctx, &dto.CreateTableRequest{Number: 9, Seats: 2, LocationID: &missing})
	requireKind(t, err, errorbank.KindNotFound)

	link, err := svc.QRLink(ctx, table.QRToken)
	require.NoError(t, err)
	assert.Equal(t, 7, link.TableNumber)
	assert.Equal(t, "https://menu.example.com/menu/"+table.QRToken, link.MenuURL)

	_, err = svc.QRLink(ctx, parked.QRToken)
	requireKind(t, err, errorbank.KindNotFound)
}

func TestUpdateAndDeleteTable(t *testing.T) {
	svc, seed := newService(t)
	ctx := context.Background()

	waiter := seed.User("waiter", entity.RoleWaiter)
	hall := seed.Location("Hall", true)
	closed := seed.Location("Closed", false)
	t1 := seed.Table(1, &hall.ID, true)

	seats := 6
	updated, err := svc.UpdateTable(ctx, t1.ID, &dto.UpdateTableRequest{Seats: &seats})
	require.NoError(t, err)
	assert.Equal(t, 6, updated.Seats)

	_, err = svc.UpdateTable(ctx, t1.ID, &dto.UpdateTableRequest{LocationID: &closed.ID})
	requireKind(t, err, errorbank.KindPreconditionFailed)

	_, err = svc.UpdateTable(ctx, t1.ID, &dto.UpdateTableRequest{ClearLocation: true})
	requireKind(t, err, errorbank.KindValidationFailed)

	o := seed.Order(waiter.ID, &t1.ID, entity.OrderPending)
	seed.Occupy(t1, o.ID)

	_, err = svc.UpdateTable(ctx, t1.ID, &dto.UpdateTableRequest{IsActive: boolPtr(false)})
	requireKind(t, err, errorbank.KindPreconditionFailed)
	err = svc.DeleteTable(ctx, t1.ID)
	requireKind(t, err, errorbank.KindConflict)

	t1.Release()
	seed.Update(t1, "is_occupied", "current_order_id")
	require.NoError(t, svc.DeleteTable(ctx, t1.ID))

	stored := seed.ReloadTable(t1.ID)
	assert.False(t, stored.IsActive)
	assert.False(t, stored.IsOccupied)
	assert.Nil(t, stored.CurrentOrderID)

	err = svc.DeleteTable(ctx, 999)
	requireKind(t, err, errorbank.KindNotFound)

	tables, err := svc.LocationTables(ctx, hall.ID)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, t1.ID, tables[0].ID)
}
