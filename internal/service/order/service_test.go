package order

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/cache"
	"github.com/Additional-Code/servio/internal/config"
	"github.com/Additional-Code/servio/internal/database/dbtest"
	"github.com/Additional-Code/servio/internal/dto"
	"github.com/Additional-Code/servio/internal/entity"
	"github.com/Additional-Code/servio/internal/messaging"
	"github.com/Additional-Code/servio/internal/notify"
	catalogrepo "github.com/Additional-Code/servio/internal/repository/catalog"
	repo "github.com/Additional-Code/servio/internal/repository/order"
	paymentrepo "github.com/Additional-Code/servio/internal/repository/payment"
	tablerepo "github.com/Additional-Code/servio/internal/repository/table"
	userrepo "github.com/Additional-Code/servio/internal/repository/user"
	"github.com/Additional-Code/servio/pkg/errorbank"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type readyCall struct {
	waiterID int64
	data     notify.OrderReadyData
}

type fakeNotifier struct {
	mu      sync.Mutex
	created []notify.OrderCreatedData
	ready   []readyCall
	status  []notify.OrderStatusChangedData
	items   []notify.ItemStatusChangedData
}

func (f *fakeNotifier) OrderCreated(data notify.OrderCreatedData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, data)
}

func (f *fakeNotifier) OrderReady(waiterID int64, data notify.OrderReadyData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = append(f.ready, readyCall{waiterID: waiterID, data: data})
}

func (f *fakeNotifier) OrderStatusChanged(data notify.OrderStatusChangedData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = append(f.status, data)
}

func (f *fakeNotifier) ItemStatusChanged(data notify.ItemStatusChangedData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, data)
}

type published struct {
	key       string
	eventType string
	event     Event
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []published
}

func (f *fakePublisher) Publish(_ context.Context, key, value []byte, headers map[string]string) error {
	var ev Event
	if err := json.Unmarshal(value, &ev); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, published{key: string(key), eventType: headers[messaging.HeaderEventType], event: ev})
	return nil
}

func (f *fakePublisher) Consume(ctx context.Context, _ messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakePublisher) Topic() string { return "servio.orders" }

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.messages))
	for _, m := range f.messages {
		out = append(out, m.eventType)
	}
	return out
}

type fixture struct {
	svc       *Service
	seed      *dbtest.Seed
	clock     *fakeClock
	notifier  *fakeNotifier
	publisher *fakePublisher

	waiter   *entity.User
	kitchen  *entity.User
	admin    *entity.User
	location *entity.Location
	table    *entity.Table
	category *entity.Category
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conns := dbtest.Open(t)
	seed := dbtest.NewSeed(t, conns)

	cfg := config.Config{}
	cfg.Messaging.Enabled = true
	cfg.Messaging.Kafka.Topic = "servio.orders"
	cfg.Cache.DefaultTTL = time.Minute

	f := &fixture{
		seed:      seed,
		clock:     &fakeClock{now: time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)},
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
	}
	f.svc = NewService(Params{
		DB:         conns,
		Repository: repo.NewRepository(conns),
		Tables:     tablerepo.NewRepository(conns),
		Catalog:    catalogrepo.NewRepository(conns),
		Payments:   paymentrepo.NewRepository(conns),
		Users:      userrepo.NewRepository(conns),
		Cache:      cache.NewNoop(),
		Config:     cfg,
		Logger:     zap.NewNop(),
		Publisher:  f.publisher,
		Notifier:   f.notifier,
	})
	f.svc.now = f.clock.Now

	f.waiter = seed.User("waiter1", entity.RoleWaiter)
	f.kitchen = seed.User("kitchen1", entity.RoleKitchen)
	f.admin = seed.User("admin1", entity.RoleAdmin)
	f.location = seed.Location("Main hall", true)
	f.table = seed.Table(1, &f.location.ID, true)
	f.category = seed.Category("Mains")
	return f
}

func (f *fixture) asWaiter() entity.Actor {
	return entity.Actor{UserID: f.waiter.ID, Role: entity.RoleWaiter}
}

func (f *fixture) asKitchen() entity.Actor {
	return entity.Actor{UserID: f.kitchen.ID, Role: entity.RoleKitchen}
}

func (f *fixture) asAdmin() entity.Actor {
	return entity.Actor{UserID: f.admin.ID, Role: entity.RoleAdmin}
}

func (f *fixture) dineIn(t *testing.T, lines ...dto.OrderItemRequest) *entity.Order {
	t.Helper()
	tableID := f.table.ID
	o, err := f.svc.Create(context.Background(), f.asWaiter(), &dto.CreateOrderRequest{
		TableID:   &tableID,
		OrderType: string(entity.OrderDineIn),
		Items:     lines,
	})
	require.NoError(t, err)
	return o
}

func line(d *entity.Dish, variation int, qty int) dto.OrderItemRequest {
	id := d.Variations[variation].ID
	return dto.OrderItemRequest{DishID: d.ID, VariationID: &id, Quantity: qty}
}

func requireKind(t *testing.T, err error, kind errorbank.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Truef(t, errorbank.Is(err, kind), "expected %s, got %v", kind, err)
}

func TestCreateDineInClaimsTable(t *testing.T) {
	f := newFixture(t)
	burger := f.seed.Dish(f.category.ID, "Burger", entity.DepartmentGrill, "10.00")

	o := f.dineIn(t, line(burger, 0, 2))

	assert.Equal(t, "20.00", o.Total.StringFixed(2))
	assert.Equal(t, entity.OrderPending, o.Status)
	assert.Equal(t, entity.PaymentUnpaid, o.PaymentStatus)
	require.Len(t, o.Items, 1)
	item := o.Items[0]
	assert.Equal(t, entity.ItemInPreparation, item.Status)
	assert.Equal(t, entity.DepartmentGrill, item.Department)
	assert.Equal(t, "10.00", item.Price.StringFixed(2))
	assert.Equal(t, "20.00", item.Total.StringFixed(2))
	require.NotNil(t, item.PreparationStartedAt)

	table := f.seed.ReloadTable(f.table.ID)
	assert.True(t, table.IsOccupied)
	require.NotNil(t, table.CurrentOrderID)
	assert.Equal(t, o.ID, *table.CurrentOrderID)

	require.Len(t, f.notifier.created, 1)
	created := f.notifier.created[0]
	assert.Equal(t, o.ID, created.OrderID)
	require.NotNil(t, created.TableNumber)
	assert.Equal(t, 1, *created.TableNumber)
	assert.Equal(t, f.waiter.FullName, created.WaiterName)

	assert.Equal(t, []string{EventCreated}, f.publisher.types())
	assert.Equal(t, "order-"+strconv.FormatInt(o.ID, 10), f.publisher.messages[0].key)

	history, err := f.svc.History(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entity.OrderPending, history[0].ToStatus)
}

func TestItemLifecycleDerivesOrderAndReleasesTable(t *testing.T) {
	f := newFixture(t)
	burger := f.seed.Dish(f.category.ID, "Burger", entity.DepartmentGrill, "10.00")
	ctx := context.Background()

	o := f.dineIn(t, line(burger, 0, 2))
	itemID := o.Items[0].ID

	f.clock.Advance(7*time.Minute + 30*time.Second)
	o, err := f.svc.SetItemStatus(ctx, f.asKitchen(), o.ID, itemID, &dto.UpdateItemStatusRequest{Status: "READY"})
	require.NoError(t, err)
	assert.Equal(t, entity.OrderReady, o.Status)
	require.NotNil(t, o.Items[0].ReadyAt)
	require.NotNil(t, o.Items[0].ActualPreparationTime)
	assert.Equal(t, 7, *o.Items[0].ActualPreparationTime)

	require.Len(t, f.notifier.ready, 1)
	assert.Equal(t, f.waiter.ID, f.notifier.ready[0].waiterID)
	require.Len(t, f.notifier.items, 1)
	assert.Equal(t, entity.ItemReady, f.notifier.items[0].NewStatus)

	f.clock.Advance(3 * time.Minute)
	o, err = f.svc.SetItemStatus(ctx, f.asWaiter(), o.ID, itemID, &dto.UpdateItemStatusRequest{Status: "SERVED"})
	require.NoError(t, err)
	assert.Equal(t, entity.OrderServed, o.Status)
	require.NotNil(t, o.ServedAt)
	require.NotNil(t, o.TimeToServe)
	assert.Equal(t, 10, *o.TimeToServe)

	table := f.seed.ReloadTable(f.table.ID)
	assert.False(t, table.IsOccupied)
	assert.Nil(t, table.CurrentOrderID)

	assert.Equal(t, []string{
		EventCreated,
		EventItemStatusChanged, EventStatusChanged,
		EventItemStatusChanged, EventStatusChanged,
	}, f.publisher.types())

	history, err := f.svc.History(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, entity.OrderReady, history[1].ToStatus)
	assert.Equal(t, entity.OrderServed, history[2].ToStatus)
	require.NotNil(t, history[2].ChangedByID)
	assert.Equal(t, f.waiter.ID, *history[2].ChangedByID)
}

func TestAppendItemsAdjustsTotalAndStatus(t *testing.T) {
	f := newFixture(t)
	soup := f.seed.Dish(f.category.ID, "Soup", entity.DepartmentHot, "15.50")
	salad := f.seed.Dish(f.category.ID, "Salad", entity.DepartmentCold, "7.99")
	cake := f.seed.Dish(f.category.ID, "Cake", entity.DepartmentDessert, "12.75")

	o := f.dineIn(t, line(soup, 0, 1))
	assert.Equal(t, "15.50", o.Total.StringFixed(2))

	o, err := f.svc.AddItems(context.Background(), f.asWaiter(), o.ID, &dto.AddItemsRequest{
		Items: []dto.OrderItemRequest{line(salad, 0, 3), line(cake, 0, 1)},
	})
	require.NoError(t, err)
	assert.Equal(t, "52.22", o.Total.StringFixed(2))
	assert.Equal(t, entity.OrderInProgress, o.Status)
	require.Len(t, o.Items, 3)
	assert.Equal(t, "23.97", o.Items[1].Total.StringFixed(2))
	assert.Equal(t, entity.DepartmentDessert, o.Items[2].Department)

	table := f.seed.ReloadTable(f.table.ID)
	require.NotNil(t, table.CurrentOrderID)
	assert.Equal(t, o.ID, *table.CurrentOrderID)
}

func TestAppendAfterServingMovesToDining(t *testing.T) {
	f := newFixture(t)
	burger := f.seed.Dish(f.category.ID, "Burger", entity.DepartmentGrill, "10.00")
	ctx := context.Background()

	o := f.dineIn(t, line(burger, 0, 1))
	_, err := f.svc.SetItemStatus(ctx, f.asKitchen(), o.ID, o.Items[0].ID, &dto.UpdateItemStatusRequest{Status: "READY"})
	require.NoError(t, err)
	_, err = f.svc.SetItemStatus(ctx, f.asWaiter(), o.ID, o.Items[0].ID, &dto.UpdateItemStatusRequest{Status: "SERVED"})
	require.NoError(t, err)

	o, err = f.svc.AddItems(ctx, f.asWaiter(), o.ID, &dto.AddItemsRequest{Items: []dto.OrderItemRequest{line(burger, 0, 1)}})
	require.NoError(t, err)
	assert.Equal(t, entity.OrderDining, o.Status)
	assert.Nil(t, f.seed.ReloadTable(f.table.ID).CurrentOrderID)

	o, err = f.svc.SetStatus(ctx, f.asKitchen(), o.ID, &dto.UpdateOrderStatusRequest{Status: "IN_PROGRESS"})
	require.NoError(t, err)
	assert.Equal(t, entity.OrderInProgress, o.Status)

	table := f.seed.ReloadTable(f.table.ID)
	assert.True(t, table.IsOccupied)
	require.NotNil(t, table.CurrentOrderID)
	assert.Equal(t, o.ID, *table.CurrentOrderID)
}

func TestReturnToKitchenNeedsItsTable(t *testing.T) {
	f := newFixture(t)
	burger := f.seed.Dish(f.category.ID, "Burger", entity.DepartmentGrill, "10.00")
	ctx := context.Background()

	first := f.dineIn(t, line(burger, 0, 1))
	_, err := f.svc.SetItemStatus(ctx, f.asKitchen(), first.ID, first.Items[0].ID, &dto.UpdateItemStatusRequest{Status: "READY"})
	require.NoError(t, err)
	_, err = f.svc.SetItemStatus(ctx, f.asWaiter(), first.ID, first.Items[0].ID, &dto.UpdateItemStatusRequest{Status: "SERVED"})
	require.NoError(t, err)

	second := f.dineIn(t, line(burger, 0, 1))
	first, err = f.svc.AddItems(ctx, f.asWaiter(), first.ID, &dto.AddItemsRequest{Items: []dto.OrderItemRequest{line(burger, 0, 1)}})
	require.NoError(t, err)
	require.Equal(t, entity.OrderDining, first.Status)

	_, err = f.svc.SetStatus(ctx, f.asKitchen(), first.ID, &dto.UpdateOrderStatusRequest{Status: "IN_PROGRESS"})
	requireKind(t, err, errorbank.KindConflict)
	assert.Equal(t, entity.OrderDining, f.seed.ReloadOrder(first.ID).Status)

	table := f.seed.ReloadTable(f.table.ID)
	require.NotNil(t, table.CurrentOrderID)
	assert.Equal(t, second.ID, *table.CurrentOrderID)

	_, err = f.svc.SetStatus(ctx, f.asWaiter(), second.ID, &dto.UpdateOrderStatusRequest{Status: "CANCELLED"})
	require.NoError(t, err)
	first, err = f.svc.SetStatus(ctx, f.asKitchen(), first.ID, &dto.UpdateOrderStatusRequest{Status: "IN_PROGRESS"})
	require.NoError(t, err)

	table = f.seed.ReloadTable(f.table.ID)
	assert.True(t, table.IsOccupied)
	require.NotNil(t, table.CurrentOrderID)
	assert.Equal(t, first.ID, *table.CurrentOrderID)
}

func TestReturnToKitchenRefusedAtInactiveTable(t *testing.T) {
	f := newFixture(t)
	burger := f.seed.Dish(f.category.ID, "Burger", entity.DepartmentGrill, "10.00")
	ctx := context.Background()

	o := f.seed.Order(f.waiter.ID, &f.table.ID, entity.OrderDining)
	f.seed.Item(o.ID, burger, entity.ItemServed, f.clock.Now())
	f.table.Deactivate()
	f.seed.Update(f.table, "is_active", "is_occupied", "current_order_id")

	_, err := f.svc.SetStatus(ctx, f.asKitchen(), o.ID, &dto.UpdateOrderStatusRequest{Status: "IN_PROGRESS"})
	requireKind(t, err, errorbank.KindPreconditionFailed)
	assert.Nil(t, f.seed.ReloadTable(f.table.ID).CurrentOrderID)
}

func TestCreateRejectsBusyTable(t *testing.T) {
	f := newFixture(t)
	burger := f.seed.Dish(f.category.ID, "Burger", entity.DepartmentGrill, "10.00")
	first := f.dineIn(t, line(burger, 0, 1))

	tableID := f.table.ID
	req := &dto.CreateOrderRequest{TableID: &tableID, Items: []dto.OrderItemRequest{line(burger, 0, 1)}}
	_, err := f.svc.Create(context.Background(), f.asWaiter(), req)
	requireKind(t, err, errorbank.KindConflict)

	// A lost pointer must not let a second order in while the first still holds the seat.
	table := f.seed.ReloadTable(f.table.ID)
	table.Release()
	f.seed.Update(table, "is_occupied", "current_order_id")

	_, err = f.svc.Create(context.Background(), f.asWaiter(), req)
	requireKind(t, err, errorbank.KindConflict)
	assert.Equal(t, entity.OrderPending, f.seed.ReloadOrder(first.ID).Status)
}

func TestCreateChecksTableBeforeQuantity(t *testing.T) {
	f := newFixture(t)
	burger := f.seed.Dish(f.category.ID, "Burger", entity.DepartmentGrill, "10.00")
	f.dineIn(t, line(burger, 0, 1))

	tableID := f.table.ID
	_, err := f.svc.Create(context.Background(), f.asWaiter(), &dto.CreateOrderRequest{
		TableID: &tableID,
		Items:   []dto.OrderItemRequest{line(burger, 0, dto.MaxItemQuantity+1)},
	})
	requireKind(t, err, errorbank.KindConflict)
}

func TestCreateRejectsQuantityOutOfRange(t *testing.T) {
	f := newFixture(t)
	burger := f.seed.Dish(f.category.ID, "Burger", entity.DepartmentGrill, "10.00")
	tableID := f.table.ID

	for _, qty := range []int{0, -3, dto.MaxItemQuantity + 1} {
		_, err := f.svc.Create(context.Background(), f.asWaiter(), &dto.CreateOrderRequest{
			TableID: &tableID,
			Items:   []dto.OrderItemRequest{line(burger, 0, qty)},
		})
		requireKind(t, err, errorbank.KindValidationFailed)
	}
	assert.Nil(t, f.seed.ReloadTable(f.table.ID).CurrentOrderID)

	o, err := f.svc.Create(context.Background(), f.asWaiter(), &dto.CreateOrderRequest{
		TableID: &tableID,
		Items:   []dto.OrderItemRequest{line(burger, 0, dto.MaxItemQuantity)},
	})
	require.NoError(t, err)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("500.00")))
}

func TestCreateConcurrentOnSameTable(t *testing.T) {
	f := newFixture(t)
	burger := f.seed.Dish(f.category.ID, "Burger", entity.DepartmentGrill, "10.00")
	tableID := f.table.ID

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Create(context.Background(), f.asWaiter(), &dto.CreateOrderRequest{
				TableID: &tableID,
				Items:   []dto.OrderItemRequest{line(burger, 0, 1)},
			})
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errorbank.Is(err, errorbank.KindConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
}

func TestCreatePreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	burger := f.seed.Dish(f.category.ID, "Burger", entity.DepartmentGrill, "10.00")

	missing := int64(9999)
	_, err := f.svc.Create(ctx, f.asWaiter(), &dto.CreateOrderRequest{TableID: &missing, Items: []dto.OrderItemRequest{line(burger, 0, 1)}})
	requireKind(t, err, errorbank.KindNotFound)

	inactive := f.seed.Table(2, &f.location.ID, false)
	_, err = f.svc.Create(ctx, f.asWaiter(), &dto.CreateOrderRequest{TableID: &inactive.ID, Items: []dto.OrderItemRequest{line(burger, 0, 1)}})
	requireKind(t, err, errorbank.KindPreconditionFailed)

	tableID := f.table.ID
	_, err = f.svc.Create(ctx, f.asWaiter(), &dto.CreateOrderRequest{TableID: &tableID, Items: []dto.OrderItemRequest{{DishID: 424242, Quantity: 1}}})
	requireKind(t, err, errorbank.KindNotFound)

	_, err = f.svc.Create(ctx, f.asWaiter(), &dto.CreateOrderRequest{TableID: &tableID, Items: []dto.OrderItemRequest{line(burger, 0, 51)}})
	requireKind(t, err, errorbank.KindValidationFailed)

	_, err = f.svc.Create(ctx, f.asWaiter(), &dto.CreateOrderRequest{Items: []dto.OrderItemRequest{line(burger, 0, 1)}})
	requireKind(t, err, errorbank.KindValidationFailed)

	_, err = f.svc.Create(ctx, f.asKitchen(), &dto.CreateOrderRequest{TableID: &tableID, Items: []dto.OrderItemRequest{line(burger, 0, 1)}})
	requireKind(t, err, errorbank.KindPermissionDenied)

	table := f.seed.ReloadTable(f.table.ID)
	assert.False(t, table.IsOccupied)
	assert.Nil(t, table.CurrentOrderID)
}

func TestCreateTakeawayUsesDefaultVariation(t *testing.T) {
	f := newFixture(t)
	pizza := f.seed.Dish(f.category.ID, "Pizza", entity.DepartmentBakery, "9.00", "14.00")

	o, err := f.svc.Create(context.Background(), f.asWaiter(), &dto.CreateOrderRequest{
		OrderType: string(entity.OrderTakeaway),
		Items:     []dto.OrderItemRequest{{DishID: pizza.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Nil(t, o.TableID)
	require.Len(t, o.Items, 1)
	assert.Equal(t, pizza.Variations[0].ID, *o.Items[0].VariationID)
	assert.Equal(t, "18.00", o.Total.StringFixed(2))
	assert.Nil(t, f.notifier.created[0].TableNumber)

	foreign := int64(777)
	_, err = f.svc.Create(context.Background(), f.asWaiter(), &dto.CreateOrderRequest{
		OrderType: string(entity.OrderDelivery),
		Items:     []dto.OrderItemRequest{{DishID: pizza.ID, VariationID: &foreign, Quantity: 1}},
	})
	requireKind(t, err, errorbank.KindValidationFailed)
}

func TestAppendUnavailableDishLeavesOrderUntouched(t *testing.T) {
	f := newFixture(t)
	burger := f.seed.Dish(f.category.ID, "Burger", entity.DepartmentGrill, "10.00")
	fries := f.seed.Dish(f.category.ID, "Fries", entity.DepartmentGrill, "4.00")
	fries.IsAvailable = false
	f.seed.Update(fries, "is_available")

	o := f.dineIn(t, line(burger, 0, 1))
	_, err := f.svc.AddItems(context.Background(), f.asWaiter(), o.ID, &dto.AddItemsRequest{
		Items: []dto.OrderItemRequest{line(burger, 0, 2), line(fries, 0, 1)},
	})
	requireKind(t, err, errorbank.KindValidationFailed)

	stored := f.seed.ReloadOrder(o.ID)
	assert.Len(t, stored.Items, 1)
	assert.Equal(t, "10.00", stored.Total.StringFixed(2))
	assert.Equal(t, entity.OrderPending, stored.Status)
}

func TestTerminalOrdersRefuseChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	burger := f.seed.Dish(f.category.ID, "Burger", entity.DepartmentGrill, "10.00")

	o := f.dineIn(t, line(burger, 0, 1))
	o, err := f.svc.SetStatus(ctx, f.asWaiter(), o.ID, &dto.UpdateOrderStatusRequest{Status: "CANCELLED", Note: "guest left"})
	require.NoError(t, err)
	assert.Equal(t, entity.OrderCancelled, o.Status)
	require.NotNil(t, o.CancelledAt)

	table := f.seed.ReloadTable(f.table.ID)
	assert.False(t, table.IsOccupied)
	assert.Nil(t, table.CurrentOrderID)

	_, err = f.svc.SetStatus(ctx, f.asAdmin(), o.ID, &dto.UpdateOrderStatusRequest{Status: "IN_PROGRESS"})
	requireKind(t, err, errorbank.KindInvalidTransition)

	_, err = f.svc.AddItems(ctx, f.asWaiter(), o.ID, &dto.AddItemsRequest{Items: []dto.OrderItemRequest{line(burger, 0, 1)}})
	requireKind(t, err, errorbank.KindInvalidTransition)

	_, err = f.svc.SetItemStatus(ctx, f.asKitchen(), o.ID, o.Items[0].ID, &dto.UpdateItemStatusRequest{Status: "READY"})
	requireKind(t, err, errorbank.KindInvalidTransition)

	_, err = f.svc.SetItemQuantity(ctx, f.asWaiter(), o.ID, o.Items[0].ID, &dto.UpdateItemQuantityRequest{Quantity: 2})
	requireKind(t, err, errorbank.KindInvalidTransition)
}

func TestSetStatusRulesAndRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	burger := f.seed.Dish(f.category.ID, "Burger", entity.DepartmentGrill, "10.00")
	o := f.dineIn(t, line(burger, 0, 1))

	_, err := f.svc.SetStatus(ctx, f.asWaiter(), o.ID, &dto.UpdateOrderStatusRequest{Status: "READY"})
	requireKind(t, err, errorbank.KindPermissionDenied)

	_, err = f.svc.SetStatus(ctx, f.asWaiter(), o.ID, &dto.UpdateOrderStatusRequest{Status: "COMPLETED"})
	requireKind(t, err, errorbank.KindInvalidTransition)

	_, err = f.svc.SetStatus(ctx, f.asWaiter(), o.ID, &dto.UpdateOrderStatusRequest{Status: "EATING"})
	requireKind(t, err, errorbank.KindValidationFailed)

	_, err = f.svc.SetStatus(ctx, f.asWaiter(), 9999, &dto.UpdateOrderStatusRequest{Status: "CANCELLED"})
	requireKind(t, err, errorbank.KindNotFound)

	o, err = f.svc.SetStatus(ctx, f.asKitchen(), o.ID, &dto.UpdateOrderStatusRequest{Status: "IN_PROGRESS"})
	require.NoError(t, err)
	o, err = f.svc.SetStatus(ctx, f.asWaiter(), o.ID, &dto.UpdateOrderStatusRequest{Status: "SERVED"})
	require.NoError(t, err)
	o, err = f.svc.SetStatus(ctx, f.asWaiter(), o.ID, &dto.UpdateOrderStatusRequest{Status: "COMPLETED"})
	require.NoError(t, err)
	assert.Equal(t, entity.OrderCompleted, o.Status)
	require.NotNil(t, o.CompletedAt)

	require.Len(t, f.notifier.status, 3)
	assert.Equal(t, entity.OrderPending, f.notifier.status[0].OldStatus)
	assert.Equal(t, entity.OrderCompleted, f.notifier.status[2].NewStatus)
}

func TestCancelItemsKeepsTotalsConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	soup := f.seed.Dish(f.category.ID, "Soup", entity.DepartmentHot, "15.50")
	salad := f.seed.Dish(f.category.ID, "Salad", entity.DepartmentCold, "7.99")

	o := f.dineIn(t, line(soup, 0, 1), line(salad, 0, 3))
	assert.Equal(t, "39.47", o.Total.StringFixed(2))

	o, err := f.svc.SetItemStatus(ctx, f.asWaiter(), o.ID, o.Items[1].ID, &dto.UpdateItemStatusRequest{Status: "CANCELLED"})
	require.NoError(t, err)
	assert.Equal(t, "15.50", o.Total.StringFixed(2))
	assert.Equal(t, entity.OrderPending, o.Status)

	o, err = f.svc.SetItemStatus(ctx, f.asKitchen(), o.ID, o.Items[0].ID, &dto.UpdateItemStatusRequest{Status: "READY"})
	require.NoError(t, err)
	assert.Equal(t, entity.OrderReady, o.Status)

	o, err = f.svc.SetItemStatus(ctx, f.asKitchen(), o.ID, o.Items[0].ID, &dto.UpdateItemStatusRequest{Status: "CANCELLED"})
	require.NoError(t, err)
	assert.True(t, o.Total.IsZero())
	assert.Equal(t, entity.OrderReady, o.Status)

	_, err = f.svc.SetItemStatus(ctx, f.asKitchen(), o.ID, o.Items[0].ID, &dto.UpdateItemStatusRequest{Status: "READY"})
	requireKind(t, err, errorbank.KindInvalidTransition)

	_, err = f.svc.SetItemStatus(ctx, f.asKitchen(), o.ID, 9999, &dto.UpdateItemStatusRequest{Status: "READY"})
	requireKind(t, err, errorbank.KindNotFound)
}

func TestItemStatusAcceptsCookingSpelling(t *testing.T) {
	f := newFixture(t)
	burger := f.seed.Dish(f.category.ID, "Burger", entity.DepartmentGrill, "10.00")
	o := f.dineIn(t, line(burger, 0, 1))

	_, err := f.svc.SetItemStatus(context.Background(), f.asKitchen(), o.ID, o.Items[0].ID, &dto.UpdateItemStatusRequest{Status: "cooking"})
	requireKind(t, err, errorbank.KindInvalidTransition)

	_, err = f.svc.SetItemStatus(context.Background(), f.asWaiter(), o.ID, o.Items[0].ID, &dto.UpdateItemStatusRequest{Status: "READY"})
	requireKind(t, err, errorbank.KindPermissionDenied)
}

func TestSetItemQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	salad := f.seed.Dish(f.category.ID, "Salad", entity.DepartmentCold, "7.99")
	soup := f.seed.Dish(f.category.ID, "Soup", entity.DepartmentHot, "15.50")

	o := f.dineIn(t, line(salad, 0, 1), line(soup, 0, 1))
	o, err := f.svc.SetItemQuantity(ctx, f.asWaiter(), o.ID, o.Items[0].ID, &dto.UpdateItemQuantityRequest{Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, o.Items[0].Quantity)
	assert.Equal(t, "23.97", o.Items[0].Total.StringFixed(2))
	assert.Equal(t, "39.47", o.Total.StringFixed(2))

	_, err = f.svc.SetItemQuantity(ctx, f.asWaiter(), o.ID, o.Items[0].ID, &dto.UpdateItemQuantityRequest{Quantity: 0})
	requireKind(t, err, errorbank.KindValidationFailed)

	_, err = f.svc.SetItemStatus(ctx, f.asKitchen(), o.ID, o.Items[1].ID, &dto.UpdateItemStatusRequest{Status: "READY"})
	require.NoError(t, err)
	_, err = f.svc.SetItemQuantity(ctx, f.asWaiter(), o.ID, o.Items[1].ID, &dto.UpdateItemQuantityRequest{Quantity: 2})
	requireKind(t, err, errorbank.KindInvalidTransition)
}

func TestSetPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	burger := f.seed.Dish(f.category.ID, "Burger", entity.DepartmentGrill, "10.00")
	cash := f.seed.PaymentMethod("Cash", true)
	voucher := f.seed.PaymentMethod("Voucher", false)

	o := f.dineIn(t, line(burger, 0, 1))

	_, err := f.svc.SetPayment(ctx, f.asWaiter(), o.ID, &dto.UpdatePaymentRequest{PaymentStatus: "PAID"})
	requireKind(t, err, errorbank.KindValidationFailed)

	_, err = f.svc.SetPayment(ctx, f.asWaiter(), o.ID, &dto.UpdatePaymentRequest{PaymentStatus: "PAID", PaymentMethodID: &voucher.ID})
	requireKind(t, err, errorbank.KindPreconditionFailed)

	_, err = f.svc.SetPayment(ctx, f.asKitchen(), o.ID, &dto.UpdatePaymentRequest{PaymentStatus: "PAID", PaymentMethodID: &cash.ID})
	requireKind(t, err, errorbank.KindPermissionDenied)

	o, err = f.svc.SetPayment(ctx, f.asWaiter(), o.ID, &dto.UpdatePaymentRequest{PaymentStatus: "PAID", PaymentMethodID: &cash.ID})
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentPaid, o.PaymentStatus)
	require.NotNil(t, o.PaymentMethodID)
	assert.Equal(t, cash.ID, *o.PaymentMethodID)
	assert.Equal(t, entity.OrderPending, o.Status)

	_, err = f.svc.SetPayment(ctx, f.asWaiter(), o.ID, &dto.UpdatePaymentRequest{PaymentStatus: "UNPAID"})
	requireKind(t, err, errorbank.KindInvalidTransition)

	o, err = f.svc.SetPayment(ctx, f.asAdmin(), o.ID, &dto.UpdatePaymentRequest{PaymentStatus: "REFUNDED"})
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentRefunded, o.PaymentStatus)

	cancelled := f.seed.Table(5, &f.location.ID, true)
	o2, err := f.svc.Create(ctx, f.asWaiter(), &dto.CreateOrderRequest{TableID: &cancelled.ID, Items: []dto.OrderItemRequest{line(burger, 0, 1)}})
	require.NoError(t, err)
	_, err = f.svc.SetStatus(ctx, f.asWaiter(), o2.ID, &dto.UpdateOrderStatusRequest{Status: "CANCELLED"})
	require.NoError(t, err)
	_, err = f.svc.SetPayment(ctx, f.asWaiter(), o2.ID, &dto.UpdatePaymentRequest{PaymentStatus: "PAID", PaymentMethodID: &cash.ID})
	requireKind(t, err, errorbank.KindInvalidTransition)
}

func TestListScopesWaiters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	burger := f.seed.Dish(f.category.ID, "Burger", entity.DepartmentGrill, "10.00")
	other := f.seed.User("waiter2", entity.RoleWaiter)

	mine := f.dineIn(t, line(burger, 0, 1))
	_, err := f.svc.Create(ctx, entity.Actor{UserID: other.ID, Role: entity.RoleWaiter}, &dto.CreateOrderRequest{
		OrderType: string(entity.OrderTakeaway),
		Items:     []dto.OrderItemRequest{line(burger, 0, 1)},
	})
	require.NoError(t, err)

	orders, err := f.svc.List(ctx, f.asWaiter(), repo.Filter{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, mine.ID, orders[0].ID)

	orders, err = f.svc.List(ctx, f.asAdmin(), repo.Filter{})
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	orders, err = f.svc.List(ctx, f.asAdmin(), repo.Filter{Type: entity.OrderTakeaway})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestSendToKitchenIsNoop(t *testing.T) {
	f := newFixture(t)
	burger := f.seed.Dish(f.category.ID, "Burger", entity.DepartmentGrill, "10.00")
	o := f.dineIn(t, line(burger, 0, 1))

	got, err := f.svc.SendToKitchen(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Status, got.Status)
	assert.Equal(t, entity.ItemInPreparation, got.Items[0].Status)

	_, err = f.svc.SendToKitchen(context.Background(), 9999)
	requireKind(t, err, errorbank.KindNotFound)
}
