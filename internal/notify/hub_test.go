package notify

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/entity"
)

type fakeSubscriber struct {
	mu     sync.Mutex
	events []Event
	fail   bool
	closed bool
}

func (f *fakeSubscriber) Send(ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail || f.closed {
		return errors.New("broken pipe")
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeSubscriber) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSubscriber) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSubscriber) types() []EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]EventType, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Type)
	}
	return out
}

func newHub() *Hub {
	return NewHub(zap.NewNop())
}

func TestSubscribeGreetsOnlyNewcomer(t *testing.T) {
	hub := newHub()
	waiter, cook := &fakeSubscriber{}, &fakeSubscriber{}

	hub.Subscribe(1, entity.RoleWaiter, waiter)
	hub.Subscribe(2, entity.RoleKitchen, cook)

	assert.Equal(t, []EventType{EventConnected}, waiter.types())
	assert.Equal(t, []EventType{EventConnected}, cook.types())
	assert.Equal(t, Stats{Total: 2, Waiters: 1, Kitchen: 1}, hub.Stats())
}

func TestNewSubscriptionSupersedesPrevious(t *testing.T) {
	hub := newHub()
	first, second := &fakeSubscriber{}, &fakeSubscriber{}

	hub.Subscribe(1, entity.RoleWaiter, first)
	hub.Subscribe(1, entity.RoleAdmin, second)

	assert.True(t, first.Closed())
	assert.Equal(t, Stats{Total: 1, Admins: 1}, hub.Stats())

	// the stale connection cleaning up must not evict the new one
	hub.Unsubscribe(1, first)
	assert.Equal(t, 1, hub.Stats().Total)

	hub.Unsubscribe(1, second)
	assert.Equal(t, Stats{}, hub.Stats())
}

func TestOrderEventsAreRoleScoped(t *testing.T) {
	hub := newHub()
	owner, otherWaiter, cook, admin := &fakeSubscriber{}, &fakeSubscriber{}, &fakeSubscriber{}, &fakeSubscriber{}
	hub.Subscribe(1, entity.RoleWaiter, owner)
	hub.Subscribe(2, entity.RoleWaiter, otherWaiter)
	hub.Subscribe(3, entity.RoleKitchen, cook)
	hub.Subscribe(4, entity.RoleAdmin, admin)

	table := 7
	hub.OrderCreated(OrderCreatedData{OrderID: 10, TableNumber: &table, WaiterName: "Anna"})
	hub.OrderReady(1, OrderReadyData{OrderID: 10, TableNumber: &table})
	hub.OrderStatusChanged(OrderStatusChangedData{OrderID: 10, OldStatus: entity.OrderPending, NewStatus: entity.OrderReady})
	hub.ItemStatusChanged(ItemStatusChangedData{OrderID: 10, ItemID: 5, NewStatus: entity.ItemReady})

	assert.Equal(t, []EventType{EventConnected, EventOrderReady, EventOrderStatusChanged, EventItemStatusChanged}, owner.types())
	assert.Equal(t, []EventType{EventConnected, EventOrderStatusChanged, EventItemStatusChanged}, otherWaiter.types())
	assert.Equal(t, []EventType{EventConnected, EventOrderCreated, EventOrderStatusChanged, EventItemStatusChanged}, cook.types())
	assert.Equal(t, []EventType{EventConnected, EventOrderCreated, EventOrderReady, EventOrderStatusChanged, EventItemStatusChanged}, admin.types())
}

func TestFailedDeliveryRemovesSubscriberBeforeReturn(t *testing.T) {
	hub := newHub()
	healthy, broken := &fakeSubscriber{}, &fakeSubscriber{}
	hub.Subscribe(1, entity.RoleKitchen, healthy)
	hub.Subscribe(2, entity.RoleKitchen, broken)
	broken.fail = true

	hub.Broadcast("admin", "kitchen closes at 23:00")

	assert.Equal(t, Stats{Total: 1, Kitchen: 1}, hub.Stats())
	assert.True(t, broken.Closed())
	assert.Equal(t, []EventType{EventConnected, EventBroadcast}, healthy.types())
}

func TestDirectRepliesReachOnlySender(t *testing.T) {
	hub := newHub()
	a, b := &fakeSubscriber{}, &fakeSubscriber{}
	hub.Subscribe(1, entity.RoleWaiter, a)
	hub.Subscribe(2, entity.RoleWaiter, b)

	hub.Pong(1)
	hub.SendStats(1)
	hub.SendError(1, "only admins can broadcast")

	assert.Equal(t, []EventType{EventConnected, EventPong, EventStats, EventError}, a.types())
	assert.Equal(t, []EventType{EventConnected}, b.types())

	a.mu.Lock()
	stats, ok := a.events[2].Data.(Stats)
	a.mu.Unlock()
	require.True(t, ok)
	assert.Equal(t, 2, stats.Waiters)
}

func TestPruneDropsClosedSubscribers(t *testing.T) {
	hub := newHub()
	live, dead := &fakeSubscriber{}, &fakeSubscriber{}
	hub.Subscribe(1, entity.RoleWaiter, live)
	hub.Subscribe(2, entity.RoleAdmin, dead)
	dead.Close()

	assert.Equal(t, 1, hub.Prune())
	assert.Equal(t, Stats{Total: 1, Waiters: 1}, hub.Stats())
}

func TestDisconnectClosesCurrentSubscription(t *testing.T) {
	hub := newHub()
	sub := &fakeSubscriber{}
	hub.Subscribe(3, entity.RoleKitchen, sub)

	assert.True(t, hub.Disconnect(3))
	assert.True(t, sub.Closed())
	assert.Equal(t, Stats{}, hub.Stats())
	assert.False(t, hub.Disconnect(3))
}

func TestPerSubscriberOrderingUnderConcurrency(t *testing.T) {
	hub := newHub()
	sub := &fakeSubscriber{}
	hub.Subscribe(1, entity.RoleAdmin, sub)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			hub.ItemStatusChanged(ItemStatusChangedData{OrderID: 1, ItemID: id, NewStatus: entity.ItemReady})
		}(int64(i))
	}
	wg.Wait()

	assert.Len(t, sub.types(), 51)
}
