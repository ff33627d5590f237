// Package notify multicasts order events to staff connections grouped by role.
package notify

import (
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/entity"
)

// Subscriber is a single delivery endpoint. Send must not block; an error
// means the endpoint is gone and the hub drops it.
type Subscriber interface {
	Send(Event) error
	Close()
	Closed() bool
}

// Module provides the process-wide hub.
var Module = fx.Provide(NewHub)

type subscription struct {
	userID int64
	role   entity.Role
	sub    Subscriber
}

// Hub owns the subscriber registry. A single mutex serialises registry
// changes and publishes so every subscriber sees events in publish order.
type Hub struct {
	mu    sync.Mutex
	subs  map[int64]*subscription
	pools map[entity.Role]map[int64]struct{}

	logger *zap.Logger
	now    func() time.Time
}

// NewHub builds an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs: make(map[int64]*subscription),
		pools: map[entity.Role]map[int64]struct{}{
			entity.RoleWaiter:  {},
			entity.RoleKitchen: {},
			entity.RoleAdmin:   {},
		},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe registers sub for userID, closing any previous subscription of
// the same user, and greets it with a connected event.
func (h *Hub) Subscribe(userID int64, role entity.Role, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.subs[userID]; ok {
		h.removeLocked(prev)
		prev.sub.Close()
		h.logger.Info("realtime subscription superseded", zap.Int64("user_id", userID))
	}

	s := &subscription{userID: userID, role: role, sub: sub}
	h.subs[userID] = s
	if pool, ok := h.pools[role]; ok {
		pool[userID] = struct{}{}
	}

	h.deliverLocked(s, h.event(EventConnected, ConnectedData{
		Role:    role,
		Message: "connected to order notifications",
	}))
}

// Unsubscribe removes sub if it is still the user's current subscription.
func (h *Hub) Unsubscribe(userID int64, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.subs[userID]; ok && s.sub == sub {
		h.removeLocked(s)
	}
}

// Disconnect closes the user's subscription, if any. Used when an account
// is deactivated or its role changes.
func (h *Hub) Disconnect(userID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.subs[userID]
	if !ok {
		return false
	}
	h.removeLocked(s)
	s.sub.Close()
	return true
}

// Stats returns subscriber counts.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statsLocked()
}

// Prune drops subscriptions whose transport has already closed.
func (h *Hub) Prune() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for _, s := range h.subs {
		if s.sub.Closed() {
			h.removeLocked(s)
			removed++
		}
	}
	return removed
}

// Pong answers a client ping.
func (h *Hub) Pong(userID int64) {
	h.sendTo(userID, h.event(EventPong, struct{}{}))
}

// SendStats answers a client stats request.
func (h *Hub) SendStats(userID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[userID]; ok {
		h.deliverLocked(s, h.event(EventStats, h.statsLocked()))
	}
}

// SendError reports a rejected client message to its sender only.
func (h *Hub) SendError(userID int64, message string) {
	h.sendTo(userID, h.event(EventError, ErrorData{Message: message}))
}

// Broadcast delivers an admin announcement to everyone.
func (h *Hub) Broadcast(from, message string) {
	h.publish(h.event(EventBroadcast, BroadcastData{From: from, Message: message}), everyone)
}

// OrderCreated notifies the kitchen and admins.
func (h *Hub) OrderCreated(data OrderCreatedData) {
	h.publish(h.event(EventOrderCreated, data), func(s *subscription) bool {
		return s.role == entity.RoleKitchen || s.role == entity.RoleAdmin
	})
}

// OrderReady notifies the owning waiter and admins.
func (h *Hub) OrderReady(waiterID int64, data OrderReadyData) {
	h.publish(h.event(EventOrderReady, data), func(s *subscription) bool {
		return s.userID == waiterID || s.role == entity.RoleAdmin
	})
}

// OrderStatusChanged notifies everyone.
func (h *Hub) OrderStatusChanged(data OrderStatusChangedData) {
	h.publish(h.event(EventOrderStatusChanged, data), everyone)
}

// ItemStatusChanged notifies everyone.
func (h *Hub) ItemStatusChanged(data ItemStatusChangedData) {
	h.publish(h.event(EventItemStatusChanged, data), everyone)
}

func everyone(*subscription) bool { return true }

func (h *Hub) event(t EventType, data any) Event {
	return Event{Type: t, Data: data, Timestamp: h.now()}
}

func (h *Hub) sendTo(userID int64, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[userID]; ok {
		h.deliverLocked(s, ev)
	}
}

func (h *Hub) publish(ev Event, match func(*subscription) bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.subs {
		if match(s) {
			h.deliverLocked(s, ev)
		}
	}
}

// deliverLocked sends ev and drops the subscription on failure; caller holds mu.
func (h *Hub) deliverLocked(s *subscription, ev Event) {
	if err := s.sub.Send(ev); err != nil {
		h.logger.Warn("realtime delivery failed; dropping subscriber",
			zap.Int64("user_id", s.userID),
			zap.String("event", string(ev.Type)),
			zap.Error(err),
		)
		h.removeLocked(s)
		s.sub.Close()
	}
}

func (h *Hub) removeLocked(s *subscription) {
	if cur, ok := h.subs[s.userID]; ok && cur == s {
		delete(h.subs, s.userID)
	}
	if pool, ok := h.pools[s.role]; ok {
		if cur, ok := h.subs[s.userID]; !ok || cur.role != s.role {
			delete(pool, s.userID)
		}
	}
}

func (h *Hub) statsLocked() Stats {
	return Stats{
		Total:   len(h.subs),
		Waiters: len(h.pools[entity.RoleWaiter]),
		Kitchen: len(h.pools[entity.RoleKitchen]),
		Admins:  len(h.pools[entity.RoleAdmin]),
	}
}
