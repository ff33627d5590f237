package notify

import (
	"time"

	"github.com/Additional-Code/servio/internal/entity"
)

// EventType tags every message pushed to subscribers.
type EventType string

const (
	EventConnected          EventType = "connected"
	EventPong               EventType = "pong"
	EventStats              EventType = "stats"
	EventBroadcast          EventType = "broadcast"
	EventOrderCreated       EventType = "order_created"
	EventOrderReady         EventType = "order_ready"
	EventOrderStatusChanged EventType = "order_status_changed"
	EventItemStatusChanged  EventType = "item_status_changed"
	EventError              EventType = "error"
)

// Event is the envelope written to a subscriber.
type Event struct {
	Type      EventType `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// ConnectedData greets a new subscriber.
type ConnectedData struct {
	Role    entity.Role `json:"role"`
	Message string      `json:"message"`
}

// Stats counts current subscribers per pool.
type Stats struct {
	Total   int `json:"total"`
	Waiters int `json:"waiters"`
	Kitchen int `json:"kitchen"`
	Admins  int `json:"admins"`
}

// BroadcastData carries an admin announcement.
type BroadcastData struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// OrderCreatedData announces a new order to the kitchen.
type OrderCreatedData struct {
	OrderID     int64  `json:"order_id"`
	TableNumber *int   `json:"table_number"`
	WaiterName  string `json:"waiter_name"`
}

// OrderReadyData tells the owning waiter an order can be picked up.
type OrderReadyData struct {
	OrderID     int64 `json:"order_id"`
	TableNumber *int  `json:"table_number"`
}

// OrderStatusChangedData describes an order transition.
type OrderStatusChangedData struct {
	OrderID     int64              `json:"order_id"`
	OldStatus   entity.OrderStatus `json:"old_status"`
	NewStatus   entity.OrderStatus `json:"new_status"`
	TableNumber *int               `json:"table_number"`
}

// ItemStatusChangedData describes an order line transition.
type ItemStatusChangedData struct {
	OrderID   int64             `json:"order_id"`
	ItemID    int64             `json:"item_id"`
	NewStatus entity.ItemStatus `json:"new_status"`
}

// ErrorData reports a rejected client message.
type ErrorData struct {
	Message string `json:"message"`
}
