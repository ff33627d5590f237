package order

import (
	"time"

	"github.com/Additional-Code/servio/internal/entity"
	"github.com/Additional-Code/servio/internal/notify"
)

// Event names carried in the messaging event-type header.
const (
	EventCreated           = "order.created"
	EventStatusChanged     = "order.status_changed"
	EventItemsAdded        = "order.items_added"
	EventItemStatusChanged = "order.item_status_changed"
	EventPaymentUpdated    = "order.payment_updated"
)

// Notifier receives realtime order events after a transaction commits.
// *notify.Hub satisfies it.
type Notifier interface {
	OrderCreated(data notify.OrderCreatedData)
	OrderReady(waiterID int64, data notify.OrderReadyData)
	OrderStatusChanged(data notify.OrderStatusChangedData)
	ItemStatusChanged(data notify.ItemStatusChangedData)
}

// Event is the payload published to the order stream.
type Event struct {
	Type           string               `json:"type"`
	OrderID        int64                `json:"order_id"`
	TableID        *int64               `json:"table_id,omitempty"`
	WaiterID       int64                `json:"waiter_id"`
	OrderType      entity.OrderType     `json:"order_type"`
	Status         entity.OrderStatus   `json:"status"`
	PreviousStatus entity.OrderStatus   `json:"previous_status,omitempty"`
	PaymentStatus  entity.PaymentStatus `json:"payment_status"`
	ItemID         int64                `json:"item_id,omitempty"`
	ItemStatus     entity.ItemStatus    `json:"item_status,omitempty"`
	Department     entity.Department    `json:"department,omitempty"`
	ItemsAdded     int                  `json:"items_added,omitempty"`
	Total          string               `json:"total"`
	TimeToServe    *int                 `json:"time_to_serve,omitempty"`
	OccurredAt     time.Time            `json:"occurred_at"`
}

// outboxEntry is a change recorded inside a transaction and dispatched after commit.
type outboxEntry struct {
	kind       string
	from, to   entity.OrderStatus
	itemID     int64
	itemStatus entity.ItemStatus
	department entity.Department
	itemsAdded int
}
