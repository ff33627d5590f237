package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Order is a guest order taken by a waiter. Items are owned by the order.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID              int64           `bun:",pk,autoincrement" json:"id"`
	TableID         *int64          `bun:"table_id" json:"table_id"`
	WaiterID        int64           `bun:"waiter_id,notnull" json:"waiter_id"`
	OrderType       OrderType       `bun:"order_type,notnull" json:"order_type"`
	Total           decimal.Decimal `bun:"total,type:decimal(10,2),notnull" json:"total"`
	Status          OrderStatus     `bun:"status,notnull" json:"status"`
	PaymentStatus   PaymentStatus   `bun:"payment_status,notnull" json:"payment_status"`
	PaymentMethodID *int64          `bun:"payment_method_id" json:"payment_method_id"`
	Notes           string          `bun:"notes,notnull" json:"notes"`
	KitchenNotes    string          `bun:"kitchen_notes,notnull" json:"kitchen_notes"`
	TimeToServe     *int            `bun:"time_to_serve" json:"time_to_serve"`
	CreatedAt       time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt       time.Time       `bun:"updated_at,nullzero" json:"updated_at"`
	ServedAt        *time.Time      `bun:"served_at" json:"served_at"`
	CancelledAt     *time.Time      `bun:"cancelled_at" json:"cancelled_at"`
	CompletedAt     *time.Time      `bun:"completed_at" json:"completed_at"`

	Items  []*OrderItem `bun:"rel:has-many,join:id=order_id" json:"items,omitempty"`
	Table  *Table       `bun:"rel:belongs-to,join:table_id=id" json:"-"`
	Waiter *User        `bun:"rel:belongs-to,join:waiter_id=id" json:"-"`
}

// OrderItem is a single order line routed to a kitchen department.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID                    int64           `bun:",pk,autoincrement" json:"id"`
	OrderID               int64           `bun:"order_id,notnull" json:"order_id"`
	DishID                int64           `bun:"dish_id,notnull" json:"dish_id"`
	VariationID           *int64          `bun:"variation_id" json:"variation_id"`
	Quantity              int             `bun:"quantity,notnull" json:"quantity"`
	Price                 decimal.Decimal `bun:"price,type:decimal(10,2),notnull" json:"price"`
	Total                 decimal.Decimal `bun:"total,type:decimal(10,2),notnull" json:"total"`
	Status                ItemStatus      `bun:"status,notnull" json:"status"`
	Department            Department      `bun:"department,notnull" json:"department"`
	Comment               string          `bun:"comment,notnull" json:"comment"`
	CreatedAt             time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt             time.Time       `bun:"updated_at,nullzero" json:"updated_at"`
	PreparationStartedAt  *time.Time      `bun:"preparation_started_at" json:"preparation_started_at"`
	ReadyAt               *time.Time      `bun:"ready_at" json:"ready_at"`
	ServedAt              *time.Time      `bun:"served_at" json:"served_at"`
	ActualPreparationTime *int            `bun:"actual_preparation_time" json:"actual_preparation_time"`

	Dish      *Dish          `bun:"rel:belongs-to,join:dish_id=id" json:"-"`
	Variation *DishVariation `bun:"rel:belongs-to,join:variation_id=id" json:"-"`
	Order     *Order         `bun:"rel:belongs-to,join:order_id=id" json:"-"`
}

// LineTotal returns price × quantity.
func (i *OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity))).Round(2)
}

// OrderStatusLog records every order status change, explicit or derived.
type OrderStatusLog struct {
	bun.BaseModel `bun:"table:order_status_logs,alias:osl"`

	ID          int64       `bun:",pk,autoincrement" json:"id"`
	OrderID     int64       `bun:"order_id,notnull" json:"order_id"`
	FromStatus  OrderStatus `bun:"from_status,notnull" json:"from_status"`
	ToStatus    OrderStatus `bun:"to_status,notnull" json:"to_status"`
	ChangedByID *int64      `bun:"changed_by_id" json:"changed_by_id"`
	Note        string      `bun:"note,notnull" json:"note"`
	CreatedAt   time.Time   `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}
