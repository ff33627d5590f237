package dto

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/shopspring/decimal"

	"github.com/Additional-Code/servio/internal/entity"
)

// OrderItemRequest is one requested order line.
type OrderItemRequest struct {
	DishID      int64  `json:"dish_id"`
	VariationID *int64 `json:"variation_id"`
	Quantity    int    `json:"quantity"`
	Comment     string `json:"comment"`
}

// Validate checks a single line. Quantity bounds are checked by the order
// service once the table and dishes have been resolved.
func (r OrderItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DishID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.VariationID, validation.NilOrNotEmpty, validation.Min(int64(1))),
		validation.Field(&r.Comment, validation.Length(0, 500)),
	)
}

// CreateOrderRequest opens a new order.
type CreateOrderRequest struct {
	TableID      *int64             `json:"table_id"`
	OrderType    string             `json:"order_type"`
	Items        []OrderItemRequest `json:"items"`
	Notes        string             `json:"notes"`
	KitchenNotes string             `json:"kitchen_notes"`
}

// Validate checks field shapes; table rules depend on the order type.
func (r *CreateOrderRequest) Validate() error {
	if r.OrderType == "" {
		r.OrderType = string(entity.OrderDineIn)
	}
	return validation.ValidateStruct(r,
		validation.Field(&r.OrderType, stringIn(string(entity.OrderDineIn), string(entity.OrderTakeaway), string(entity.OrderDelivery))),
		validation.Field(&r.TableID, validation.By(func(any) error {
			dineIn := r.OrderType == string(entity.OrderDineIn)
			switch {
			case dineIn && r.TableID == nil:
				return errors.New("is required for DINE_IN orders")
			case dineIn && *r.TableID <= 0:
				return errors.New("must be a valid table id")
			case !dineIn && r.TableID != nil:
				return errors.New("must be empty for TAKEAWAY and DELIVERY orders")
			}
			return nil
		})),
		validation.Field(&r.Items, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Notes, validation.Length(0, 1000)),
		validation.Field(&r.KitchenNotes, validation.Length(0, 1000)),
	)
}

// AddItemsRequest appends lines to an existing order.
type AddItemsRequest struct {
	Items []OrderItemRequest `json:"items"`
}

// Validate checks the appended lines.
func (r *AddItemsRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Items, validation.Required, validation.Length(1, 100)),
	)
}

// UpdateOrderStatusRequest requests an explicit order transition.
type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// Validate checks the target status literal.
func (r *UpdateOrderStatusRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Status, validation.Required, validation.By(func(any) error {
			if _, ok := entity.ParseOrderStatus(r.Status); !ok {
				return errors.New("must be a valid order status")
			}
			return nil
		})),
		validation.Field(&r.Note, validation.Length(0, 500)),
	)
}

// UpdateItemStatusRequest requests an order line transition.
type UpdateItemStatusRequest struct {
	Status string `json:"status"`
}

// Validate checks the target status literal.
func (r *UpdateItemStatusRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Status, validation.Required, validation.By(func(any) error {
			if _, ok := entity.ParseItemStatus(r.Status); !ok {
				return errors.New("must be a valid item status")
			}
			return nil
		})),
	)
}

// UpdateItemQuantityRequest changes the quantity of a line still in the kitchen.
type UpdateItemQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// Validate checks the quantity range.
func (r *UpdateItemQuantityRequest) Validate() error {
	return validation.ValidateStruct(r,
	)
}

// UpdatePaymentRequest settles or refunds an order.
type UpdatePaymentRequest struct {
	PaymentStatus   string `json:"payment_status"`
	PaymentMethodID *int64 `json:"payment_method_id"`
}

// Validate checks the payment status literal.
func (r *UpdatePaymentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.PaymentStatus, validation.Required,
			stringIn(string(entity.PaymentUnpaid), string(entity.PaymentPaid), string(entity.PaymentRefunded))),
		validation.Field(&r.PaymentMethodID, validation.NilOrNotEmpty, validation.Min(int64(1))),
	)
}

// OrderItemResponse is an order line as exposed to clients.
type OrderItemResponse struct {
	ID                    int64             `json:"id"`
	DishID                int64             `json:"dish_id"`
	VariationID           *int64            `json:"variation_id"`
	Quantity              int               `json:"quantity"`
	Price                 string            `json:"price"`
	Total                 string            `json:"total"`
	Status                entity.ItemStatus `json:"status"`
	Department            entity.Department `json:"department"`
	Comment               string            `json:"comment"`
	CreatedAt             time.Time         `json:"created_at"`
	PreparationStartedAt  *time.Time        `json:"preparation_started_at"`
	ReadyAt               *time.Time        `json:"ready_at"`
	ServedAt              *time.Time        `json:"served_at"`
	ActualPreparationTime *int              `json:"actual_preparation_time"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID              int64                `json:"id"`
	TableID         *int64               `json:"table_id"`
	WaiterID        int64                `json:"waiter_id"`
	OrderType       entity.OrderType     `json:"order_type"`
	Status          entity.OrderStatus   `json:"status"`
	PaymentStatus   entity.PaymentStatus `json:"payment_status"`
	PaymentMethodID *int64               `json:"payment_method_id"`
	Total           string               `json:"total"`
	Notes           string               `json:"notes"`
	KitchenNotes    string               `json:"kitchen_notes"`
	TimeToServe     *int                 `json:"time_to_serve"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	ServedAt        *time.Time           `json:"served_at"`
	CancelledAt     *time.Time           `json:"cancelled_at"`
	CompletedAt     *time.Time           `json:"completed_at"`
	Items           []OrderItemResponse  `json:"items"`
}

// NewOrderResponse renders an order with timestamps in the restaurant zone.
func NewOrderResponse(o *entity.Order, loc *time.Location) OrderResponse {
	resp := OrderResponse{
		ID:              o.ID,
		TableID:         o.TableID,
		WaiterID:        o.WaiterID,
		OrderType:       o.OrderType,
		Status:          o.Status,
		PaymentStatus:   o.PaymentStatus,
		PaymentMethodID: o.PaymentMethodID,
		Total:           money(o.Total),
		Notes:           o.Notes,
		KitchenNotes:    o.KitchenNotes,
		TimeToServe:     o.TimeToServe,
		CreatedAt:       In(o.CreatedAt, loc),
		UpdatedAt:       In(o.UpdatedAt, loc),
		ServedAt:        InPtr(o.ServedAt, loc),
		CancelledAt:     InPtr(o.CancelledAt, loc),
		CompletedAt:     InPtr(o.CompletedAt, loc),
		Items:           make([]OrderItemResponse, 0, len(o.Items)),
	}
	for _, item := range o.Items {
		resp.Items = append(resp.Items, NewOrderItemResponse(item, loc))
	}
	return resp
}

// NewOrderItemResponse renders a single line.
func NewOrderItemResponse(i *entity.OrderItem, loc *time.Location) OrderItemResponse {
	return OrderItemResponse{
		ID:                    i.ID,
		DishID:                i.DishID,
		VariationID:           i.VariationID,
		Quantity:              i.Quantity,
		Price:                 money(i.Price),
		Total:                 money(i.Total),
		Status:                i.Status,
		Department:            i.Department,
		Comment:               i.Comment,
		CreatedAt:             In(i.CreatedAt, loc),
		PreparationStartedAt:  InPtr(i.PreparationStartedAt, loc),
		ReadyAt:               InPtr(i.ReadyAt, loc),
		ServedAt:              InPtr(i.ServedAt, loc),
		ActualPreparationTime: i.ActualPreparationTime,
	}
}

// NewOrderResponses renders a list.
func NewOrderResponses(orders []*entity.Order, loc *time.Location) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, NewOrderResponse(o, loc))
	}
	return out
}

// StatusLogResponse is one entry of an order's history.
type StatusLogResponse struct {
	FromStatus  entity.OrderStatus `json:"from_status"`
	ToStatus    entity.OrderStatus `json:"to_status"`
	ChangedByID *int64             `json:"changed_by_id"`
	Note        string             `json:"note"`
	CreatedAt   time.Time          `json:"created_at"`
}

// NewStatusLogResponses renders an order history.
func NewStatusLogResponses(logs []*entity.OrderStatusLog, loc *time.Location) []StatusLogResponse {
	out := make([]StatusLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, StatusLogResponse{
			FromStatus:  l.FromStatus,
			ToStatus:    l.ToStatus,
			ChangedByID: l.ChangedByID,
			Note:        l.Note,
			CreatedAt:   In(l.CreatedAt, loc),
		})
	}
	return out
}

// In converts t into loc; a nil location leaves t unchanged.
func In(t time.Time, loc *time.Location) time.Time {
	if loc == nil || t.IsZero() {
		return t
	}
	return t.In(loc)
}

// InPtr is In for optional timestamps.
func InPtr(t *time.Time, loc *time.Location) *time.Time {
	if t == nil {
		return nil
	}
	v := In(*t, loc)
	return &v
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
