package entity

import "strings"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderInProgress OrderStatus = "IN_PROGRESS"
	OrderReady      OrderStatus = "READY"
	OrderServed     OrderStatus = "SERVED"
	OrderDining     OrderStatus = "DINING"
	OrderCompleted  OrderStatus = "COMPLETED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderInProgress, OrderReady, OrderCancelled},
	OrderInProgress: {OrderReady, OrderServed, OrderDining, OrderCancelled},
	OrderReady:      {OrderServed, OrderInProgress, OrderCancelled},
	OrderServed:     {OrderDining, OrderCompleted},
	OrderDining:     {OrderInProgress, OrderCompleted},
}

// ParseOrderStatus validates an order status literal.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case OrderPending, OrderInProgress, OrderReady, OrderServed, OrderDining, OrderCompleted, OrderCancelled:
		return status, true
	}
	return "", false
}

// CanTransitionTo reports whether the order may move from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AllowedTransitions lists the statuses reachable from s.
func (s OrderStatus) AllowedTransitions() []OrderStatus {
	return append([]OrderStatus(nil), orderTransitions[s]...)
}

// IsTerminal reports COMPLETED and CANCELLED.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// IsActive reports whether the order still counts as open business for its table.
func (s OrderStatus) IsActive() bool {
	switch s {
	case OrderPending, OrderInProgress, OrderReady, OrderServed, OrderDining:
		return true
	}
	return false
}

// HoldsSeat reports whether an order in this status keeps its table occupied.
// Serving releases the table, so only pre-service statuses hold it.
func (s OrderStatus) HoldsSeat() bool {
	switch s {
	case OrderPending, OrderInProgress, OrderReady:
		return true
	}
	return false
}

// ActiveOrderStatuses lists every status for which IsActive is true.
func ActiveOrderStatuses() []OrderStatus {
	return []OrderStatus{OrderPending, OrderInProgress, OrderReady, OrderServed, OrderDining}
}

// SeatHoldingStatuses lists every status for which HoldsSeat is true.
func SeatHoldingStatuses() []OrderStatus {
	return []OrderStatus{OrderPending, OrderInProgress, OrderReady}
}

// ItemStatus is the lifecycle state of an order line.
type ItemStatus string

const (
	ItemNew           ItemStatus = "NEW"
	ItemInPreparation ItemStatus = "IN_PREPARATION"
	ItemReady         ItemStatus = "READY"
	ItemServed        ItemStatus = "SERVED"
	ItemCancelled     ItemStatus = "CANCELLED"
)

var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemNew:           {ItemInPreparation, ItemCancelled},
	ItemInPreparation: {ItemReady, ItemCancelled},
	ItemReady:         {ItemServed, ItemCancelled},
}

// ParseItemStatus validates an item status literal. COOKING is accepted as a
// legacy spelling of IN_PREPARATION.
func ParseItemStatus(raw string) (ItemStatus, bool) {
	status := ItemStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case "COOKING":
		return ItemInPreparation, true
	case ItemNew, ItemInPreparation, ItemReady, ItemServed, ItemCancelled:
		return status, true
	}
	return "", false
}

// CanTransitionTo reports whether the item may move from s to next.
func (s ItemStatus) CanTransitionTo(next ItemStatus) bool {
	for _, allowed := range itemTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports SERVED and CANCELLED.
func (s ItemStatus) IsTerminal() bool {
	return s == ItemServed || s == ItemCancelled
}

// OrderType distinguishes dine-in orders from orders that leave the venue.
type OrderType string

const (
	OrderDineIn   OrderType = "DINE_IN"
	OrderTakeaway OrderType = "TAKEAWAY"
	OrderDelivery OrderType = "DELIVERY"
)

// ParseOrderType validates an order type literal.
func ParseOrderType(raw string) (OrderType, bool) {
	t := OrderType(strings.ToUpper(strings.TrimSpace(raw)))
	switch t {
	case OrderDineIn, OrderTakeaway, OrderDelivery:
		return t, true
	}
	return "", false
}

// PaymentStatus tracks settlement of an order.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "UNPAID"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentUnpaid: {PaymentPaid},
	PaymentPaid:   {PaymentRefunded},
}

// ParsePaymentStatus validates a payment status literal.
func ParsePaymentStatus(raw string) (PaymentStatus, bool) {
	p := PaymentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch p {
	case PaymentUnpaid, PaymentPaid, PaymentRefunded:
		return p, true
	}
	return "", false
}

// CanTransitionTo reports whether the payment status may move from p to next.
func (p PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Department is the kitchen station a dish is routed to.
type Department string

const (
	DepartmentBar     Department = "BAR"
	DepartmentCold    Department = "COLD"
	DepartmentHot     Department = "HOT"
	DepartmentDessert Department = "DESSERT"
	DepartmentGrill   Department = "GRILL"
	DepartmentBakery  Department = "BAKERY"
)

// Departments lists every kitchen department in display order.
func Departments() []Department {
	return []Department{DepartmentBar, DepartmentCold, DepartmentHot, DepartmentDessert, DepartmentGrill, DepartmentBakery}
}

// ParseDepartment validates a department literal.
func ParseDepartment(raw string) (Department, bool) {
	d := Department(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range Departments() {
		if d == known {
			return d, true
		}
	}
	return "", false
}
