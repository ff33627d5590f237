package entity

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Role is the closed set of staff roles.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleWaiter  Role = "WAITER"
	RoleKitchen Role = "KITCHEN"
)

// ParseRole validates a role literal.
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(raw)))
	switch r {
	case RoleAdmin, RoleWaiter, RoleKitchen:
		return r, true
	}
	return "", false
}

// OneOf reports whether r is one of the given roles.
func (r Role) OneOf(roles ...Role) bool {
	for _, candidate := range roles {
		if r == candidate {
			return true
		}
	}
	return false
}

// CanSetOrderStatus gates explicit order transitions by role.
func (r Role) CanSetOrderStatus(next OrderStatus) bool {
	switch next {
	case OrderInProgress, OrderReady:
		return r.OneOf(RoleKitchen, RoleAdmin)
	case OrderServed, OrderCancelled, OrderDining, OrderCompleted:
		return r.OneOf(RoleWaiter, RoleAdmin)
	}
	return false
}

// CanSetItemStatus gates line-item transitions by role.
func (r Role) CanSetItemStatus(next ItemStatus) bool {
	switch next {
	case ItemInPreparation, ItemReady:
		return r.OneOf(RoleKitchen, RoleAdmin)
	case ItemServed:
		return r.OneOf(RoleWaiter, RoleAdmin)
	case ItemCancelled:
		return r.OneOf(RoleAdmin, RoleWaiter, RoleKitchen)
	}
	return false
}

// User is a staff account.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID             int64      `bun:",pk,autoincrement" json:"id"`
	Username       string     `bun:"username,notnull,unique" json:"username"`
	FullName       string     `bun:"full_name,notnull" json:"full_name"`
	Role           Role       `bun:"role,notnull" json:"role"`
	IsActive       bool       `bun:"is_active,notnull" json:"is_active"`
	IsOnShift      bool       `bun:"is_on_shift,notnull" json:"is_on_shift"`
	PasswordHash   string     `bun:"password_hash,notnull" json:"-"`
	PinHash        *string    `bun:"pin_hash,unique" json:"-"`
	CreatedByID    *int64     `bun:"created_by_id" json:"created_by_id"`
	ShiftStartedAt *time.Time `bun:"shift_started_at" json:"shift_started_at"`
	LastLoginAt    *time.Time `bun:"last_login_at" json:"last_login_at"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero" json:"updated_at"`
}
