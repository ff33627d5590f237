package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Location groups tables into a floor area (hall, terrace, bar).
type Location struct {
	bun.BaseModel `bun:"table:locations,alias:l"`

	ID        int64     `bun:",pk,autoincrement" json:"id"`
	Name      string    `bun:"name,notnull,unique" json:"name"`
	Color     string    `bun:"color,notnull" json:"color"`
	IsActive  bool      `bun:"is_active,notnull" json:"is_active"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at"`
}

// Table is a physical table. CurrentOrderID is a cached pointer to the
// order occupying it; the order row is authoritative.
type Table struct {
	bun.BaseModel `bun:"table:tables,alias:t"`

	ID             int64     `bun:",pk,autoincrement" json:"id"`
	Number         int       `bun:"number,notnull,unique" json:"number"`
	Seats          int       `bun:"seats,notnull" json:"seats"`
	QRToken        string    `bun:"qr_token,notnull,unique" json:"qr_token"`
	IsActive       bool      `bun:"is_active,notnull" json:"is_active"`
	IsOccupied     bool      `bun:"is_occupied,notnull" json:"is_occupied"`
	LocationID     *int64    `bun:"location_id" json:"location_id"`
	CurrentOrderID *int64    `bun:"current_order_id" json:"current_order_id"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero" json:"updated_at"`

	Location *Location `bun:"rel:belongs-to,join:location_id=id" json:"-"`
}

// Release clears occupancy and the order pointer.
func (t *Table) Release() {
	t.IsOccupied = false
	t.CurrentOrderID = nil
}

// Deactivate turns the table off and releases it.
func (t *Table) Deactivate() {
	t.IsActive = false
	t.Release()
}
