package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/servio/internal/database"
	"github.com/Additional-Code/servio/internal/entity"
)

// Seed inserts rows directly, bypassing services, so tests can also build
// states that services would refuse.
type Seed struct {
	t     *testing.T
	conns *database.Connections
	now   time.Time
}

// NewSeed returns a seeder over conns.
func NewSeed(t *testing.T, conns *database.Connections) *Seed {
	return &Seed{t: t, conns: conns, now: time.Now().UTC()}
}

// Insert stores any model.
func (s *Seed) Insert(model any) {
	s.t.Helper()
	_, err := s.conns.Writer.NewInsert().Model(model).Exec(context.Background())
	require.NoError(s.t, err)
}

// Update writes the named columns of a model by primary key.
func (s *Seed) Update(model any, columns ...string) {
	s.t.Helper()
	_, err := s.conns.Writer.NewUpdate().Model(model).Column(columns...).WherePK().Exec(context.Background())
	require.NoError(s.t, err)
}

// User creates an active user with the given role.
func (s *Seed) User(username string, role entity.Role) *entity.User {
	s.t.Helper()
	u := &entity.User{
		Username:     username,
		FullName:     username + " Example",
		Role:         role,
		IsActive:     true,
		PasswordHash: "-",
		CreatedAt:    s.now,
		UpdatedAt:    s.now,
	}
	s.Insert(u)
	return u
}

// Location creates a location.
func (s *Seed) Location(name string, active bool) *entity.Location {
	s.t.Helper()
	l := &entity.Location{Name: name, Color: "#6B7280", IsActive: active, CreatedAt: s.now, UpdatedAt: s.now}
	s.Insert(l)
	return l
}

// Table creates a free table; locationID may be nil.
func (s *Seed) Table(number int, locationID *int64, active bool) *entity.Table {
	s.t.Helper()
	t := &entity.Table{
		Number:     number,
		Seats:      4,
		QRToken:    uuid.NewString(),
		IsActive:   active,
		LocationID: locationID,
		CreatedAt:  s.now,
		UpdatedAt:  s.now,
	}
	s.Insert(t)
	return t
}

// Category creates an active category.
func (s *Seed) Category(name string) *entity.Category {
	s.t.Helper()
	c := &entity.Category{Name: name, IsActive: true, CreatedAt: s.now, UpdatedAt: s.now}
	s.Insert(c)
	return c
}

// Dish creates an available dish with one available variation per price.
// The first variation is the default.
func (s *Seed) Dish(categoryID int64, name string, department entity.Department, prices ...string) *entity.Dish {
	s.t.Helper()
	d := &entity.Dish{
		CategoryID:  categoryID,
		Name:        name,
		IsAvailable: true,
		Department:  department,
		CreatedAt:   s.now,
		UpdatedAt:   s.now,
	}
	s.Insert(d)

	for i, price := range prices {
		v := &entity.DishVariation{
			DishID:      d.ID,
			Name:        "Portion " + string(rune('A'+i)),
			Price:       decimal.RequireFromString(price),
			IsAvailable: true,
			IsDefault:   i == 0,
			SortOrder:   i,
			CreatedAt:   s.now,
			UpdatedAt:   s.now,
		}
		s.Insert(v)
		d.Variations = append(d.Variations, v)
	}
	return d
}

// PaymentMethod creates a payment method.
func (s *Seed) PaymentMethod(name string, active bool) *entity.PaymentMethod {
	s.t.Helper()
	pm := &entity.PaymentMethod{Name: name, IsActive: active, CreatedAt: s.now, UpdatedAt: s.now}
	s.Insert(pm)
	return pm
}

// Order inserts a bare order row with no items; tableID may be nil.
func (s *Seed) Order(waiterID int64, tableID *int64, status entity.OrderStatus) *entity.Order {
	s.t.Helper()
	orderType := entity.OrderDineIn
	if tableID == nil {
		orderType = entity.OrderTakeaway
	}
	o := &entity.Order{
		TableID:       tableID,
		WaiterID:      waiterID,
		OrderType:     orderType,
		Status:        status,
		PaymentStatus: entity.PaymentUnpaid,
		CreatedAt:     s.now,
		UpdatedAt:     s.now,
	}
	s.Insert(o)
	return o
}

// Item inserts a single-portion line of dish's default variation with the
// given status, created at createdAt.
func (s *Seed) Item(orderID int64, dish *entity.Dish, status entity.ItemStatus, createdAt time.Time) *entity.OrderItem {
	s.t.Helper()
	item := &entity.OrderItem{
		OrderID:    orderID,
		DishID:     dish.ID,
		Quantity:   1,
		Status:     status,
		Department: dish.Department,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
	if len(dish.Variations) > 0 {
		v := dish.Variations[0]
		item.VariationID = &v.ID
		item.Price = v.Price
		item.Total = v.Price
	}
	s.Insert(item)
	return item
}

// Occupy points a table at an order.
func (s *Seed) Occupy(t *entity.Table, orderID int64) {
	s.t.Helper()
	t.IsOccupied = true
	t.CurrentOrderID = &orderID
	s.Update(t, "is_occupied", "current_order_id")
}

// ReloadTable reads a table back from the database.
func (s *Seed) ReloadTable(id int64) *entity.Table {
	s.t.Helper()
	t := new(entity.Table)
	require.NoError(s.t, s.conns.Reader.NewSelect().Model(t).Where("t.id = ?", id).Scan(context.Background()))
	return t
}

// ReloadOrder reads an order and its items back from the database.
func (s *Seed) ReloadOrder(id int64) *entity.Order {
	s.t.Helper()
	o := new(entity.Order)
	require.NoError(s.t, s.conns.Reader.NewSelect().Model(o).Relation("Items").Where("o.id = ?", id).Scan(context.Background()))
	return o
}
