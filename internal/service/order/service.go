package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/cache"
	"github.com/Additional-Code/servio/internal/config"
	"github.com/Additional-Code/servio/internal/database"
	"github.com/Additional-Code/servio/internal/dto"
	"github.com/Additional-Code/servio/internal/entity"
	"github.com/Additional-Code/servio/internal/messaging"
	"github.com/Additional-Code/servio/internal/notify"
	catalogrepo "github.com/Additional-Code/servio/internal/repository/catalog"
	repo "github.com/Additional-Code/servio/internal/repository/order"
	paymentrepo "github.com/Additional-Code/servio/internal/repository/payment"
	tablerepo "github.com/Additional-Code/servio/internal/repository/table"
	userrepo "github.com/Additional-Code/servio/internal/repository/user"
	"github.com/Additional-Code/servio/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/servio/service/order")

// Service owns the order lifecycle: creation, appends, explicit and derived
// transitions, totals and table occupancy.
type Service struct {
	db        *database.Connections
	repo      *repo.Repository
	tables    *tablerepo.Repository
	catalog   *catalogrepo.Repository
	payments  *paymentrepo.Repository
	users     *userrepo.Repository
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
	notifier  Notifier
	seq       *sequencer
	now       func() time.Time
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	DB         *database.Connections
	Repository *repo.Repository
	Tables     *tablerepo.Repository
	Catalog    *catalogrepo.Repository
	Payments   *paymentrepo.Repository
	Users      *userrepo.Repository
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
	Notifier   Notifier
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		db:        p.DB,
		repo:      p.Repository,
		tables:    p.Tables,
		catalog:   p.Catalog,
		payments:  p.Payments,
		users:     p.Users,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    p.Logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
		notifier: p.Notifier,
		seq:      newSequencer(),
		now:      time.Now,
	}
}

// scope carries tx-bound repositories and the changes made inside one transaction.
type scope struct {
	orders   *repo.Repository
	tables   *tablerepo.Repository
	catalog  *catalogrepo.Repository
	payments *paymentrepo.Repository
	actor    entity.Actor
	now      time.Time
	order    *entity.Order
	outbox   []outboxEntry
}

func (s *Service) newScope(tx bun.IDB, actor entity.Actor) *scope {
	return &scope{
		orders:   s.repo.WithTx(tx),
		tables:   s.tables.WithTx(tx),
		catalog:  s.catalog.WithTx(tx),
		payments: s.payments.WithTx(tx),
		actor:    actor,
		now:      s.now().UTC(),
	}
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	s.storeInCache(ctx, order)
	return order, nil
}

// List returns orders matching filter. Waiters only ever see their own orders.
func (s *Service) List(ctx context.Context, actor entity.Actor, filter repo.Filter) ([]*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List")
	defer span.End()

	if actor.Role == entity.RoleWaiter {
		waiterID := actor.UserID
		filter.WaiterID = &waiterID
	}
	orders, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, s.fail(span, err, "failed to list orders")
	}
	return orders, nil
}

// History returns the status log of an order, oldest first.
func (s *Service) History(ctx context.Context, id int64) ([]*entity.OrderStatusLog, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.History", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	logs, err := s.repo.History(ctx, id)
	if err != nil {
		return nil, s.fail(span, err, "failed to load order history")
	}
	return logs, nil
}

// SendToKitchen is kept for older clients. Submitting an order already hands
// its items to the kitchen, so the order is returned unchanged.
func (s *Service) SendToKitchen(ctx context.Context, id int64) (*entity.Order, error) {
	s.logger.Debug("send-to-kitchen called; items are routed on creation", zap.Int64("id", id))
	return s.Get(ctx, id)
}

// Create validates and persists a new order, claims its table and routes
// every line to its kitchen department.
func (s *Service) Create(ctx context.Context, actor entity.Actor, req *dto.CreateOrderRequest) (*entity.Order, error) {
	if req == nil {
		return nil, errorbank.BadRequest("order payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}
	if !actor.Role.OneOf(entity.RoleWaiter, entity.RoleAdmin) {
		return nil, errorbank.PermissionDenied("only waiters and admins can create orders")
	}
	orderType, _ := entity.ParseOrderType(req.OrderType)

	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(attribute.String("order.type", string(orderType))))
	defer span.End()

	var (
		sc     *scope
		unlock func()
	)
	defer func() {
		if unlock != nil {
			unlock()
		}
	}()

	err := s.db.InTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		sc = s.newScope(tx, actor)

		var table *entity.Table
		if orderType == entity.OrderDineIn {
			t, err := s.reserveTable(ctx, sc, *req.TableID)
			if err != nil {
				return err
			}
			table = t
		}

		items, total, err := s.resolveItems(ctx, sc, req.Items)
		if err != nil {
			return err
		}

		order := &entity.Order{
			WaiterID:      actor.UserID,
			OrderType:     orderType,
			Total:         total,
			Status:        entity.OrderPending,
			PaymentStatus: entity.PaymentUnpaid,
			Notes:         strings.TrimSpace(req.Notes),
			KitchenNotes:  strings.TrimSpace(req.KitchenNotes),
			CreatedAt:     sc.now,
			UpdatedAt:     sc.now,
		}
		if table != nil {
			order.TableID = &table.ID
		}
		if err := sc.orders.Create(ctx, order); err != nil {
			return err
		}
		unlock = s.seq.Lock(order.ID)

		for _, item := range items {
			item.OrderID = order.ID
			if err := sc.orders.CreateItem(ctx, item); err != nil {
				return err
			}
		}
		order.Items = items

		if err := sc.orders.AppendStatusLog(ctx, s.logEntry(sc, order.ID, "", entity.OrderPending, "order created")); err != nil {
			return err
		}

		if table != nil {
			table.IsOccupied = true
			table.CurrentOrderID = &order.ID
			table.UpdatedAt = sc.now
			if err := sc.tables.Update(ctx, table, "is_occupied", "current_order_id"); err != nil {
				return err
			}
		}

		sc.order = order
		sc.outbox = append(sc.outbox, outboxEntry{kind: EventCreated, to: entity.OrderPending})
		return nil
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to create order")
	}

	return s.finish(ctx, sc)
}

// AddItems appends lines to a non-terminal order and moves it back into the kitchen flow.
func (s *Service) AddItems(ctx context.Context, actor entity.Actor, id int64, req *dto.AddItemsRequest) (*entity.Order, error) {
	if req == nil {
		return nil, errorbank.BadRequest("items payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}
	if !actor.Role.OneOf(entity.RoleWaiter, entity.RoleAdmin) {
		return nil, errorbank.PermissionDenied("only waiters and admins can add items")
	}

	return s.mutate(ctx, actor, id, "AddItems", func(ctx context.Context, sc *scope, o *entity.Order) error {
		if o.Status.IsTerminal() {
			return errorbank.InvalidTransition(
				fmt.Sprintf("cannot add items to a %s order", o.Status),
				errorbank.WithDetail("status", o.Status),
			)
		}

		items, added, err := s.resolveItems(ctx, sc, req.Items)
		if err != nil {
			return err
		}
		for _, item := range items {
			item.OrderID = o.ID
			if err := sc.orders.CreateItem(ctx, item); err != nil {
				return err
			}
		}
		o.Items = append(o.Items, items...)
		o.Total = o.Total.Add(added)
		o.UpdatedAt = sc.now
		if err := sc.orders.Update(ctx, o, "total"); err != nil {
			return err
		}
		sc.outbox = append(sc.outbox, outboxEntry{kind: EventItemsAdded, itemsAdded: len(items)})

		if next, ok := AppendStatus(o.Status); ok {
			return s.applyStatus(ctx, sc, o, next, "items added")
		}
		return nil
	})
}

// SetStatus applies an explicit order transition requested by staff.
func (s *Service) SetStatus(ctx context.Context, actor entity.Actor, id int64, req *dto.UpdateOrderStatusRequest) (*entity.Order, error) {
	if req == nil {
		return nil, errorbank.BadRequest("status payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}
	next, _ := entity.ParseOrderStatus(req.Status)
	if !actor.Role.CanSetOrderStatus(next) {
		return nil, errorbank.PermissionDenied(fmt.Sprintf("role %s cannot move orders to %s", actor.Role, next))
	}

	return s.mutate(ctx, actor, id, "SetStatus", func(ctx context.Context, sc *scope, o *entity.Order) error {
		if o.Status.IsTerminal() {
			return errorbank.InvalidTransition(
				fmt.Sprintf("order is %s and can no longer change", o.Status),
				errorbank.WithDetail("from", o.Status),
				errorbank.WithDetail("to", next),
			)
		}
		if !o.Status.CanTransitionTo(next) {
			return errorbank.InvalidTransition(
				fmt.Sprintf("cannot move order from %s to %s", o.Status, next),
				errorbank.WithDetail("from", o.Status),
				errorbank.WithDetail("to", next),
				errorbank.WithDetail("allowed", o.Status.AllowedTransitions()),
			)
		}
		return s.applyStatus(ctx, sc, o, next, strings.TrimSpace(req.Note))
	})
}

// SetItemStatus moves one line and re-derives the order status from its lines.
func (s *Service) SetItemStatus(ctx context.Context, actor entity.Actor, orderID, itemID int64, req *dto.UpdateItemStatusRequest) (*entity.Order, error) {
	if req == nil {
		return nil, errorbank.BadRequest("status payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}
	next, _ := entity.ParseItemStatus(req.Status)
	if !actor.Role.CanSetItemStatus(next) {
		return nil, errorbank.PermissionDenied(fmt.Sprintf("role %s cannot move items to %s", actor.Role, next))
	}

	return s.mutate(ctx, actor, orderID, "SetItemStatus", func(ctx context.Context, sc *scope, o *entity.Order) error {
		if o.Status.IsTerminal() {
			return errorbank.InvalidTransition(fmt.Sprintf("order is %s; its items can no longer change", o.Status))
		}
		item := findItem(o.Items, itemID)
		if item == nil {
			return errorbank.NotFound("order item not found", errorbank.WithDetail("item_id", itemID))
		}
		if !item.Status.CanTransitionTo(next) {
			return errorbank.InvalidTransition(
				fmt.Sprintf("cannot move item from %s to %s", item.Status, next),
				errorbank.WithDetail("from", item.Status),
				errorbank.WithDetail("to", next),
			)
		}
		if err := s.applyItemStatus(ctx, sc, o, item, next); err != nil {
			return err
		}
		return s.derive(ctx, sc, o)
	})
}

// SetItemQuantity changes the quantity of a line that has not left the kitchen yet.
func (s *Service) SetItemQuantity(ctx context.Context, actor entity.Actor, orderID, itemID int64, req *dto.UpdateItemQuantityRequest) (*entity.Order, error) {
	if req == nil {
		return nil, errorbank.BadRequest("quantity payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}
	if !actor.Role.OneOf(entity.RoleWaiter, entity.RoleAdmin) {
		return nil, errorbank.PermissionDenied("only waiters and admins can change quantities")
	}

	return s.mutate(ctx, actor, orderID, "SetItemQuantity", func(ctx context.Context, sc *scope, o *entity.Order) error {
		if o.Status.IsTerminal() {
			return errorbank.InvalidTransition(fmt.Sprintf("order is %s; its items can no longer change", o.Status))
		}
		item := findItem(o.Items, itemID)
		if item == nil {
			return errorbank.NotFound("order item not found", errorbank.WithDetail("item_id", itemID))
		}
		if item.Status != entity.ItemNew && item.Status != entity.ItemInPreparation {
			return errorbank.InvalidTransition(
				fmt.Sprintf("quantity cannot change once the item is %s", item.Status),
				errorbank.WithDetail("status", item.Status),
			)
		}
		if item.Quantity == req.Quantity {
			return nil
		}

		previous := item.Total
		item.Quantity = req.Quantity
		item.Total = item.LineTotal()
		item.UpdatedAt = sc.now
		if err := sc.orders.UpdateItem(ctx, item, "quantity", "total"); err != nil {
			return err
		}

		o.Total = o.Total.Add(item.Total.Sub(previous))
		o.UpdatedAt = sc.now
		return sc.orders.Update(ctx, o, "total")
	})
}

// SetPayment records settlement or refund of an order.
func (s *Service) SetPayment(ctx context.Context, actor entity.Actor, id int64, req *dto.UpdatePaymentRequest) (*entity.Order, error) {
	if req == nil {
		return nil, errorbank.BadRequest("payment payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}
	if !actor.Role.OneOf(entity.RoleWaiter, entity.RoleAdmin) {
		return nil, errorbank.PermissionDenied("only waiters and admins can record payments")
	}
	next, _ := entity.ParsePaymentStatus(req.PaymentStatus)

	return s.mutate(ctx, actor, id, "SetPayment", func(ctx context.Context, sc *scope, o *entity.Order) error {
		if !o.PaymentStatus.CanTransitionTo(next) {
			return errorbank.InvalidTransition(
				fmt.Sprintf("cannot move payment from %s to %s", o.PaymentStatus, next),
				errorbank.WithDetail("from", o.PaymentStatus),
				errorbank.WithDetail("to", next),
			)
		}
		if next == entity.PaymentPaid && o.Status == entity.OrderCancelled {
			return errorbank.InvalidTransition("cancelled orders cannot be paid")
		}

		columns := []string{"payment_status"}
		if req.PaymentMethodID != nil {
			method, err := sc.payments.GetByID(ctx, *req.PaymentMethodID)
			if errors.Is(err, paymentrepo.ErrNotFound) {
				return errorbank.NotFound("payment method not found", errorbank.WithDetail("payment_method_id", *req.PaymentMethodID))
			}
			if err != nil {
				return err
			}
			if !method.IsActive {
				return errorbank.PreconditionFailed("payment method is not active", errorbank.WithDetail("payment_method_id", method.ID))
			}
			o.PaymentMethodID = &method.ID
			columns = append(columns, "payment_method_id")
		}
		if next == entity.PaymentPaid && o.PaymentMethodID == nil {
			return errorbank.ValidationFailed("a payment method is required to mark an order paid",
				errorbank.WithDetail("payment_method_id", "is required"))
		}

		o.PaymentStatus = next
		o.UpdatedAt = sc.now
		if err := sc.orders.Update(ctx, o, columns...); err != nil {
			return err
		}
		sc.outbox = append(sc.outbox, outboxEntry{kind: EventPaymentUpdated})
		return nil
	})
}

// mutate runs fn against a row-locked order inside one transaction. Work on
// the same order is sequenced so notifications follow commit order.
func (s *Service) mutate(ctx context.Context, actor entity.Actor, id int64, op string, fn func(ctx context.Context, sc *scope, o *entity.Order) error) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService."+op, trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	unlock := s.seq.Lock(id)
	defer unlock()

	var sc *scope
	err := s.db.InTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		sc = s.newScope(tx, actor)
		o, err := sc.orders.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return errorbank.NotFound("order not found")
			}
			return err
		}
		sc.order = o
		return fn(ctx, sc, o)
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to update order")
	}
	return s.finish(ctx, sc)
}

// applyStatus writes a status change with its timestamps, history row and table sync.
func (s *Service) applyStatus(ctx context.Context, sc *scope, o *entity.Order, next entity.OrderStatus, note string) error {
	from := o.Status
	o.Status = next
	o.UpdatedAt = sc.now

	columns := []string{"status"}
	switch next {
	case entity.OrderServed:
		servedAt := sc.now
		minutes := wholeMinutes(o.CreatedAt, servedAt)
		o.ServedAt = &servedAt
		o.TimeToServe = &minutes
		columns = append(columns, "served_at", "time_to_serve")
	case entity.OrderCancelled:
		cancelledAt := sc.now
		o.CancelledAt = &cancelledAt
		columns = append(columns, "cancelled_at")
	case entity.OrderCompleted:
		completedAt := sc.now
		o.CompletedAt = &completedAt
		columns = append(columns, "completed_at")
	}

	if err := sc.orders.Update(ctx, o, columns...); err != nil {
		return err
	}
	if err := sc.orders.AppendStatusLog(ctx, s.logEntry(sc, o.ID, from, next, note)); err != nil {
		return err
	}
	if err := s.syncTable(ctx, sc, o, from); err != nil {
		return err
	}

	sc.outbox = append(sc.outbox, outboxEntry{kind: EventStatusChanged, from: from, to: next})
	return nil
}

// applyItemStatus writes a line transition and its timestamps. Cancelling a
// line removes it from the order total.
func (s *Service) applyItemStatus(ctx context.Context, sc *scope, o *entity.Order, item *entity.OrderItem, next entity.ItemStatus) error {
	item.Status = next
	item.UpdatedAt = sc.now

	columns := []string{"status"}
	switch next {
	case entity.ItemInPreparation:
		if item.PreparationStartedAt == nil {
			startedAt := sc.now
			item.PreparationStartedAt = &startedAt
			columns = append(columns, "preparation_started_at")
		}
	case entity.ItemReady:
		readyAt := sc.now
		item.ReadyAt = &readyAt
		columns = append(columns, "ready_at")
		if item.PreparationStartedAt != nil {
			minutes := wholeMinutes(*item.PreparationStartedAt, readyAt)
			item.ActualPreparationTime = &minutes
			columns = append(columns, "actual_preparation_time")
		}
	case entity.ItemServed:
		servedAt := sc.now
		item.ServedAt = &servedAt
		columns = append(columns, "served_at")
	}

	if err := sc.orders.UpdateItem(ctx, item, columns...); err != nil {
		return err
	}

	if next == entity.ItemCancelled {
		o.Total = o.Total.Sub(item.Total)
		o.UpdatedAt = sc.now
		if err := sc.orders.Update(ctx, o, "total"); err != nil {
			return err
		}
	}

	sc.outbox = append(sc.outbox, outboxEntry{
		kind:       EventItemStatusChanged,
		itemID:     item.ID,
		itemStatus: next,
		department: item.Department,
	})
	return nil
}

// derive moves the order to the status implied by its lines when that move is allowed.
func (s *Service) derive(ctx context.Context, sc *scope, o *entity.Order) error {
	next, ok := DeriveStatus(o.Status, o.Items)
	if !ok || next == o.Status || !o.Status.CanTransitionTo(next) {
		return nil
	}
	return s.applyStatus(ctx, sc, o, next, "derived from item statuses")
}

// syncTable keeps the table pointer in step with the order: seat-holding
// orders claim a free active table, any other status releases it. An order
// re-entering a seat-holding status must take its table back or the
// transition is refused, so a table never has two seat-holding orders.
func (s *Service) syncTable(ctx context.Context, sc *scope, o *entity.Order, from entity.OrderStatus) error {
	if o.TableID == nil {
		return nil
	}
	table, err := sc.tables.GetForUpdate(ctx, *o.TableID)
	if errors.Is(err, tablerepo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if o.Status.HoldsSeat() {
		if table.CurrentOrderID != nil && *table.CurrentOrderID == o.ID {
			return nil
		}
		if !from.HoldsSeat() {
			if err := s.reclaimable(ctx, sc, table, o); err != nil {
				return err
			}
		} else if table.CurrentOrderID != nil || !table.IsActive {
			return nil
		}
		table.IsOccupied = true
		table.CurrentOrderID = &o.ID
	} else {
		if table.CurrentOrderID == nil || *table.CurrentOrderID != o.ID {
			return nil
		}
		table.Release()
	}
	table.UpdatedAt = sc.now
	return sc.tables.Update(ctx, table, "is_occupied", "current_order_id")
}

// reclaimable checks that an order returning to the kitchen can take its
// table back.
func (s *Service) reclaimable(ctx context.Context, sc *scope, table *entity.Table, o *entity.Order) error {
	if !table.IsActive {
		return errorbank.PreconditionFailed("table is no longer active",
			errorbank.WithDetail("table_id", table.ID),
			errorbank.WithDetail("order_id", o.ID),
		)
	}
	if table.CurrentOrderID != nil {
		return errorbank.Conflict("table is held by another order",
			errorbank.WithDetail("table_id", table.ID),
			errorbank.WithDetail("current_order_id", *table.CurrentOrderID),
		)
	}
	holding, err := sc.orders.CountByTable(ctx, table.ID, entity.SeatHoldingStatuses(), o.ID)
	if err != nil {
		return err
	}
	if holding > 0 {
		return errorbank.Conflict("table is held by another order", errorbank.WithDetail("table_id", table.ID))
	}
	return nil
}

// reserveTable locks a dine-in table and checks it can take a new order.
func (s *Service) reserveTable(ctx context.Context, sc *scope, tableID int64) (*entity.Table, error) {
	table, err := sc.tables.GetForUpdate(ctx, tableID)
	if errors.Is(err, tablerepo.ErrNotFound) {
		return nil, errorbank.NotFound("table not found", errorbank.WithDetail("table_id", tableID))
	}
	if err != nil {
		return nil, err
	}
	if !table.IsActive {
		return nil, errorbank.PreconditionFailed("table is not active", errorbank.WithDetail("table_id", tableID))
	}
	if table.CurrentOrderID != nil {
		return nil, errorbank.Conflict("table already has an active order",
			errorbank.WithDetail("table_id", tableID),
			errorbank.WithDetail("current_order_id", *table.CurrentOrderID),
		)
	}

	holding, err := sc.orders.CountByTable(ctx, tableID, entity.SeatHoldingStatuses(), 0)
	if err != nil {
		return nil, err
	}
	if holding > 0 {
		return nil, errorbank.Conflict("table already has an active order", errorbank.WithDetail("table_id", tableID))
	}
	return table, nil
}

// resolveItems checks dishes and variations and builds unsaved lines priced
// from the selected variation.
func (s *Service) resolveItems(ctx context.Context, sc *scope, reqs []dto.OrderItemRequest) ([]*entity.OrderItem, decimal.Decimal, error) {
	dishes := make(map[int64]*entity.Dish, len(reqs))
	items := make([]*entity.OrderItem, 0, len(reqs))
	total := decimal.Zero

	for i, req := range reqs {
		dish, ok := dishes[req.DishID]
		if !ok {
			found, err := sc.catalog.GetDish(ctx, req.DishID)
			if errors.Is(err, catalogrepo.ErrNotFound) {
				return nil, decimal.Zero, errorbank.NotFound(
					fmt.Sprintf("dish %d not found", req.DishID),
					errorbank.WithDetail("dish_id", req.DishID),
				)
			}
			if err != nil {
				return nil, decimal.Zero, err
			}
			dish = found
			dishes[req.DishID] = dish
		}
		if !dish.IsAvailable {
			return nil, decimal.Zero, errorbank.ValidationFailed(
				fmt.Sprintf("dish %q is not available", dish.Name),
				errorbank.WithDetail("dish_id", dish.ID),
				errorbank.WithDetail("item_index", i),
			)
		}

		variation, err := SelectVariation(dish.Variations, req.VariationID)
		if err != nil {
			return nil, decimal.Zero, errorbank.ValidationFailed(
				fmt.Sprintf("dish %q: %s", dish.Name, err),
				errorbank.WithDetail("dish_id", dish.ID),
				errorbank.WithDetail("item_index", i),
			)
		}
		if req.Quantity < 1 || req.Quantity > dto.MaxItemQuantity {
			return nil, decimal.Zero, errorbank.ValidationFailed(
				fmt.Sprintf("quantity must be between 1 and %d", dto.MaxItemQuantity),
				errorbank.WithDetail("item_index", i),
			)
		}

		department := dish.Department
		if department == "" {
			department = entity.DepartmentHot
		}
		startedAt := sc.now
		variationID := variation.ID
		item := &entity.OrderItem{
			DishID:               dish.ID,
			VariationID:          &variationID,
			Quantity:             req.Quantity,
			Price:                variation.Price,
			Status:               entity.ItemInPreparation,
			Department:           department,
			Comment:              strings.TrimSpace(req.Comment),
			CreatedAt:            sc.now,
			UpdatedAt:            sc.now,
			PreparationStartedAt: &startedAt,
		}
		item.Total = item.LineTotal()
		total = total.Add(item.Total)
		items = append(items, item)
	}
	return items, total, nil
}

func (s *Service) logEntry(sc *scope, orderID int64, from, to entity.OrderStatus, note string) *entity.OrderStatusLog {
	entry := &entity.OrderStatusLog{
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
		CreatedAt:  sc.now,
	}
	if sc.actor.UserID > 0 {
		changedBy := sc.actor.UserID
		entry.ChangedByID = &changedBy
	}
	return entry
}

// finish publishes what the transaction recorded and returns the committed order.
func (s *Service) finish(ctx context.Context, sc *scope) (*entity.Order, error) {
	s.dispatch(ctx, sc)

	order, err := s.repo.GetByID(ctx, sc.order.ID)
	if err != nil {
		s.invalidate(ctx, sc.order.ID)
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	s.storeInCache(ctx, order)
	return order, nil
}

func (s *Service) dispatch(ctx context.Context, sc *scope) {
	if len(sc.outbox) == 0 {
		return
	}
	o := sc.order
	tableNumber := s.tableNumber(ctx, o)

	for _, entry := range sc.outbox {
		if s.notifier != nil {
			switch entry.kind {
			case EventCreated:
				s.notifier.OrderCreated(notify.OrderCreatedData{
					OrderID:     o.ID,
					TableNumber: tableNumber,
					WaiterName:  s.waiterName(ctx, o.WaiterID),
				})
			case EventStatusChanged:
				s.notifier.OrderStatusChanged(notify.OrderStatusChangedData{
					OrderID:     o.ID,
					OldStatus:   entry.from,
					NewStatus:   entry.to,
					TableNumber: tableNumber,
				})
				if entry.to == entity.OrderReady {
					s.notifier.OrderReady(o.WaiterID, notify.OrderReadyData{OrderID: o.ID, TableNumber: tableNumber})
				}
			case EventItemStatusChanged:
				s.notifier.ItemStatusChanged(notify.ItemStatusChangedData{
					OrderID:   o.ID,
					ItemID:    entry.itemID,
					NewStatus: entry.itemStatus,
				})
			}
		}
		s.publish(ctx, s.event(entry, o))
	}
}

func (s *Service) event(entry outboxEntry, o *entity.Order) Event {
	ev := Event{
		Type:           entry.kind,
		OrderID:        o.ID,
		TableID:        o.TableID,
		WaiterID:       o.WaiterID,
		OrderType:      o.OrderType,
		Status:         o.Status,
		PreviousStatus: entry.from,
		PaymentStatus:  o.PaymentStatus,
		ItemID:         entry.itemID,
		ItemStatus:     entry.itemStatus,
		Department:     entry.department,
		ItemsAdded:     entry.itemsAdded,
		Total:          o.Total.StringFixed(2),
		OccurredAt:     s.now().UTC(),
	}
	if entry.to != "" {
		ev.Status = entry.to
	}
	if entry.to == entity.OrderServed {
		ev.TimeToServe = o.TimeToServe
	}
	return ev
}

func (s *Service) publish(ctx context.Context, event Event) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order event", zap.String("type", event.Type), zap.Error(err))
		return
	}
	key := []byte(fmt.Sprintf("order-%d", event.OrderID))
	headers := map[string]string{messaging.HeaderEventType: event.Type}
	if err := s.publisher.Publish(ctx, key, payload, headers); err != nil {
		s.logger.Error("publish order event", zap.String("type", event.Type), zap.Int64("order_id", event.OrderID), zap.Error(err))
	}
}

func (s *Service) tableNumber(ctx context.Context, o *entity.Order) *int {
	if o.TableID == nil {
		return nil
	}
	table, err := s.tables.GetByID(ctx, *o.TableID)
	if err != nil {
		s.logger.Warn("resolve table number", zap.Int64("table_id", *o.TableID), zap.Error(err))
		return nil
	}
	number := table.Number
	return &number
}

func (s *Service) waiterName(ctx context.Context, userID int64) string {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.logger.Warn("resolve waiter name", zap.Int64("user_id", userID), zap.Error(err))
		return ""
	}
	return user.FullName
}

func (s *Service) fail(span trace.Span, err error, msg string) error {
	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		if appErr.Kind() == errorbank.KindInternal {
			span.RecordError(err)
			span.SetStatus(codes.Error, msg)
		}
		return appErr
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return errorbank.Internal(msg, errorbank.WithCause(err))
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, cache.OrderKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) {
	if s.cache == nil || order == nil {
		return
	}
	bytes, err := json.Marshal(order)
	if err == nil {
		err = s.cache.Set(ctx, cache.OrderKey(order.ID), bytes, s.cacheTTL)
	}
	if err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.OrderKey(id)); err != nil {
		s.logger.Warn("orders cache delete failed", zap.Int64("id", id), zap.Error(err))
	}
}

func findItem(items []*entity.OrderItem, id int64) *entity.OrderItem {
	for _, item := range items {
		if item.ID == id {
			return item
		}
	}
	return nil
}
