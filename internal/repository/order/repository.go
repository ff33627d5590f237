package order

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/servio/internal/database"
	"github.com/Additional-Code/servio/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/servio/repository/order")

// ErrNotFound is returned when an order or order item is missing.
var ErrNotFound = errors.New("order not found")

// Filter narrows order listings. Zero values mean "any".
type Filter struct {
	Statuses []entity.OrderStatus
	TableID  *int64
	WaiterID *int64
	Type     entity.OrderType
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// ItemFilter narrows order item projections used by the kitchen.
type ItemFilter struct {
	Departments []entity.Department
	Statuses    []entity.ItemStatus
	Since       *time.Time
	OrderID     *int64
	// ExcludeCancelledOrders drops items whose parent order was cancelled.
	ExcludeCancelledOrders bool
}

// Repository encapsulates read/write access for orders, their items and status history.
type Repository struct {
	writer bun.IDB
	reader bun.IDB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// WithTx returns a copy bound to tx for both reads and writes.
func (r *Repository) WithTx(tx bun.IDB) *Repository {
	return &Repository{writer: tx, reader: tx}
}

// Create persists a new order row. Items are inserted separately.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.type", string(order.OrderType))))
	defer span.End()

	_, err := r.writer.NewInsert().Model(order).Exec(ctx)
	return fail(span, err, "insert failed")
}

// CreateItem persists a single order line.
func (r *Repository) CreateItem(ctx context.Context, item *entity.OrderItem) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CreateItem", trace.WithAttributes(attribute.Int64("order.id", item.OrderID)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(item).Exec(ctx)
	return fail(span, err, "insert failed")
}

// GetByID fetches an order with its items using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().
		Model(order).
		Relation("Items", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("oi.id ASC")
		}).
		Where("o.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, fail(span, err, "select failed")
	}
	return order, nil
}

// GetForUpdate fetches and row-locks an order together with its items.
func (r *Repository) GetForUpdate(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetForUpdate", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	q := r.writer.NewSelect().Model(order).Where("o.id = ?", id)
	if err := database.ForUpdate(r.writer, q).Scan(ctx); err != nil {
		return nil, fail(span, err, "select failed")
	}

	items, err := r.listItems(ctx, r.writer, id)
	if err != nil {
		return nil, fail(span, err, "select items failed")
	}
	order.Items = items
	return order, nil
}

// ListItems returns the lines of an order in insertion order.
func (r *Repository) ListItems(ctx context.Context, orderID int64) ([]*entity.OrderItem, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListItems", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	items, err := r.listItems(ctx, r.reader, orderID)
	return items, fail(span, err, "select failed")
}

func (r *Repository) listItems(ctx context.Context, db bun.IDB, orderID int64) ([]*entity.OrderItem, error) {
	var items []*entity.OrderItem
	err := db.NewSelect().Model(&items).Where("oi.order_id = ?", orderID).OrderExpr("oi.id ASC").Scan(ctx)
	return items, err
}

// List returns orders matching the filter, newest first, with their items.
func (r *Repository) List(ctx context.Context, filter Filter) ([]*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List")
	defer span.End()

	var orders []*entity.Order
	q := r.reader.NewSelect().
		Model(&orders).
		Relation("Items", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("oi.id ASC")
		}).
		OrderExpr("o.created_at DESC, o.id DESC")

	if len(filter.Statuses) > 0 {
		q = q.Where("o.status IN (?)", bun.In(filter.Statuses))
	}
	if filter.TableID != nil {
		q = q.Where("o.table_id = ?", *filter.TableID)
	}
	if filter.WaiterID != nil {
		q = q.Where("o.waiter_id = ?", *filter.WaiterID)
	}
	if filter.Type != "" {
		q = q.Where("o.order_type = ?", filter.Type)
	}
	if filter.From != nil {
		q = q.Where("o.created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		q = q.Where("o.created_at < ?", filter.To.UTC())
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fail(span, err, "select failed")
	}
	return orders, nil
}

// ListByTables returns orders bound to any of the tables whose status is in statuses.
func (r *Repository) ListByTables(ctx context.Context, tableIDs []int64, statuses []entity.OrderStatus) ([]*entity.Order, error) {
	if len(tableIDs) == 0 {
		return nil, nil
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListByTables")
	defer span.End()

	var orders []*entity.Order
	q := r.reader.NewSelect().Model(&orders).Where("o.table_id IN (?)", bun.In(tableIDs)).OrderExpr("o.id ASC")
	if len(statuses) > 0 {
		q = q.Where("o.status IN (?)", bun.In(statuses))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fail(span, err, "select failed")
	}
	return orders, nil
}

// ListByIDs fetches orders without items; missing ids are simply absent.
func (r *Repository) ListByIDs(ctx context.Context, ids []int64) ([]*entity.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListByIDs")
	defer span.End()

	var orders []*entity.Order
	if err := r.reader.NewSelect().Model(&orders).Where("o.id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, fail(span, err, "select failed")
	}
	return orders, nil
}

// CountByTable counts orders on a table in the given statuses, excluding one order id.
func (r *Repository) CountByTable(ctx context.Context, tableID int64, statuses []entity.OrderStatus, excludeID int64) (int, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CountByTable", trace.WithAttributes(attribute.Int64("table.id", tableID)))
	defer span.End()

	q := r.reader.NewSelect().Model((*entity.Order)(nil)).
		Where("o.table_id = ?", tableID).
		Where("o.status IN (?)", bun.In(statuses))
	if excludeID > 0 {
		q = q.Where("o.id <> ?", excludeID)
	}
	n, err := q.Count(ctx)
	if err != nil {
		return 0, fail(span, err, "count failed")
	}
	return n, nil
}

// Update writes the named order columns and refreshes updated_at.
func (r *Repository) Update(ctx context.Context, order *entity.Order, columns ...string) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Update", trace.WithAttributes(attribute.Int64("order.id", order.ID)))
	defer span.End()

	q := r.writer.NewUpdate().Model(order).WherePK()
	if len(columns) > 0 {
		q = q.Column(append(columns, "updated_at")...)
	} else {
		q = q.ExcludeColumn("id", "created_at", "waiter_id", "order_type")
	}
	_, err := q.Exec(ctx)
	return fail(span, err, "update failed")
}

// GetItem fetches a line that belongs to the given order.
func (r *Repository) GetItem(ctx context.Context, orderID, itemID int64) (*entity.OrderItem, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetItem", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("order_item.id", itemID),
	))
	defer span.End()

	item := new(entity.OrderItem)
	err := r.writer.NewSelect().Model(item).Where("oi.id = ?", itemID).Where("oi.order_id = ?", orderID).Scan(ctx)
	if err != nil {
		return nil, fail(span, err, "select failed")
	}
	return item, nil
}

// UpdateItem writes the named item columns and refreshes updated_at.
func (r *Repository) UpdateItem(ctx context.Context, item *entity.OrderItem, columns ...string) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateItem", trace.WithAttributes(attribute.Int64("order_item.id", item.ID)))
	defer span.End()

	q := r.writer.NewUpdate().Model(item).WherePK()
	if len(columns) > 0 {
		q = q.Column(append(columns, "updated_at")...)
	} else {
		q = q.ExcludeColumn("id", "order_id", "dish_id", "created_at")
	}
	_, err := q.Exec(ctx)
	return fail(span, err, "update failed")
}

// ListKitchenItems returns order lines with dish and order context, oldest first.
func (r *Repository) ListKitchenItems(ctx context.Context, filter ItemFilter) ([]*entity.OrderItem, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListKitchenItems")
	defer span.End()

	var items []*entity.OrderItem
	q := r.reader.NewSelect().
		Model(&items).
		Relation("Dish").
		Relation("Order").
		Relation("Order.Table").
		OrderExpr("oi.created_at ASC, oi.id ASC")

	if len(filter.Departments) > 0 {
		q = q.Where("oi.department IN (?)", bun.In(filter.Departments))
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("oi.status IN (?)", bun.In(filter.Statuses))
	}
	if filter.Since != nil {
		q = q.Where("oi.created_at >= ?", filter.Since.UTC())
	}
	if filter.OrderID != nil {
		q = q.Where("oi.order_id = ?", *filter.OrderID)
	}
	if filter.ExcludeCancelledOrders {
		cancelled := r.reader.NewSelect().Model((*entity.Order)(nil)).ColumnExpr("o.id").Where("o.status = ?", entity.OrderCancelled)
		q = q.Where("oi.order_id NOT IN (?)", cancelled)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fail(span, err, "select failed")
	}
	return items, nil
}

// CountItemsByVariation counts historical lines that reference a variation.
func (r *Repository) CountItemsByVariation(ctx context.Context, variationID int64) (int, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CountItemsByVariation", trace.WithAttributes(attribute.Int64("variation.id", variationID)))
	defer span.End()

	n, err := r.reader.NewSelect().Model((*entity.OrderItem)(nil)).Where("oi.variation_id = ?", variationID).Count(ctx)
	return n, fail(span, err, "count failed")
}

// CountItemsByDish counts historical lines that reference a dish.
func (r *Repository) CountItemsByDish(ctx context.Context, dishID int64) (int, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CountItemsByDish", trace.WithAttributes(attribute.Int64("dish.id", dishID)))
	defer span.End()

	n, err := r.reader.NewSelect().Model((*entity.OrderItem)(nil)).Where("oi.dish_id = ?", dishID).Count(ctx)
	return n, fail(span, err, "count failed")
}

// AppendStatusLog records a status change.
func (r *Repository) AppendStatusLog(ctx context.Context, log *entity.OrderStatusLog) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.AppendStatusLog", trace.WithAttributes(attribute.Int64("order.id", log.OrderID)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(log).Exec(ctx)
	return fail(span, err, "insert failed")
}

// History returns the status log of an order, oldest first.
func (r *Repository) History(ctx context.Context, orderID int64) ([]*entity.OrderStatusLog, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.History", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	var logs []*entity.OrderStatusLog
	err := r.reader.NewSelect().Model(&logs).Where("osl.order_id = ?", orderID).OrderExpr("osl.id ASC").Scan(ctx)
	return logs, fail(span, err, "select failed")
}

func fail(span trace.Span, err error, msg string) error {
	if err == nil {
		return nil
	}
	if database.IsNoRows(err) {
		span.SetStatus(codes.Error, "not found")
		return ErrNotFound
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return err
}
