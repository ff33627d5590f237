// Package kitchen projects order lines into station queues, statistics and
// per-order progress.
package kitchen

import (
	"context"
	"errors"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/dto"
	"github.com/Additional-Code/servio/internal/entity"
	orderrepo "github.com/Additional-Code/servio/internal/repository/order"
	"github.com/Additional-Code/servio/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/servio/service/kitchen")

// ItemMover moves order lines through their lifecycle.
type ItemMover interface {
	SetItemStatus(ctx context.Context, actor entity.Actor, orderID, itemID int64, req *dto.UpdateItemStatusRequest) (*entity.Order, error)
}

// Service serves the kitchen read model.
type Service struct {
	orders *orderrepo.Repository
	mover  ItemMover
	logger *zap.Logger
	now    func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders *orderrepo.Repository
	Mover  ItemMover
	Logger *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{orders: p.Orders, mover: p.Mover, logger: p.Logger, now: time.Now}
}

// QueueItem is one order line as a station sees it.
type QueueItem struct {
	ItemID                 int64             `json:"item_id"`
	OrderID                int64             `json:"order_id"`
	TableNumber            *int              `json:"table_number"`
	DishID                 int64             `json:"dish_id"`
	DishName               string            `json:"dish_name"`
	DishImage              string            `json:"dish_image"`
	Quantity               int               `json:"quantity"`
	Comment                string            `json:"comment"`
	Department             entity.Department `json:"department"`
	Status                 entity.ItemStatus `json:"status"`
	EstimatedTime          *int              `json:"estimated_time"`
	CreatedAt              time.Time         `json:"created_at"`
	PreparationStartedAt   *time.Time        `json:"preparation_started_at"`
	CurrentPreparationTime *int              `json:"current_preparation_time"`
}

// DepartmentStats summarises a station over a trailing window.
type DepartmentStats struct {
	Department         entity.Department         `json:"department"`
	PeriodHours        int                       `json:"period_hours"`
	TotalItems         int                       `json:"total_items"`
	ByStatus           map[entity.ItemStatus]int `json:"by_status"`
	AvgPreparationTime *float64                  `json:"avg_preparation_time"`
}

// Progress reports how far an order has come through the kitchen.
// Cancelled lines are counted but excluded from the total.
type Progress struct {
	OrderID         int64              `json:"order_id"`
	OrderStatus     entity.OrderStatus `json:"order_status"`
	Total           int                `json:"total"`
	New             int                `json:"new"`
	InPreparation   int                `json:"in_preparation"`
	Ready           int                `json:"ready"`
	Served          int                `json:"served"`
	Cancelled       int                `json:"cancelled"`
	PercentComplete int                `json:"percent_complete"`
	AllReady        bool               `json:"all_ready"`
	PartiallyReady  bool               `json:"partially_ready"`
	FullyServed     bool               `json:"fully_served"`
}

// Queue returns the lines of one department, oldest first.
func (s *Service) Queue(ctx context.Context, department string, q *dto.KitchenQuery) ([]QueueItem, error) {
	if q == nil {
		q = &dto.KitchenQuery{}
	}
	q.Department = department
	if err := dto.Check(q); err != nil {
		return nil, err
	}
	dep := q.DepartmentFilter()
	if dep == nil {
		return nil, errorbank.ValidationFailed("department is required", errorbank.WithDetail("department", "is required"))
	}
	return s.project(ctx, "KitchenService.Queue", []entity.Department{*dep}, q.ItemStatuses())
}

// Dishes returns lines across all departments, optionally filtered by one.
func (s *Service) Dishes(ctx context.Context, q *dto.KitchenQuery) ([]QueueItem, error) {
	if q == nil {
		q = &dto.KitchenQuery{}
	}
	if err := dto.Check(q); err != nil {
		return nil, err
	}
	var deps []entity.Department
	if dep := q.DepartmentFilter(); dep != nil {
		deps = append(deps, *dep)
	}
	return s.project(ctx, "KitchenService.Dishes", deps, q.ItemStatuses())
}

func (s *Service) project(ctx context.Context, op string, deps []entity.Department, statuses []entity.ItemStatus) ([]QueueItem, error) {
	ctx, span := serviceTracer.Start(ctx, op)
	defer span.End()

	items, err := s.orders.ListKitchenItems(ctx, orderrepo.ItemFilter{
		Departments:            deps,
		Statuses:               statuses,
		ExcludeCancelledOrders: true,
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to load kitchen items")
	}

	now := s.now().UTC()
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, project(item, now))
	}
	span.SetAttributes(attribute.Int("kitchen.items", len(out)))
	return out, nil
}

func project(item *entity.OrderItem, now time.Time) QueueItem {
	qi := QueueItem{
		ItemID:               item.ID,
		OrderID:              item.OrderID,
		DishID:               item.DishID,
		Quantity:             item.Quantity,
		Comment:              item.Comment,
		Department:           item.Department,
		Status:               item.Status,
		CreatedAt:            item.CreatedAt,
		PreparationStartedAt: item.PreparationStartedAt,
	}
	if item.Dish != nil {
		qi.DishName = item.Dish.Name
		qi.DishImage = item.Dish.ImageURL
		qi.EstimatedTime = item.Dish.CookingTime
	}
	if item.Order != nil && item.Order.Table != nil {
		n := item.Order.Table.Number
		qi.TableNumber = &n
	}
	if item.Status == entity.ItemInPreparation && item.PreparationStartedAt != nil {
		minutes := int(now.Sub(*item.PreparationStartedAt).Minutes())
		if minutes < 0 {
			minutes = 0
		}
		qi.CurrentPreparationTime = &minutes
	}
	return qi
}

// Stats summarises one department, or every department when none is given.
func (s *Service) Stats(ctx context.Context, q *dto.KitchenStatsQuery) ([]DepartmentStats, error) {
	if q == nil {
		q = &dto.KitchenStatsQuery{}
	}
	if err := dto.Check(q); err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "KitchenService.Stats", trace.WithAttributes(attribute.Int("kitchen.hours", q.Hours)))
	defer span.End()

	deps := entity.Departments()
	if d, ok := entity.ParseDepartment(q.Department); ok {
		deps = []entity.Department{d}
	}
	since := s.now().UTC().Add(-q.Window())
	items, err := s.orders.ListKitchenItems(ctx, orderrepo.ItemFilter{Departments: deps, Since: &since})
	if err != nil {
		return nil, s.fail(span, err, "failed to load kitchen items")
	}
	return summarize(deps, items, q.Hours), nil
}

func summarize(deps []entity.Department, items []*entity.OrderItem, hours int) []DepartmentStats {
	type acc struct {
		stats   DepartmentStats
		prepSum int
		prepN   int
	}
	byDep := make(map[entity.Department]*acc, len(deps))
	for _, d := range deps {
		byDep[d] = &acc{stats: DepartmentStats{
			Department:  d,
			PeriodHours: hours,
			ByStatus:    map[entity.ItemStatus]int{},
		}}
	}
	for _, item := range items {
		a, ok := byDep[item.Department]
		if !ok {
			continue
		}
		a.stats.TotalItems++
		a.stats.ByStatus[item.Status]++
		if item.ActualPreparationTime != nil {
			a.prepSum += *item.ActualPreparationTime
			a.prepN++
		}
	}

	out := make([]DepartmentStats, 0, len(deps))
	for _, d := range deps {
		a := byDep[d]
		if a.prepN > 0 {
			avg := math.Round(float64(a.prepSum)/float64(a.prepN)*10) / 10
			a.stats.AvgPreparationTime = &avg
		}
		out = append(out, a.stats)
	}
	return out
}

// Progress reports per-status counts for one order.
func (s *Service) Progress(ctx context.Context, orderID int64) (*Progress, error) {
	ctx, span := serviceTracer.Start(ctx, "KitchenService.Progress", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		return nil, s.fail(span, err, "failed to load order")
	}
	return progressOf(o), nil
}

func progressOf(o *entity.Order) *Progress {
	p := &Progress{OrderID: o.ID, OrderStatus: o.Status}
	for _, item := range o.Items {
		switch item.Status {
		case entity.ItemNew:
			p.New++
		case entity.ItemInPreparation:
			p.InPreparation++
		case entity.ItemReady:
			p.Ready++
		case entity.ItemServed:
			p.Served++
		case entity.ItemCancelled:
			p.Cancelled++
			continue
		}
		p.Total++
	}
	if p.Total > 0 {
		p.PercentComplete = int(math.Round(float64(p.Ready+p.Served) / float64(p.Total) * 100))
		p.AllReady = p.Ready == p.Total && p.Served == 0
		p.PartiallyReady = p.Ready > 0 && p.Ready < p.Total
		p.FullyServed = p.Served == p.Total
	}
	return p
}

// StartPreparing moves a NEW line into IN_PREPARATION.
func (s *Service) StartPreparing(ctx context.Context, actor entity.Actor, orderID, itemID int64) (*entity.Order, error) {
	return s.mover.SetItemStatus(ctx, actor, orderID, itemID, &dto.UpdateItemStatusRequest{Status: string(entity.ItemInPreparation)})
}

func (s *Service) fail(span trace.Span, err error, msg string) error {
	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return errorbank.Internal(msg, errorbank.WithCause(err))
}
