package integrity

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/database"
	"github.com/Additional-Code/servio/internal/dto"
	"github.com/Additional-Code/servio/internal/entity"
	orderrepo "github.com/Additional-Code/servio/internal/repository/order"
	tablerepo "github.com/Additional-Code/servio/internal/repository/table"
	"github.com/Additional-Code/servio/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/servio/service/integrity")

// Report is the result of a check.
type Report struct {
	Issues    []Issue           `json:"issues"`
	Total     int               `json:"total"`
	ByType    map[IssueType]int `json:"by_type"`
	CheckedAt time.Time         `json:"checked_at"`
}

// FixResult lists the repairs made by AutoFix, or planned on a dry run.
type FixResult struct {
	DryRun  bool        `json:"dry_run"`
	Types   []IssueType `json:"issue_types"`
	Changes []Change    `json:"changes"`
	Fixed   int         `json:"fixed"`
}

// Service detects and repairs inconsistencies between locations, tables and
// their current orders.
type Service struct {
	db     *database.Connections
	tables *tablerepo.Repository
	orders *orderrepo.Repository
	logger *zap.Logger
	now    func() time.Time
	open   atomic.Int64
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	DB     *database.Connections
	Tables *tablerepo.Repository
	Orders *orderrepo.Repository
	Logger *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		db:     p.DB,
		tables: p.Tables,
		orders: p.Orders,
		logger: p.Logger,
		now:    time.Now,
	}
}

// Check scans every table and reports violations without changing anything.
func (s *Service) Check(ctx context.Context) (*Report, error) {
	ctx, span := serviceTracer.Start(ctx, "IntegrityService.Check")
	defer span.End()

	_, issues, err := s.scan(ctx, s.tables, s.orders)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return nil, errorbank.Internal("failed to run integrity check", errorbank.WithCause(err))
	}
	if issues == nil {
		issues = []Issue{}
	}
	span.SetAttributes(attribute.Int("integrity.issues", len(issues)))
	s.open.Store(int64(len(issues)))

	return &Report{
		Issues:    issues,
		Total:     len(issues),
		ByType:    summarize(issues),
		CheckedAt: s.now().UTC(),
	}, nil
}

// AutoFix repairs issues of the requested types in one transaction. A dry
// run returns the same change list and rolls nothing forward.
func (s *Service) AutoFix(ctx context.Context, req *dto.IntegrityFixRequest) (*FixResult, error) {
	if req == nil {
		return nil, errorbank.BadRequest("fix payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}
	types, err := parseTypes(req.IssueTypes)
	if err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "IntegrityService.AutoFix", trace.WithAttributes(attribute.Bool("integrity.dry_run", req.DryRun)))
	defer span.End()

	result := &FixResult{DryRun: req.DryRun, Types: types, Changes: []Change{}}
	wanted := make(map[IssueType]bool, len(types))
	for _, kind := range types {
		wanted[kind] = true
	}

	errDryRun := errors.New("dry run")
	err = s.db.InTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		tables := s.tables.WithTx(tx)
		byID, issues, err := s.scan(ctx, tables, s.orders.WithTx(tx))
		if err != nil {
			return err
		}

		now := s.now().UTC()
		dirty := make(map[int64][]string)
		var order []int64
		for _, issue := range issues {
			if !wanted[issue.IssueType] {
				continue
			}
			table := byID[issue.TableID]
			action, columns := repair(table, issue)
			if len(columns) > 0 {
				if _, seen := dirty[table.ID]; !seen {
					order = append(order, table.ID)
				}
				dirty[table.ID] = mergeColumns(dirty[table.ID], columns)
			}
			result.Changes = append(result.Changes, Change{
				IssueType:   issue.IssueType,
				TableID:     table.ID,
				TableNumber: table.Number,
				Action:      action,
			})
		}

		if req.DryRun {
			return errDryRun
		}
		for _, id := range order {
			table := byID[id]
			table.UpdatedAt = now
			if err := tables.Update(ctx, table, dirty[id]...); err != nil {
				return err
			}
		}
		result.Fixed = len(result.Changes)
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "auto-fix failed")
		return nil, errorbank.Internal("failed to apply integrity fixes", errorbank.WithCause(err))
	}

	s.logger.Info("integrity auto-fix",
		zap.Bool("dry_run", req.DryRun),
		zap.Int("changes", len(result.Changes)),
		zap.Int("fixed", result.Fixed),
	)
	return result, nil
}

// OpenIssues returns the issue count seen by the most recent check.
func (s *Service) OpenIssues() int64 {
	return s.open.Load()
}

func (s *Service) scan(ctx context.Context, tables *tablerepo.Repository, orders *orderrepo.Repository) (map[int64]*entity.Table, []Issue, error) {
	list, err := tables.List(ctx, tablerepo.Filter{})
	if err != nil {
		return nil, nil, err
	}

	byID := make(map[int64]*entity.Table, len(list))
	var referenced []int64
	for _, t := range list {
		byID[t.ID] = t
		if t.CurrentOrderID != nil {
			referenced = append(referenced, *t.CurrentOrderID)
		}
	}

	found, err := orders.ListByIDs(ctx, referenced)
	if err != nil {
		return nil, nil, err
	}
	byOrder := make(map[int64]*entity.Order, len(found))
	for _, o := range found {
		byOrder[o.ID] = o
	}

	ids := make([]int64, 0, len(list))
	for _, t := range list {
		ids = append(ids, t.ID)
	}
	seated, err := orders.ListByTables(ctx, ids, entity.SeatHoldingStatuses())
	if err != nil {
		return nil, nil, err
	}
	holding := make(map[int64][]*entity.Order)
	for _, o := range seated {
		holding[*o.TableID] = append(holding[*o.TableID], o)
	}
	return byID, detect(list, byOrder, holding), nil
}

func parseTypes(raw []string) ([]IssueType, error) {
	out := make([]IssueType, 0, len(raw))
	seen := make(map[IssueType]bool, len(raw))
	for _, name := range raw {
		kind, ok := ParseIssueType(name)
		if !ok {
			return nil, errorbank.ValidationFailed("unknown issue type",
				errorbank.WithDetail("issue_type", name),
				errorbank.WithDetail("allowed", IssueTypes()),
			)
		}
		if !seen[kind] {
			seen[kind] = true
			out = append(out, kind)
		}
	}
	return out, nil
}
