package floor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/dto"
	"github.com/Additional-Code/servio/internal/entity"
	locationrepo "github.com/Additional-Code/servio/internal/repository/location"
	tablerepo "github.com/Additional-Code/servio/internal/repository/table"
	"github.com/Additional-Code/servio/pkg/errorbank"
)

// LocationUpdate is the outcome of UpdateLocation including cascaded table changes.
type LocationUpdate struct {
	Location          *entity.Location `json:"location"`
	TablesDeactivated int              `json:"tables_deactivated"`
	TablesActivated   int              `json:"tables_activated"`
}

// ListLocations returns locations ordered by name.
func (s *Service) ListLocations(ctx context.Context, activeOnly bool) ([]*entity.Location, error) {
	ctx, span := serviceTracer.Start(ctx, "FloorService.ListLocations")
	defer span.End()

	locs, err := s.locations.List(ctx, activeOnly)
	if err != nil {
		return nil, s.fail(span, err, "failed to list locations")
	}
	return locs, nil
}

// GetLocation returns one location.
func (s *Service) GetLocation(ctx context.Context, id int64) (*entity.Location, error) {
	ctx, span := serviceTracer.Start(ctx, "FloorService.GetLocation", trace.WithAttributes(attribute.Int64("location.id", id)))
	defer span.End()

	loc, err := s.locations.GetByID(ctx, id)
	if errors.Is(err, locationrepo.ErrNotFound) {
		return nil, errorbank.NotFound("location not found")
	}
	if err != nil {
		return nil, s.fail(span, err, "failed to load location")
	}
	return loc, nil
}

// LocationTables lists the tables of a location.
func (s *Service) LocationTables(ctx context.Context, id int64) ([]*entity.Table, error) {
	if _, err := s.GetLocation(ctx, id); err != nil {
		return nil, err
	}
	return s.ListTables(ctx, tablerepo.Filter{LocationID: &id})
}

// CreateLocation adds a location; new locations are active unless stated otherwise.
func (s *Service) CreateLocation(ctx context.Context, req *dto.CreateLocationRequest) (*entity.Location, error) {
	if req == nil {
		return nil, errorbank.BadRequest("location payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "FloorService.CreateLocation")
	defer span.End()

	now := s.now().UTC()
	loc := &entity.Location{
		Name:      strings.TrimSpace(req.Name),
		Color:     req.Color,
		IsActive:  req.IsActive == nil || *req.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.locations.Create(ctx, loc); err != nil {
		return nil, s.fail(span, err, "failed to create location")
	}
	return loc, nil
}

// UpdateLocation patches a location. Deactivation cascades to every table of
// the location and is refused while any of them has an active order.
// Activation touches tables only when ForceSync is set.
func (s *Service) UpdateLocation(ctx context.Context, id int64, req *dto.UpdateLocationRequest) (*LocationUpdate, error) {
	if req == nil {
		return nil, errorbank.BadRequest("location payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "FloorService.UpdateLocation", trace.WithAttributes(attribute.Int64("location.id", id)))
	defer span.End()

	result := &LocationUpdate{}
	err := s.db.InTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		locations := s.locations.WithTx(tx)
		tables := s.tables.WithTx(tx)
		now := s.now().UTC()

		loc, err := locations.GetForUpdate(ctx, id)
		if errors.Is(err, locationrepo.ErrNotFound) {
			return errorbank.NotFound("location not found")
		}
		if err != nil {
			return err
		}

		var columns []string
		if req.Name != nil {
			loc.Name = strings.TrimSpace(*req.Name)
			columns = append(columns, "name")
		}
		if req.Color != nil {
			loc.Color = *req.Color
			columns = append(columns, "color")
		}
		wasActive := loc.IsActive
		if req.IsActive != nil {
			loc.IsActive = *req.IsActive
			columns = append(columns, "is_active")
		}

		switch {
		case wasActive && !loc.IsActive:
			n, err := s.deactivateTables(ctx, tx, id, now)
			if err != nil {
				return err
			}
			result.TablesDeactivated = n
		case loc.IsActive && req.ForceSync:
			list, err := tables.ListByLocationForUpdate(ctx, id)
			if err != nil {
				return err
			}
			for _, t := range list {
				if t.IsActive {
					continue
				}
				t.IsActive = true
				t.UpdatedAt = now
				if err := tables.Update(ctx, t, "is_active"); err != nil {
					return err
				}
				result.TablesActivated++
			}
		}

		if len(columns) > 0 {
			loc.UpdatedAt = now
			if err := locations.Update(ctx, loc, columns...); err != nil {
				return err
			}
		}
		result.Location = loc
		return nil
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to update location")
	}

	if result.TablesDeactivated > 0 || result.TablesActivated > 0 {
		s.logger.Info("location tables synchronised",
			zap.Int64("location_id", id),
			zap.Int("deactivated", result.TablesDeactivated),
			zap.Int("activated", result.TablesActivated),
		)
	}
	return result, nil
}

// deactivateTables turns off every table of a location after confirming none
// of them is serving an active order.
func (s *Service) deactivateTables(ctx context.Context, tx bun.Tx, locationID int64, now time.Time) (int, error) {
	tables := s.tables.WithTx(tx)
	list, err := tables.ListByLocationForUpdate(ctx, locationID)
	if err != nil {
		return 0, err
	}

	ids := make([]int64, 0, len(list))
	for _, t := range list {
		ids = append(ids, t.ID)
	}
	active, err := s.orders.WithTx(tx).ListByTables(ctx, ids, entity.ActiveOrderStatuses())
	if err != nil {
		return 0, err
	}

	blocking := make(map[int64]bool)
	for _, o := range active {
		blocking[*o.TableID] = true
	}
	for _, t := range list {
		if t.CurrentOrderID != nil {
			blocking[t.ID] = true
		}
	}
	if len(blocking) > 0 {
		numbers := make([]int, 0, len(blocking))
		for _, t := range list {
			if blocking[t.ID] {
				numbers = append(numbers, t.Number)
			}
		}
		return 0, errorbank.PreconditionFailed("location has tables with active orders",
			errorbank.WithDetail("active_orders_count", len(active)),
			errorbank.WithDetail("blocking_tables", numbers),
		)
	}

	changed := 0
	for _, t := range list {
		if !t.IsActive && !t.IsOccupied && t.CurrentOrderID == nil {
			continue
		}
		t.Deactivate()
		t.UpdatedAt = now
		if err := tables.Update(ctx, t, "is_active", "is_occupied", "current_order_id"); err != nil {
			return 0, err
		}
		changed++
	}
	return changed, nil
}

// DeleteLocation removes a location that no table references.
func (s *Service) DeleteLocation(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "FloorService.DeleteLocation", trace.WithAttributes(attribute.Int64("location.id", id)))
	defer span.End()

	err := s.db.InTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.locations.WithTx(tx).GetForUpdate(ctx, id); err != nil {
			if errors.Is(err, locationrepo.ErrNotFound) {
				return errorbank.NotFound("location not found")
			}
			return err
		}
		n, err := s.tables.WithTx(tx).CountByLocation(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return errorbank.PreconditionFailed("location still has tables", errorbank.WithDetail("tables_count", n))
		}
		return s.locations.WithTx(tx).Delete(ctx, id)
	})
	if err != nil {
		return s.fail(span, err, "failed to delete location")
	}
	return nil
}
