package floor

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/servio/internal/dto"
	"github.com/Additional-Code/servio/internal/entity"
	locationrepo "github.com/Additional-Code/servio/internal/repository/location"
	tablerepo "github.com/Additional-Code/servio/internal/repository/table"
	"github.com/Additional-Code/servio/pkg/errorbank"
)

// QRLink is what a scanned table code resolves to.
type QRLink struct {
	TableNumber int    `json:"table_number"`
	MenuURL     string `json:"menu_url"`
}

func newQRToken() string {
	return uuid.NewString()
}

// ListTables returns tables ordered by number.
func (s *Service) ListTables(ctx context.Context, filter tablerepo.Filter) ([]*entity.Table, error) {
	ctx, span := serviceTracer.Start(ctx, "FloorService.ListTables")
	defer span.End()

	tables, err := s.tables.List(ctx, filter)
	if err != nil {
		return nil, s.fail(span, err, "failed to list tables")
	}
	return tables, nil
}

// GetTable returns one table with its location.
func (s *Service) GetTable(ctx context.Context, id int64) (*entity.Table, error) {
	ctx, span := serviceTracer.Start(ctx, "FloorService.GetTable", trace.WithAttributes(attribute.Int64("table.id", id)))
	defer span.End()

	t, err := s.tables.GetByID(ctx, id)
	if errors.Is(err, tablerepo.ErrNotFound) {
		return nil, errorbank.NotFound("table not found")
	}
	if err != nil {
		return nil, s.fail(span, err, "failed to load table")
	}
	return t, nil
}

// TableByQR resolves an active table from its guest-facing token.
func (s *Service) TableByQR(ctx context.Context, token string) (*entity.Table, error) {
	ctx, span := serviceTracer.Start(ctx, "FloorService.TableByQR")
	defer span.End()

	t, err := s.tables.GetByQRToken(ctx, token)
	if errors.Is(err, tablerepo.ErrNotFound) {
		return nil, errorbank.NotFound("table not found")
	}
	if err != nil {
		return nil, s.fail(span, err, "failed to resolve qr token")
	}
	if !t.IsActive {
		return nil, errorbank.NotFound("table not found")
	}
	return t, nil
}

// QRLink returns the menu address encoded in a table's QR code.
func (s *Service) QRLink(ctx context.Context, token string) (*QRLink, error) {
	t, err := s.TableByQR(ctx, token)
	if err != nil {
		return nil, err
	}
	return &QRLink{TableNumber: t.Number, MenuURL: s.qrBaseURL + "/" + t.QRToken}, nil
}

// CreateTable adds a table with a fresh QR token. An active table must sit
// in an active location.
func (s *Service) CreateTable(ctx context.Context, req *dto.CreateTableRequest) (*entity.Table, error) {
	if req == nil {
		return nil, errorbank.BadRequest("table payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "FloorService.CreateTable", trace.WithAttributes(attribute.Int("table.number", req.Number)))
	defer span.End()

	now := s.now().UTC()
	t := &entity.Table{
		Number:     req.Number,
		Seats:      req.Seats,
		QRToken:    s.newToken(),
		IsActive:   req.IsActive == nil || *req.IsActive,
		LocationID: req.LocationID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.db.InTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := s.checkPlacement(ctx, tx, t); err != nil {
			return err
		}
		return s.tables.WithTx(tx).Create(ctx, t)
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to create table")
	}
	return t, nil
}

// UpdateTable patches a table. Deactivation is refused while an order sits at it.
func (s *Service) UpdateTable(ctx context.Context, id int64, req *dto.UpdateTableRequest) (*entity.Table, error) {
	if req == nil {
		return nil, errorbank.BadRequest("table payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "FloorService.UpdateTable", trace.WithAttributes(attribute.Int64("table.id", id)))
	defer span.End()

	var updated *entity.Table
	err := s.db.InTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		tables := s.tables.WithTx(tx)
		t, err := tables.GetForUpdate(ctx, id)
		if errors.Is(err, tablerepo.ErrNotFound) {
			return errorbank.NotFound("table not found")
		}
		if err != nil {
			return err
		}

		var columns []string
		if req.Number != nil {
			t.Number = *req.Number
			columns = append(columns, "number")
		}
		if req.Seats != nil {
			t.Seats = *req.Seats
			columns = append(columns, "seats")
		}
		switch {
		case req.ClearLocation:
			t.LocationID = nil
			columns = append(columns, "location_id")
		case req.LocationID != nil:
			t.LocationID = req.LocationID
			columns = append(columns, "location_id")
		}
		if req.IsActive != nil && *req.IsActive != t.IsActive {
			if !*req.IsActive {
				if t.CurrentOrderID != nil {
					return errorbank.PreconditionFailed("table has an active order",
						errorbank.WithDetail("current_order_id", *t.CurrentOrderID))
				}
				t.Deactivate()
				columns = append(columns, "is_active", "is_occupied", "current_order_id")
			} else {
				t.IsActive = true
				columns = append(columns, "is_active")
			}
		}
		if len(columns) == 0 {
			updated = t
			return nil
		}

		if err := s.checkPlacement(ctx, tx, t); err != nil {
			return err
		}
		t.UpdatedAt = s.now().UTC()
		if err := tables.Update(ctx, t, columns...); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to update table")
	}
	return updated, nil
}

// DeleteTable soft-deletes a table by deactivating it.
func (s *Service) DeleteTable(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "FloorService.DeleteTable", trace.WithAttributes(attribute.Int64("table.id", id)))
	defer span.End()

	err := s.db.InTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		tables := s.tables.WithTx(tx)
		t, err := tables.GetForUpdate(ctx, id)
		if errors.Is(err, tablerepo.ErrNotFound) {
			return errorbank.NotFound("table not found")
		}
		if err != nil {
			return err
		}
		if t.CurrentOrderID != nil {
			return errorbank.Conflict("table has an active order",
				errorbank.WithDetail("current_order_id", *t.CurrentOrderID))
		}
		t.Deactivate()
		t.UpdatedAt = s.now().UTC()
		return tables.Update(ctx, t, "is_active", "is_occupied", "current_order_id")
	})
	if err != nil {
		return s.fail(span, err, "failed to delete table")
	}
	return nil
}

// checkPlacement enforces that an active table references an existing active location.
func (s *Service) checkPlacement(ctx context.Context, tx bun.Tx, t *entity.Table) error {
	if t.LocationID == nil {
		if t.IsActive {
			return errorbank.ValidationFailed("an active table requires a location",
				errorbank.WithDetail("location_id", "is required for active tables"))
		}
		return nil
	}

	loc, err := s.locations.WithTx(tx).GetByID(ctx, *t.LocationID)
	if errors.Is(err, locationrepo.ErrNotFound) {
		return errorbank.NotFound("location not found", errorbank.WithDetail("location_id", *t.LocationID))
	}
	if err != nil {
		return err
	}
	if t.IsActive && !loc.IsActive {
		return errorbank.PreconditionFailed("an active table cannot be placed in an inactive location",
			errorbank.WithDetail("location_id", loc.ID))
	}
	return nil
}
