package table

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/servio/internal/database"
	"github.com/Additional-Code/servio/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/servio/repository/table")

// ErrNotFound is returned when a table is missing.
var ErrNotFound = errors.New("table not found")

// Filter narrows table listings.
type Filter struct {
	LocationID *int64
	IsActive   *bool
	IsOccupied *bool
}

// Repository encapsulates read/write access for tables.
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

// Create persists a new table.
func (r *Repository) Create(ctx context.Context, t *entity.Table) error {
	ctx, span := repoTracer.Start(ctx, "TableRepository.Create", trace.WithAttributes(attribute.Int("table.number", t.Number)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(t).Exec(ctx)
	return fail(span, err, "insert failed")
}

// GetByID fetches a table with its location.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Table, error) {
	ctx, span := repoTracer.Start(ctx, "TableRepository.GetByID", trace.WithAttributes(attribute.Int64("table.id", id)))
	defer span.End()

	t := new(entity.Table)
	err := r.reader.NewSelect().Model(t).Relation("Location").Where("t.id = ?", id).Scan(ctx)
	if err != nil {
		return nil, fail(span, err, "select failed")
	}
	return t, nil
}

// GetForUpdate fetches and row-locks a table inside a transaction.
func (r *Repository) GetForUpdate(ctx context.Context, id int64) (*entity.Table, error) {
	ctx, span := repoTracer.Start(ctx, "TableRepository.GetForUpdate", trace.WithAttributes(attribute.Int64("table.id", id)))
	defer span.End()

	t := new(entity.Table)
	q := r.writer.NewSelect().Model(t).Where("t.id = ?", id)
	if err := database.ForUpdate(r.writer, q).Scan(ctx); err != nil {
		return nil, fail(span, err, "select failed")
	}
	return t, nil
}

// GetByQRToken resolves a guest-facing QR token.
func (r *Repository) GetByQRToken(ctx context.Context, token string) (*entity.Table, error) {
	ctx, span := repoTracer.Start(ctx, "TableRepository.GetByQRToken")
	defer span.End()

	t := new(entity.Table)
	if err := r.reader.NewSelect().Model(t).Where("t.qr_token = ?", token).Scan(ctx); err != nil {
		return nil, fail(span, err, "select failed")
	}
	return t, nil
}

// List returns tables ordered by number.
func (r *Repository) List(ctx context.Context, filter Filter) ([]*entity.Table, error) {
	ctx, span := repoTracer.Start(ctx, "TableRepository.List")
	defer span.End()

	var tables []*entity.Table
	q := r.reader.NewSelect().Model(&tables).Relation("Location").OrderExpr("t.number ASC")
	if filter.LocationID != nil {
		q = q.Where("t.location_id = ?", *filter.LocationID)
	}
	if filter.IsActive != nil {
		q = q.Where("t.is_active = ?", *filter.IsActive)
	}
	if filter.IsOccupied != nil {
		q = q.Where("t.is_occupied = ?", *filter.IsOccupied)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fail(span, err, "select failed")
	}
	return tables, nil
}

// ListByLocationForUpdate locks every table of a location.
func (r *Repository) ListByLocationForUpdate(ctx context.Context, locationID int64) ([]*entity.Table, error) {
	ctx, span := repoTracer.Start(ctx, "TableRepository.ListByLocationForUpdate", trace.WithAttributes(attribute.Int64("location.id", locationID)))
	defer span.End()

	var tables []*entity.Table
	q := r.writer.NewSelect().Model(&tables).Where("t.location_id = ?", locationID).OrderExpr("t.id ASC")
	if err := database.ForUpdate(r.writer, q).Scan(ctx); err != nil {
		return nil, fail(span, err, "select failed")
	}
	return tables, nil
}

// CountByLocation returns how many tables reference a location.
func (r *Repository) CountByLocation(ctx context.Context, locationID int64) (int, error) {
	ctx, span := repoTracer.Start(ctx, "TableRepository.CountByLocation")
	defer span.End()

	n, err := r.reader.NewSelect().Model((*entity.Table)(nil)).Where("t.location_id = ?", locationID).Count(ctx)
	if err != nil {
		return 0, fail(span, err, "count failed")
	}
	return n, nil
}

// Update writes the named columns plus updated_at; callers set UpdatedAt.
func (r *Repository) Update(ctx context.Context, t *entity.Table, columns ...string) error {
	ctx, span := repoTracer.Start(ctx, "TableRepository.Update", trace.WithAttributes(attribute.Int64("table.id", t.ID)))
	defer span.End()

	q := r.writer.NewUpdate().Model(t).WherePK()
	if len(columns) > 0 {
		q = q.Column(append(columns, "updated_at")...)
	} else {
		q = q.ExcludeColumn("id", "qr_token", "created_at")
	}
	_, err := q.Exec(ctx)
	return fail(span, err, "update failed")
}

func fail(span trace.Span, err error, msg string) error {
	if err == nil {
		return nil
	}
	if database.IsNoRows(err) || errors.Is(err, ErrNotFound) {
		span.SetStatus(codes.Error, "not found")
		return ErrNotFound
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return err
}
