package location

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

var repoTracer = otel.Tracer("github.com/Additional-Code/servio/repository/location")

// ErrNotFound is returned when a location is missing.
var ErrNotFound = errors.New("location not found")

// Repository encapsulates read/write access for locations.
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

// Create persists a new location.
func (r *Repository) Create(ctx context.Context, loc *entity.Location) error {
	ctx, span := repoTracer.Start(ctx, "LocationRepository.Create", trace.WithAttributes(attribute.String("location.name", loc.Name)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(loc).Exec(ctx)
	return fail(span, err, "insert failed")
}

// GetByID fetches a location by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Location, error) {
	ctx, span := repoTracer.Start(ctx, "LocationRepository.GetByID", trace.WithAttributes(attribute.Int64("location.id", id)))
	defer span.End()

	loc := new(entity.Location)
	if err := r.reader.NewSelect().Model(loc).Where("l.id = ?", id).Scan(ctx); err != nil {
		return nil, fail(span, err, "select failed")
	}
	return loc, nil
}

// GetForUpdate fetches and row-locks a location.
func (r *Repository) GetForUpdate(ctx context.Context, id int64) (*entity.Location, error) {
	ctx, span := repoTracer.Start(ctx, "LocationRepository.GetForUpdate", trace.WithAttributes(attribute.Int64("location.id", id)))
	defer span.End()

	loc := new(entity.Location)
	q := r.writer.NewSelect().Model(loc).Where("l.id = ?", id)
	if err := database.ForUpdate(r.writer, q).Scan(ctx); err != nil {
		return nil, fail(span, err, "select failed")
	}
	return loc, nil
}

// List returns locations ordered by name, optionally only active ones.
func (r *Repository) List(ctx context.Context, activeOnly bool) ([]*entity.Location, error) {
	ctx, span := repoTracer.Start(ctx, "LocationRepository.List")
	defer span.End()

	var locs []*entity.Location
	q := r.reader.NewSelect().Model(&locs).OrderExpr("l.name ASC")
	if activeOnly {
		q = q.Where("l.is_active = ?", true)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fail(span, err, "select failed")
	}
	return locs, nil
}

// Update writes the named columns plus updated_at; callers set UpdatedAt.
func (r *Repository) Update(ctx context.Context, loc *entity.Location, columns ...string) error {
	ctx, span := repoTracer.Start(ctx, "LocationRepository.Update", trace.WithAttributes(attribute.Int64("location.id", loc.ID)))
	defer span.End()

	q := r.writer.NewUpdate().Model(loc).WherePK()
	if len(columns) > 0 {
		q = q.Column(append(columns, "updated_at")...)
	} else {
		q = q.ExcludeColumn("id", "created_at")
	}
	_, err := q.Exec(ctx)
	return fail(span, err, "update failed")
}

// Delete removes a location row. Callers ensure no tables reference it.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "LocationRepository.Delete", trace.WithAttributes(attribute.Int64("location.id", id)))
	defer span.End()

	_, err := r.writer.NewDelete().Model((*entity.Location)(nil)).Where("id = ?", id).Exec(ctx)
	return fail(span, err, "delete failed")
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
