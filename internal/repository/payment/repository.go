package payment

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

var repoTracer = otel.Tracer("github.com/Additional-Code/servio/repository/payment")

// ErrNotFound is returned when a payment method is missing.
var ErrNotFound = errors.New("payment method not found")

// Repository encapsulates read/write access for payment methods.
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

// Create persists a payment method.
func (r *Repository) Create(ctx context.Context, pm *entity.PaymentMethod) error {
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.Create", trace.WithAttributes(attribute.String("payment_method.name", pm.Name)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(pm).Exec(ctx)
	return fail(span, err, "insert failed")
}

// GetByID fetches a payment method by id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.PaymentMethod, error) {
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.GetByID", trace.WithAttributes(attribute.Int64("payment_method.id", id)))
	defer span.End()

	pm := new(entity.PaymentMethod)
	if err := r.reader.NewSelect().Model(pm).Where("pm.id = ?", id).Scan(ctx); err != nil {
		return nil, fail(span, err, "select failed")
	}
	return pm, nil
}

// List returns payment methods in display order.
func (r *Repository) List(ctx context.Context, activeOnly bool) ([]*entity.PaymentMethod, error) {
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.List")
	defer span.End()

	var pms []*entity.PaymentMethod
	q := r.reader.NewSelect().Model(&pms).OrderExpr("pm.sort_order ASC, pm.id ASC")
	if activeOnly {
		q = q.Where("pm.is_active = ?", true)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fail(span, err, "select failed")
	}
	return pms, nil
}

// Update writes the named columns; callers set UpdatedAt.
func (r *Repository) Update(ctx context.Context, pm *entity.PaymentMethod, columns ...string) error {
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.Update", trace.WithAttributes(attribute.Int64("payment_method.id", pm.ID)))
	defer span.End()

	q := r.writer.NewUpdate().Model(pm).WherePK()
	if len(columns) > 0 {
		q = q.Column(append(columns, "updated_at")...)
	} else {
		q = q.ExcludeColumn("id", "created_at")
	}
	_, err := q.Exec(ctx)
	return fail(span, err, "update failed")
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
