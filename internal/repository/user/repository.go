package user

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

var repoTracer = otel.Tracer("github.com/Additional-Code/servio/repository/user")

// ErrNotFound is returned when a user is missing.
var ErrNotFound = errors.New("user not found")

// Filter narrows user listings.
type Filter struct {
	Role       entity.Role
	ActiveOnly bool
	OnShift    *bool
}

// Repository encapsulates read/write access for staff accounts.
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

// Create persists a user.
func (r *Repository) Create(ctx context.Context, u *entity.User) error {
	ctx, span := repoTracer.Start(ctx, "UserRepository.Create", trace.WithAttributes(attribute.String("user.username", u.Username)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(u).Exec(ctx)
	return fail(span, err, "insert failed")
}

// GetByID fetches a user by id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	ctx, span := repoTracer.Start(ctx, "UserRepository.GetByID", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	return r.getBy(ctx, span, "u.id = ?", id)
}

// GetByUsername fetches a user by login name.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	ctx, span := repoTracer.Start(ctx, "UserRepository.GetByUsername")
	defer span.End()

	return r.getBy(ctx, span, "u.username = ?", username)
}

// GetByPinHash fetches a user by PIN digest.
func (r *Repository) GetByPinHash(ctx context.Context, digest string) (*entity.User, error) {
	ctx, span := repoTracer.Start(ctx, "UserRepository.GetByPinHash")
	defer span.End()

	return r.getBy(ctx, span, "u.pin_hash = ?", digest)
}

func (r *Repository) getBy(ctx context.Context, span trace.Span, where string, arg any) (*entity.User, error) {
	u := new(entity.User)
	if err := r.reader.NewSelect().Model(u).Where(where, arg).Scan(ctx); err != nil {
		return nil, fail(span, err, "select failed")
	}
	return u, nil
}

// List returns users ordered by username.
func (r *Repository) List(ctx context.Context, filter Filter) ([]*entity.User, error) {
	ctx, span := repoTracer.Start(ctx, "UserRepository.List")
	defer span.End()

	var users []*entity.User
	q := r.reader.NewSelect().Model(&users).OrderExpr("u.username ASC")
	if filter.Role != "" {
		q = q.Where("u.role = ?", filter.Role)
	}
	if filter.ActiveOnly {
		q = q.Where("u.is_active = ?", true)
	}
	if filter.OnShift != nil {
		q = q.Where("u.is_on_shift = ?", *filter.OnShift)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fail(span, err, "select failed")
	}
	return users, nil
}

// Update writes the named columns; callers set UpdatedAt.
func (r *Repository) Update(ctx context.Context, u *entity.User, columns ...string) error {
	ctx, span := repoTracer.Start(ctx, "UserRepository.Update", trace.WithAttributes(attribute.Int64("user.id", u.ID)))
	defer span.End()

	q := r.writer.NewUpdate().Model(u).WherePK()
	if len(columns) > 0 {
		q = q.Column(append(columns, "updated_at")...)
	} else {
		q = q.ExcludeColumn("id", "created_at", "created_by_id")
	}
	_, err := q.Exec(ctx)
	return fail(span, err, "update failed")
}

// Count returns the number of user rows.
func (r *Repository) Count(ctx context.Context) (int, error) {
	ctx, span := repoTracer.Start(ctx, "UserRepository.Count")
	defer span.End()

	n, err := r.reader.NewSelect().Model((*entity.User)(nil)).Count(ctx)
	return n, fail(span, err, "count failed")
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
