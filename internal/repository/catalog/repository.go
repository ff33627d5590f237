package catalog

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

var repoTracer = otel.Tracer("github.com/Additional-Code/servio/repository/catalog")

// ErrNotFound is returned when a catalog record is missing.
var ErrNotFound = errors.New("catalog record not found")

// DishFilter narrows dish listings.
type DishFilter struct {
	CategoryID    *int64
	Department    entity.Department
	AvailableOnly bool
	PopularOnly   bool
}

// Repository encapsulates read/write access for categories, dishes,
// variations and ingredients.
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

// Insert persists any catalog model.
func (r *Repository) Insert(ctx context.Context, model any) error {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.Insert")
	defer span.End()

	_, err := r.writer.NewInsert().Model(model).Exec(ctx)
	return fail(span, err, "insert failed")
}

// Update writes the named columns of any catalog model by primary key.
// Callers set UpdatedAt before calling.
func (r *Repository) Update(ctx context.Context, model any, columns ...string) error {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.Update")
	defer span.End()

	q := r.writer.NewUpdate().Model(model).WherePK()
	if len(columns) > 0 {
		q = q.Column(columns...)
	} else {
		q = q.ExcludeColumn("id", "created_at")
	}
	_, err := q.Exec(ctx)
	return fail(span, err, "update failed")
}

// GetCategory fetches a category by id.
func (r *Repository) GetCategory(ctx context.Context, id int64) (*entity.Category, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.GetCategory", trace.WithAttributes(attribute.Int64("category.id", id)))
	defer span.End()

	c := new(entity.Category)
	if err := r.reader.NewSelect().Model(c).Where("c.id = ?", id).Scan(ctx); err != nil {
		return nil, fail(span, err, "select failed")
	}
	return c, nil
}

// ListCategories returns categories ordered for display.
func (r *Repository) ListCategories(ctx context.Context, activeOnly bool) ([]*entity.Category, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.ListCategories")
	defer span.End()

	var cats []*entity.Category
	q := r.reader.NewSelect().Model(&cats).OrderExpr("c.sort_order ASC, c.id ASC")
	if activeOnly {
		q = q.Where("c.is_active = ?", true)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fail(span, err, "select failed")
	}
	return cats, nil
}

// Menu returns active categories with their available dishes and variations.
func (r *Repository) Menu(ctx context.Context) ([]*entity.Category, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.Menu")
	defer span.End()

	var cats []*entity.Category
	err := r.reader.NewSelect().
		Model(&cats).
		Relation("Dishes", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("d.is_available = ?", true).OrderExpr("d.sort_order ASC, d.id ASC")
		}).
		Relation("Dishes.Variations", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("dv.is_available = ?", true).OrderExpr("dv.sort_order ASC, dv.id ASC")
		}).
		Where("c.is_active = ?", true).
		OrderExpr("c.sort_order ASC, c.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fail(span, err, "select failed")
	}
	return cats, nil
}

// DeleteCategory removes a category row. Callers ensure it has no dishes.
func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.DeleteCategory", trace.WithAttributes(attribute.Int64("category.id", id)))
	defer span.End()

	_, err := r.writer.NewDelete().Model((*entity.Category)(nil)).Where("id = ?", id).Exec(ctx)
	return fail(span, err, "delete failed")
}

// CountDishes counts dishes in a category.
func (r *Repository) CountDishes(ctx context.Context, categoryID int64) (int, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.CountDishes")
	defer span.End()

	n, err := r.reader.NewSelect().Model((*entity.Dish)(nil)).Where("d.category_id = ?", categoryID).Count(ctx)
	return n, fail(span, err, "count failed")
}

// GetDish fetches a dish with variations and recipe.
func (r *Repository) GetDish(ctx context.Context, id int64) (*entity.Dish, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.GetDish", trace.WithAttributes(attribute.Int64("dish.id", id)))
	defer span.End()

	d := new(entity.Dish)
	err := r.reader.NewSelect().
		Model(d).
		Relation("Variations", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("dv.sort_order ASC, dv.id ASC")
		}).
		Relation("Recipe").
		Relation("Recipe.Ingredient").
		Where("d.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, fail(span, err, "select failed")
	}
	return d, nil
}

// ListDishes returns dishes ordered for display with their variations.
func (r *Repository) ListDishes(ctx context.Context, filter DishFilter) ([]*entity.Dish, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.ListDishes")
	defer span.End()

	var dishes []*entity.Dish
	q := r.reader.NewSelect().
		Model(&dishes).
		Relation("Variations", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("dv.sort_order ASC, dv.id ASC")
		}).
		OrderExpr("d.category_id ASC, d.sort_order ASC, d.id ASC")
	if filter.CategoryID != nil {
		q = q.Where("d.category_id = ?", *filter.CategoryID)
	}
	if filter.Department != "" {
		q = q.Where("d.department = ?", filter.Department)
	}
	if filter.AvailableOnly {
		q = q.Where("d.is_available = ?", true)
	}
	if filter.PopularOnly {
		q = q.Where("d.is_popular = ?", true)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fail(span, err, "select failed")
	}
	return dishes, nil
}

// DeleteDish removes a dish together with its variations and recipe links.
func (r *Repository) DeleteDish(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.DeleteDish", trace.WithAttributes(attribute.Int64("dish.id", id)))
	defer span.End()

	if _, err := r.writer.NewDelete().Model((*entity.DishIngredient)(nil)).Where("dish_id = ?", id).Exec(ctx); err != nil {
		return fail(span, err, "delete recipe failed")
	}
	if _, err := r.writer.NewDelete().Model((*entity.DishVariation)(nil)).Where("dish_id = ?", id).Exec(ctx); err != nil {
		return fail(span, err, "delete variations failed")
	}
	_, err := r.writer.NewDelete().Model((*entity.Dish)(nil)).Where("id = ?", id).Exec(ctx)
	return fail(span, err, "delete failed")
}

// GetVariation fetches a variation by id.
func (r *Repository) GetVariation(ctx context.Context, id int64) (*entity.DishVariation, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.GetVariation", trace.WithAttributes(attribute.Int64("variation.id", id)))
	defer span.End()

	v := new(entity.DishVariation)
	if err := r.reader.NewSelect().Model(v).Where("dv.id = ?", id).Scan(ctx); err != nil {
		return nil, fail(span, err, "select failed")
	}
	return v, nil
}

// ListVariations returns the variations of a dish in selection order.
func (r *Repository) ListVariations(ctx context.Context, dishID int64) ([]*entity.DishVariation, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.ListVariations", trace.WithAttributes(attribute.Int64("dish.id", dishID)))
	defer span.End()

	var vars []*entity.DishVariation
	err := r.reader.NewSelect().Model(&vars).Where("dv.dish_id = ?", dishID).OrderExpr("dv.sort_order ASC, dv.id ASC").Scan(ctx)
	return vars, fail(span, err, "select failed")
}

// ClearDefault unsets is_default on every variation of a dish except keepID.
func (r *Repository) ClearDefault(ctx context.Context, dishID, keepID int64) error {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.ClearDefault", trace.WithAttributes(attribute.Int64("dish.id", dishID)))
	defer span.End()

	_, err := r.writer.NewUpdate().
		Model((*entity.DishVariation)(nil)).
		Set("is_default = ?", false).
		Set("updated_at = ?", time.Now().UTC()).
		Where("dish_id = ?", dishID).
		Where("id <> ?", keepID).
		Where("is_default = ?", true).
		Exec(ctx)
	return fail(span, err, "update failed")
}

// DeleteVariation removes a variation row.
func (r *Repository) DeleteVariation(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.DeleteVariation", trace.WithAttributes(attribute.Int64("variation.id", id)))
	defer span.End()

	_, err := r.writer.NewDelete().Model((*entity.DishVariation)(nil)).Where("id = ?", id).Exec(ctx)
	return fail(span, err, "delete failed")
}

// GetIngredient fetches an ingredient by id.
func (r *Repository) GetIngredient(ctx context.Context, id int64) (*entity.Ingredient, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.GetIngredient", trace.WithAttributes(attribute.Int64("ingredient.id", id)))
	defer span.End()

	ing := new(entity.Ingredient)
	if err := r.reader.NewSelect().Model(ing).Where("i.id = ?", id).Scan(ctx); err != nil {
		return nil, fail(span, err, "select failed")
	}
	return ing, nil
}

// ListIngredients returns ingredients by name.
func (r *Repository) ListIngredients(ctx context.Context, activeOnly bool) ([]*entity.Ingredient, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.ListIngredients")
	defer span.End()

	var ings []*entity.Ingredient
	q := r.reader.NewSelect().Model(&ings).OrderExpr("i.name ASC")
	if activeOnly {
		q = q.Where("i.is_active = ?", true)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fail(span, err, "select failed")
	}
	return ings, nil
}

// DeleteIngredient removes an ingredient and every recipe link to it.
func (r *Repository) DeleteIngredient(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.DeleteIngredient", trace.WithAttributes(attribute.Int64("ingredient.id", id)))
	defer span.End()

	if _, err := r.writer.NewDelete().Model((*entity.DishIngredient)(nil)).Where("ingredient_id = ?", id).Exec(ctx); err != nil {
		return fail(span, err, "delete links failed")
	}
	_, err := r.writer.NewDelete().Model((*entity.Ingredient)(nil)).Where("id = ?", id).Exec(ctx)
	return fail(span, err, "delete failed")
}

// CountIngredients counts existing ingredients among ids.
func (r *Repository) CountIngredients(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.CountIngredients")
	defer span.End()

	n, err := r.reader.NewSelect().Model((*entity.Ingredient)(nil)).Where("i.id IN (?)", bun.In(ids)).Count(ctx)
	return n, fail(span, err, "count failed")
}

// ReplaceRecipe swaps the ingredient links of a dish.
func (r *Repository) ReplaceRecipe(ctx context.Context, dishID int64, links []*entity.DishIngredient) error {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.ReplaceRecipe", trace.WithAttributes(attribute.Int64("dish.id", dishID)))
	defer span.End()

	if _, err := r.writer.NewDelete().Model((*entity.DishIngredient)(nil)).Where("dish_id = ?", dishID).Exec(ctx); err != nil {
		return fail(span, err, "delete failed")
	}
	for _, link := range links {
		link.DishID = dishID
		if _, err := r.writer.NewInsert().Model(link).Exec(ctx); err != nil {
			return fail(span, err, "insert failed")
		}
	}
	return nil
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
