package catalog

import (
	"context"
	"strings"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/servio/internal/dto"
	"github.com/Additional-Code/servio/internal/entity"
	"github.com/Additional-Code/servio/pkg/errorbank"
)

// ListIngredients returns ingredients by name.
func (s *Service) ListIngredients(ctx context.Context, activeOnly bool) ([]*entity.Ingredient, error) {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.ListIngredients")
	defer span.End()

	ings, err := s.repo.ListIngredients(ctx, activeOnly)
	if err != nil {
		return nil, s.fail(span, err, "failed to list ingredients")
	}
	return ings, nil
}

// CreateIngredient adds an ingredient with a unique name.
func (s *Service) CreateIngredient(ctx context.Context, req *dto.IngredientRequest) (*entity.Ingredient, error) {
	if req == nil {
		return nil, errorbank.BadRequest("ingredient payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "CatalogService.CreateIngredient")
	defer span.End()

	now := s.now().UTC()
	ing := &entity.Ingredient{
		Name:      strings.TrimSpace(req.Name),
		Unit:      strings.TrimSpace(req.Unit),
		IsActive:  req.IsActive == nil || *req.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, ing); err != nil {
		return nil, s.fail(span, err, "failed to create ingredient")
	}
	return ing, nil
}

// UpdateIngredient replaces name, unit and optionally the active flag.
func (s *Service) UpdateIngredient(ctx context.Context, id int64, req *dto.IngredientRequest) (*entity.Ingredient, error) {
	if req == nil {
		return nil, errorbank.BadRequest("ingredient payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "CatalogService.UpdateIngredient", trace.WithAttributes(attribute.Int64("ingredient.id", id)))
	defer span.End()

	ing, err := s.repo.GetIngredient(ctx, id)
	if err != nil {
		return nil, s.fail(span, notFound(err, "ingredient"), "failed to load ingredient")
	}
	ing.Name = strings.TrimSpace(req.Name)
	ing.Unit = strings.TrimSpace(req.Unit)
	columns := []string{"updated_at", "name", "unit"}
	if req.IsActive != nil {
		ing.IsActive = *req.IsActive
		columns = append(columns, "is_active")
	}
	ing.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, ing, columns...); err != nil {
		return nil, s.fail(span, err, "failed to update ingredient")
	}
	return ing, nil
}

// DeleteIngredient removes an ingredient and detaches it from recipes.
func (s *Service) DeleteIngredient(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.DeleteIngredient", trace.WithAttributes(attribute.Int64("ingredient.id", id)))
	defer span.End()

	err := s.db.InTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.GetIngredient(ctx, id); err != nil {
			return notFound(err, "ingredient")
		}
		return repo.DeleteIngredient(ctx, id)
	})
	if err != nil {
		return s.fail(span, err, "failed to delete ingredient")
	}
	return nil
}

// SetRecipe replaces the ingredient list of a dish. Every referenced
// ingredient must exist.
func (s *Service) SetRecipe(ctx context.Context, dishID int64, req *dto.RecipeRequest) (*entity.Dish, error) {
	if req == nil {
		return nil, errorbank.BadRequest("recipe payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "CatalogService.SetRecipe", trace.WithAttributes(attribute.Int64("dish.id", dishID)))
	defer span.End()

	ids := make([]int64, 0, len(req.Ingredients))
	links := make([]*entity.DishIngredient, 0, len(req.Ingredients))
	for _, line := range req.Ingredients {
		ids = append(ids, line.IngredientID)
		links = append(links, &entity.DishIngredient{IngredientID: line.IngredientID, Amount: line.Amount})
	}

	var dish *entity.Dish
	err := s.db.InTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.GetDish(ctx, dishID); err != nil {
			return notFound(err, "dish")
		}
		n, err := repo.CountIngredients(ctx, ids)
		if err != nil {
			return err
		}
		if n != len(ids) {
			return errorbank.NotFound("one or more ingredients do not exist",
				errorbank.WithDetail("requested", len(ids)),
				errorbank.WithDetail("found", n),
			)
		}
		if err := repo.ReplaceRecipe(ctx, dishID, links); err != nil {
			return err
		}
		dish, err = repo.GetDish(ctx, dishID)
		return err
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to set recipe")
	}
	return dish, nil
}
