package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/servio/internal/dto"
	"github.com/Additional-Code/servio/internal/entity"
	catalogrepo "github.com/Additional-Code/servio/internal/repository/catalog"
	"github.com/Additional-Code/servio/pkg/errorbank"
)

// ListDishes returns dishes with their variations.
func (s *Service) ListDishes(ctx context.Context, filter catalogrepo.DishFilter) ([]*entity.Dish, error) {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.ListDishes")
	defer span.End()

	dishes, err := s.repo.ListDishes(ctx, filter)
	if err != nil {
		return nil, s.fail(span, err, "failed to list dishes")
	}
	return dishes, nil
}

// GetDish returns a dish with variations and recipe.
func (s *Service) GetDish(ctx context.Context, id int64) (*entity.Dish, error) {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.GetDish", trace.WithAttributes(attribute.Int64("dish.id", id)))
	defer span.End()

	d, err := s.repo.GetDish(ctx, id)
	if err != nil {
		return nil, s.fail(span, notFound(err, "dish"), "failed to load dish")
	}
	return d, nil
}

// CreateDish adds a dish and its initial variations in one transaction.
// Dish names are unique within their category.
func (s *Service) CreateDish(ctx context.Context, req *dto.DishRequest) (*entity.Dish, error) {
	if req == nil {
		return nil, errorbank.BadRequest("dish payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}
	department, _ := entity.ParseDepartment(req.Department)

	ctx, span := serviceTracer.Start(ctx, "CatalogService.CreateDish")
	defer span.End()

	now := s.now().UTC()
	d := &entity.Dish{
		CategoryID:  req.CategoryID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		IsAvailable: req.IsAvailable == nil || *req.IsAvailable,
		Department:  department,
		CookingTime: req.CookingTime,
		Weight:      req.Weight,
		Calories:    req.Calories,
		SortOrder:   req.SortOrder,
		IsPopular:   req.IsPopular,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.InTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.GetCategory(ctx, req.CategoryID); err != nil {
			return notFound(err, "category")
		}
		if err := repo.Insert(ctx, d); err != nil {
			return err
		}
		for _, vr := range req.Variations {
			v := newVariation(d.ID, vr, now)
			if err := repo.Insert(ctx, v); err != nil {
				return err
			}
			d.Variations = append(d.Variations, v)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to create dish")
	}
	s.invalidateMenu(ctx)
	return d, nil
}

// UpdateDish patches a dish.
func (s *Service) UpdateDish(ctx context.Context, id int64, req *dto.UpdateDishRequest) (*entity.Dish, error) {
	if req == nil {
		return nil, errorbank.BadRequest("dish payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "CatalogService.UpdateDish", trace.WithAttributes(attribute.Int64("dish.id", id)))
	defer span.End()

	var updated *entity.Dish
	err := s.db.InTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		repo := s.repo.WithTx(tx)
		d, err := repo.GetDish(ctx, id)
		if err != nil {
			return notFound(err, "dish")
		}

		columns := []string{"updated_at"}
		if req.CategoryID != nil && *req.CategoryID != d.CategoryID {
			if _, err := repo.GetCategory(ctx, *req.CategoryID); err != nil {
				return notFound(err, "category")
			}
			d.CategoryID = *req.CategoryID
			columns = append(columns, "category_id")
		}
		if req.Name != nil {
			d.Name = strings.TrimSpace(*req.Name)
			columns = append(columns, "name")
		}
		if req.Description != nil {
			d.Description = strings.TrimSpace(*req.Description)
			columns = append(columns, "description")
		}
		if req.Department != nil {
			d.Department, _ = entity.ParseDepartment(*req.Department)
			columns = append(columns, "department")
		}
		if req.CookingTime != nil {
			d.CookingTime = req.CookingTime
			columns = append(columns, "cooking_time")
		}
		if req.Weight != nil {
			d.Weight = req.Weight
			columns = append(columns, "weight")
		}
		if req.Calories != nil {
			d.Calories = req.Calories
			columns = append(columns, "calories")
		}
		if req.SortOrder != nil {
			d.SortOrder = *req.SortOrder
			columns = append(columns, "sort_order")
		}
		if req.IsPopular != nil {
			d.IsPopular = *req.IsPopular
			columns = append(columns, "is_popular")
		}
		if req.IsAvailable != nil {
			d.IsAvailable = *req.IsAvailable
			columns = append(columns, "is_available")
		}
		d.UpdatedAt = s.now().UTC()
		if err := repo.Update(ctx, d, columns...); err != nil {
			return err
		}
		updated = d
		return nil
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to update dish")
	}
	s.invalidateMenu(ctx)
	return updated, nil
}

// DeleteDish removes a dish that no order ever referenced. Dishes with
// history should be marked unavailable instead.
func (s *Service) DeleteDish(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.DeleteDish", trace.WithAttributes(attribute.Int64("dish.id", id)))
	defer span.End()

	err := s.db.InTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.GetDish(ctx, id); err != nil {
			return notFound(err, "dish")
		}
		n, err := s.orders.WithTx(tx).CountItemsByDish(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return errorbank.Conflict("dish has order history; mark it unavailable instead",
				errorbank.WithDetail("order_items_count", n))
		}
		return repo.DeleteDish(ctx, id)
	})
	if err != nil {
		return s.fail(span, err, "failed to delete dish")
	}
	s.invalidateMenu(ctx)
	return nil
}

// AddVariation adds a variation to a dish. A new default replaces the old one.
func (s *Service) AddVariation(ctx context.Context, dishID int64, req *dto.VariationRequest) (*entity.DishVariation, error) {
	if req == nil {
		return nil, errorbank.BadRequest("variation payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "CatalogService.AddVariation", trace.WithAttributes(attribute.Int64("dish.id", dishID)))
	defer span.End()

	v := newVariation(dishID, *req, s.now().UTC())
	err := s.db.InTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.GetDish(ctx, dishID); err != nil {
			return notFound(err, "dish")
		}
		if err := repo.Insert(ctx, v); err != nil {
			return err
		}
		if v.IsDefault {
			return repo.ClearDefault(ctx, dishID, v.ID)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to add variation")
	}
	s.invalidateMenu(ctx)
	return v, nil
}

// UpdateVariation patches a variation. Prices captured by existing order
// lines are unaffected.
func (s *Service) UpdateVariation(ctx context.Context, id int64, req *dto.UpdateVariationRequest) (*entity.DishVariation, error) {
	if req == nil {
		return nil, errorbank.BadRequest("variation payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "CatalogService.UpdateVariation", trace.WithAttributes(attribute.Int64("variation.id", id)))
	defer span.End()

	var updated *entity.DishVariation
	err := s.db.InTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		repo := s.repo.WithTx(tx)
		v, err := repo.GetVariation(ctx, id)
		if err != nil {
			return notFound(err, "variation")
		}

		columns := []string{"updated_at"}
		if req.Name != nil {
			v.Name = strings.TrimSpace(*req.Name)
			columns = append(columns, "name")
		}
		if req.Price != nil {
			v.Price = req.Price.Round(2)
			columns = append(columns, "price")
		}
		if req.IsAvailable != nil {
			v.IsAvailable = *req.IsAvailable
			columns = append(columns, "is_available")
		}
		if req.IsDefault != nil {
			v.IsDefault = *req.IsDefault
			columns = append(columns, "is_default")
		}
		if req.SKU != nil {
			v.SKU = normalizeSKU(req.SKU)
			columns = append(columns, "sku")
		}
		if req.SortOrder != nil {
			v.SortOrder = *req.SortOrder
			columns = append(columns, "sort_order")
		}
		v.UpdatedAt = s.now().UTC()
		if err := repo.Update(ctx, v, columns...); err != nil {
			return err
		}
		if v.IsDefault {
			if err := repo.ClearDefault(ctx, v.DishID, v.ID); err != nil {
				return err
			}
		}
		updated = v
		return nil
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to update variation")
	}
	s.invalidateMenu(ctx)
	return updated, nil
}

// DeleteVariation removes a variation. The last variation of a dish with
// order history cannot be removed.
func (s *Service) DeleteVariation(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.DeleteVariation", trace.WithAttributes(attribute.Int64("variation.id", id)))
	defer span.End()

	err := s.db.InTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		repo := s.repo.WithTx(tx)
		v, err := repo.GetVariation(ctx, id)
		if err != nil {
			return notFound(err, "variation")
		}
		siblings, err := repo.ListVariations(ctx, v.DishID)
		if err != nil {
			return err
		}
		if len(siblings) <= 1 {
			n, err := s.orders.WithTx(tx).CountItemsByDish(ctx, v.DishID)
			if err != nil {
				return err
			}
			if n > 0 {
				return errorbank.Conflict("cannot delete the last variation of a dish with order history",
					errorbank.WithDetail("dish_id", v.DishID),
					errorbank.WithDetail("order_items_count", n),
				)
			}
		}
		return repo.DeleteVariation(ctx, id)
	})
	if err != nil {
		return s.fail(span, err, "failed to delete variation")
	}
	s.invalidateMenu(ctx)
	return nil
}

func newVariation(dishID int64, req dto.VariationRequest, now time.Time) *entity.DishVariation {
	return &entity.DishVariation{
		DishID:      dishID,
		Name:        strings.TrimSpace(req.Name),
		Price:       req.Price.Round(2),
		IsAvailable: req.IsAvailable == nil || *req.IsAvailable,
		IsDefault:   req.IsDefault,
		SKU:         normalizeSKU(req.SKU),
		SortOrder:   req.SortOrder,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// normalizeSKU trims a SKU; blank means none, so uniqueness only applies to real codes.
func normalizeSKU(sku *string) *string {
	if sku == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*sku)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
