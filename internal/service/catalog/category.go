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

// ListCategories returns categories in display order.
func (s *Service) ListCategories(ctx context.Context, activeOnly bool) ([]*entity.Category, error) {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.ListCategories")
	defer span.End()

	cats, err := s.repo.ListCategories(ctx, activeOnly)
	if err != nil {
		return nil, s.fail(span, err, "failed to list categories")
	}
	return cats, nil
}

// GetCategory returns one category.
func (s *Service) GetCategory(ctx context.Context, id int64) (*entity.Category, error) {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.GetCategory", trace.WithAttributes(attribute.Int64("category.id", id)))
	defer span.End()

	c, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, s.fail(span, notFound(err, "category"), "failed to load category")
	}
	return c, nil
}

// CreateCategory adds a category with a unique name.
func (s *Service) CreateCategory(ctx context.Context, req *dto.CategoryRequest) (*entity.Category, error) {
	if req == nil {
		return nil, errorbank.BadRequest("category payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "CatalogService.CreateCategory")
	defer span.End()

	now := s.now().UTC()
	c := &entity.Category{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		SortOrder:   req.SortOrder,
		IsActive:    req.IsActive == nil || *req.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, c); err != nil {
		return nil, s.fail(span, err, "failed to create category")
	}
	s.invalidateMenu(ctx)
	return c, nil
}

// UpdateCategory patches a category.
func (s *Service) UpdateCategory(ctx context.Context, id int64, req *dto.UpdateCategoryRequest) (*entity.Category, error) {
	if req == nil {
		return nil, errorbank.BadRequest("category payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "CatalogService.UpdateCategory", trace.WithAttributes(attribute.Int64("category.id", id)))
	defer span.End()

	c, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, s.fail(span, notFound(err, "category"), "failed to load category")
	}

	columns := []string{"updated_at"}
	if req.Name != nil {
		c.Name = strings.TrimSpace(*req.Name)
		columns = append(columns, "name")
	}
	if req.Description != nil {
		c.Description = strings.TrimSpace(*req.Description)
		columns = append(columns, "description")
	}
	if req.SortOrder != nil {
		c.SortOrder = *req.SortOrder
		columns = append(columns, "sort_order")
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
		columns = append(columns, "is_active")
	}
	c.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, c, columns...); err != nil {
		return nil, s.fail(span, err, "failed to update category")
	}
	s.invalidateMenu(ctx)
	return c, nil
}

// DeleteCategory removes an empty category.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.DeleteCategory", trace.WithAttributes(attribute.Int64("category.id", id)))
	defer span.End()

	err := s.db.InTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.GetCategory(ctx, id); err != nil {
			return notFound(err, "category")
		}
		n, err := repo.CountDishes(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return errorbank.PreconditionFailed("category still has dishes", errorbank.WithDetail("dishes_count", n))
		}
		return repo.DeleteCategory(ctx, id)
	})
	if err != nil {
		return s.fail(span, err, "failed to delete category")
	}
	s.invalidateMenu(ctx)
	return nil
}
