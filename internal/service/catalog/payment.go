package catalog

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/servio/internal/dto"
	"github.com/Additional-Code/servio/internal/entity"
	paymentrepo "github.com/Additional-Code/servio/internal/repository/payment"
	"github.com/Additional-Code/servio/pkg/errorbank"
)

// ListPaymentMethods returns payment methods in display order.
func (s *Service) ListPaymentMethods(ctx context.Context, activeOnly bool) ([]*entity.PaymentMethod, error) {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.ListPaymentMethods")
	defer span.End()

	pms, err := s.payments.List(ctx, activeOnly)
	if err != nil {
		return nil, s.fail(span, err, "failed to list payment methods")
	}
	return pms, nil
}

// GetPaymentMethod returns one payment method.
func (s *Service) GetPaymentMethod(ctx context.Context, id int64) (*entity.PaymentMethod, error) {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.GetPaymentMethod", trace.WithAttributes(attribute.Int64("payment_method.id", id)))
	defer span.End()

	pm, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, paymentNotFound(err), "failed to load payment method")
	}
	return pm, nil
}

// CreatePaymentMethod adds a payment method with a unique name.
func (s *Service) CreatePaymentMethod(ctx context.Context, req *dto.PaymentMethodRequest) (*entity.PaymentMethod, error) {
	if req == nil {
		return nil, errorbank.BadRequest("payment method payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "CatalogService.CreatePaymentMethod")
	defer span.End()

	now := s.now().UTC()
	pm := &entity.PaymentMethod{
		Name:      strings.TrimSpace(req.Name),
		IsActive:  req.IsActive == nil || *req.IsActive,
		SortOrder: req.SortOrder,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.payments.Create(ctx, pm); err != nil {
		return nil, s.fail(span, err, "failed to create payment method")
	}
	return pm, nil
}

// UpdatePaymentMethod patches a payment method. Inactive methods stay
// attached to historical orders.
func (s *Service) UpdatePaymentMethod(ctx context.Context, id int64, req *dto.UpdatePaymentMethodRequest) (*entity.PaymentMethod, error) {
	if req == nil {
		return nil, errorbank.BadRequest("payment method payload is required")
	}
	if err := dto.Check(req); err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "CatalogService.UpdatePaymentMethod", trace.WithAttributes(attribute.Int64("payment_method.id", id)))
	defer span.End()

	pm, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, paymentNotFound(err), "failed to load payment method")
	}
	var columns []string
	if req.Name != nil {
		pm.Name = strings.TrimSpace(*req.Name)
		columns = append(columns, "name")
	}
	if req.IsActive != nil {
		pm.IsActive = *req.IsActive
		columns = append(columns, "is_active")
	}
	if req.SortOrder != nil {
		pm.SortOrder = *req.SortOrder
		columns = append(columns, "sort_order")
	}
	pm.UpdatedAt = s.now().UTC()
	if err := s.payments.Update(ctx, pm, columns...); err != nil {
		return nil, s.fail(span, err, "failed to update payment method")
	}
	return pm, nil
}

func paymentNotFound(err error) error {
	if errors.Is(err, paymentrepo.ErrNotFound) {
		return errorbank.NotFound("payment method not found")
	}
	return err
}
