package order

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/messaging"
	"github.com/Additional-Code/servio/internal/observability"
	ordersvc "github.com/Additional-Code/servio/internal/service/order"
	"github.com/Additional-Code/servio/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/servio/worker/order")

// Module registers order stream handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		NewProjector,
		fx.Annotate(
			Registrations,
			fx.ResultTags(`group:"worker.handlers,flatten"`),
		),
	),
)

// Projector turns order events into domain metrics.
type Projector struct {
	logger      *zap.Logger
	created     metric.Int64Counter
	transitions metric.Int64Counter
	itemsAdded  metric.Int64Counter
	itemMoves   metric.Int64Counter
	payments    metric.Int64Counter
	timeToServe metric.Int64Histogram
}

// NewProjector creates the instruments on the application meter.
func NewProjector(obs *observability.Manager, logger *zap.Logger) (*Projector, error) {
	return newProjector(obs.Meter(), logger)
}

func newProjector(meter metric.Meter, logger *zap.Logger) (*Projector, error) {
	p := &Projector{logger: logger}
	var err error
	if p.created, err = meter.Int64Counter("servio.orders.created",
		metric.WithDescription("Orders created, by order type.")); err != nil {
		return nil, err
	}
	if p.transitions, err = meter.Int64Counter("servio.orders.status_transitions",
		metric.WithDescription("Order status transitions, explicit and derived.")); err != nil {
		return nil, err
	}
	if p.itemsAdded, err = meter.Int64Counter("servio.orders.items_added",
		metric.WithDescription("Lines appended to existing orders.")); err != nil {
		return nil, err
	}
	if p.itemMoves, err = meter.Int64Counter("servio.orders.item_transitions",
		metric.WithDescription("Order line status changes, by department.")); err != nil {
		return nil, err
	}
	if p.payments, err = meter.Int64Counter("servio.orders.payments",
		metric.WithDescription("Payment status changes.")); err != nil {
		return nil, err
	}
	if p.timeToServe, err = meter.Int64Histogram("servio.orders.time_to_serve",
		metric.WithDescription("Minutes from creation until an order was served."),
		metric.WithUnit("min")); err != nil {
		return nil, err
	}
	return p, nil
}

// Registrations binds every order event type to the projector.
func Registrations(p *Projector) []worker.HandlerRegistration {
	types := []string{
		ordersvc.EventCreated,
		ordersvc.EventStatusChanged,
		ordersvc.EventItemsAdded,
		ordersvc.EventItemStatusChanged,
		ordersvc.EventPaymentUpdated,
	}
	regs := make([]worker.HandlerRegistration, 0, len(types))
	for _, t := range types {
		regs = append(regs, worker.HandlerRegistration{EventType: t, Handler: p.Handle})
	}
	return regs
}

// Handle decodes and records one event. Decode failures are reported and
// skipped; replaying a malformed message cannot succeed.
func (p *Projector) Handle(ctx context.Context, msg messaging.Message) error {
	ctx, span := workerTracer.Start(ctx, "worker.orders.project", trace.WithAttributes(
		attribute.String("messaging.topic", msg.Topic),
		attribute.String("event.type", msg.EventType()),
	))
	defer span.End()

	var event ordersvc.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		p.logger.Error("failed to decode order event", zap.Error(err), zap.Int64("offset", msg.Offset))
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode error")
		return nil
	}
	span.SetAttributes(attribute.Int64("order.id", event.OrderID))

	if err := p.record(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Warn("order event skipped", zap.Error(err), zap.Int64("order_id", event.OrderID))
		return nil
	}
	p.logger.Debug("order event projected",
		zap.String("type", event.Type),
		zap.Int64("order_id", event.OrderID),
		zap.String("status", string(event.Status)),
	)
	return nil
}

func (p *Projector) record(ctx context.Context, event ordersvc.Event) error {
	switch event.Type {
	case ordersvc.EventCreated:
		p.created.Add(ctx, 1, metric.WithAttributes(attribute.String("order_type", string(event.OrderType))))
	case ordersvc.EventStatusChanged:
		p.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from", string(event.PreviousStatus)),
			attribute.String("to", string(event.Status)),
		))
		if event.TimeToServe != nil {
			p.timeToServe.Record(ctx, int64(*event.TimeToServe))
		}
	case ordersvc.EventItemsAdded:
		p.itemsAdded.Add(ctx, int64(event.ItemsAdded))
	case ordersvc.EventItemStatusChanged:
		p.itemMoves.Add(ctx, 1, metric.WithAttributes(
			attribute.String("department", string(event.Department)),
			attribute.String("status", string(event.ItemStatus)),
		))
	case ordersvc.EventPaymentUpdated:
		p.payments.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_status", string(event.PaymentStatus))))
	default:
		return fmt.Errorf("unknown order event %q", event.Type)
	}
	return nil
}
