package order

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/entity"
	"github.com/Additional-Code/servio/internal/messaging"
	ordersvc "github.com/Additional-Code/servio/internal/service/order"
)

func message(t *testing.T, event ordersvc.Event) messaging.Message {
	t.Helper()
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return messaging.Message{
		Topic:   "servio.orders",
		Value:   raw,
		Headers: map[string]string{messaging.HeaderEventType: event.Type},
	}
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sum(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	s, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "not an int64 sum: %T", data)
	var total int64
	for _, dp := range s.DataPoints {
		total += dp.Value
	}
	return total
}

func TestProjectorRecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")
	p, err := newProjector(meter, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	served := 12
	events := []ordersvc.Event{
		{Type: ordersvc.EventCreated, OrderID: 1, OrderType: entity.OrderDineIn},
		{Type: ordersvc.EventCreated, OrderID: 2, OrderType: entity.OrderTakeaway},
		{Type: ordersvc.EventItemsAdded, OrderID: 1, ItemsAdded: 3},
		{Type: ordersvc.EventItemStatusChanged, OrderID: 1, ItemStatus: entity.ItemReady, Department: entity.DepartmentHot},
		{Type: ordersvc.EventStatusChanged, OrderID: 1, PreviousStatus: entity.OrderReady, Status: entity.OrderServed, TimeToServe: &served},
		{Type: ordersvc.EventPaymentUpdated, OrderID: 1, PaymentStatus: entity.PaymentPaid},
	}
	for _, ev := range events {
		require.NoError(t, p.Handle(ctx, message(t, ev)))
	}

	metrics := collect(t, reader)
	assert.EqualValues(t, 2, sum(t, metrics["servio.orders.created"]))
	assert.EqualValues(t, 3, sum(t, metrics["servio.orders.items_added"]))
	assert.EqualValues(t, 1, sum(t, metrics["servio.orders.item_transitions"]))
	assert.EqualValues(t, 1, sum(t, metrics["servio.orders.status_transitions"]))
	assert.EqualValues(t, 1, sum(t, metrics["servio.orders.payments"]))

	hist, ok := metrics["servio.orders.time_to_serve"].(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.EqualValues(t, 12, hist.DataPoints[0].Sum)
}

func TestProjectorSkipsMalformedMessages(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")
	p, err := newProjector(meter, zap.NewNop())
	require.NoError(t, err)

	err = p.Handle(context.Background(), messaging.Message{Value: []byte("{not json")})
	assert.NoError(t, err)
	err = p.Handle(context.Background(), message(t, ordersvc.Event{Type: "order.teleported"}))
	assert.NoError(t, err)
	assert.Empty(t, collect(t, reader)["servio.orders.created"])
}

func TestRegistrationsCoverEveryEventType(t *testing.T) {
	regs := Registrations(&Projector{})
	var types []string
	for _, r := range regs {
		types = append(types, r.EventType)
		assert.NotNil(t, r.Handler)
	}
	assert.ElementsMatch(t, []string{
		ordersvc.EventCreated,
		ordersvc.EventStatusChanged,
		ordersvc.EventItemsAdded,
		ordersvc.EventItemStatusChanged,
		ordersvc.EventPaymentUpdated,
	}, types)
}
