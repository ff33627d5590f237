package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/config"
	"github.com/Additional-Code/servio/internal/messaging"
)

func TestDispatchRoutesByEventType(t *testing.T) {
	var seen []string
	record := func(name string) messaging.Handler {
		return func(_ context.Context, msg messaging.Message) error {
			seen = append(seen, name+":"+string(msg.Value))
			return nil
		}
	}
	engine := NewEngine(Params{
		Client: messaging.NewNoop("servio.orders"),
		Logger: zap.NewNop(),
		Config: config.Config{},
		Registrations: []HandlerRegistration{
			{EventType: "order.created", Handler: record("created")},
			{EventType: "order.status_changed", Handler: record("status")},
			{EventType: "", Handler: record("ignored")},
		},
	})

	ctx := context.Background()
	msg := func(eventType, value string) messaging.Message {
		return messaging.Message{
			Topic:   "servio.orders",
			Value:   []byte(value),
			Headers: map[string]string{messaging.HeaderEventType: eventType},
		}
	}
	require.NoError(t, engine.dispatch(ctx, msg("order.created", "1"), 0))
	require.NoError(t, engine.dispatch(ctx, msg("order.status_changed", "2"), 0))
	require.NoError(t, engine.dispatch(ctx, msg("order.unknown", "3"), 0))
	require.NoError(t, engine.dispatch(ctx, messaging.Message{Value: []byte("4")}, 0))

	assert.Equal(t, []string{"created:1", "status:2"}, seen)
	assert.Equal(t, []string{"order.created", "order.status_changed"}, engine.EventTypes())

	stats, unrouted := engine.Stats()
	assert.Equal(t, EventStats{Handled: 1}, stats["order.created"])
	assert.Equal(t, EventStats{Handled: 1}, stats["order.status_changed"])
	assert.Equal(t, int64(2), unrouted)
}

func TestDispatchFansOutAndCountsFailures(t *testing.T) {
	var calls []string
	boom := errors.New("projection store down")
	engine := NewEngine(Params{
		Client: messaging.NewNoop("servio.orders"),
		Logger: zap.NewNop(),
		Config: config.Config{},
		Registrations: []HandlerRegistration{
			{EventType: "order.payment_updated", Handler: func(context.Context, messaging.Message) error {
				calls = append(calls, "metrics")
				return boom
			}},
			{EventType: "order.payment_updated", Handler: func(context.Context, messaging.Message) error {
				calls = append(calls, "audit")
				return nil
			}},
		},
	})

	msg := messaging.Message{
		Key:     []byte("42"),
		Headers: map[string]string{messaging.HeaderEventType: "order.payment_updated"},
	}
	err := engine.dispatch(context.Background(), msg, 1)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"metrics", "audit"}, calls)

	stats, unrouted := engine.Stats()
	assert.Equal(t, EventStats{Failed: 1}, stats["order.payment_updated"])
	assert.Zero(t, unrouted)
}

func TestStartIsNoopWhenMessagingDisabled(t *testing.T) {
	engine := NewEngine(Params{
		Client: messaging.NewNoop("servio.orders"),
		Logger: zap.NewNop(),
		Config: config.Config{},
	})
	require.NoError(t, engine.start(context.Background()))
	assert.Nil(t, engine.cancel)
	require.NoError(t, engine.stop(context.Background()))
}
