package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/config"
	"github.com/Additional-Code/servio/internal/messaging"
	"github.com/Additional-Code/servio/internal/observability"
)

const maxBackoff = 30 * time.Second

// Message outcomes recorded per event type.
const (
	OutcomeHandled  = "handled"
	OutcomeFailed   = "failed"
	OutcomeUnrouted = "unrouted"
)

// HandlerRegistration binds an event type to a handler. Every event of the
// order stream shares one topic, so routing uses the event-type header.
// Several handlers may register for the same event type; each receives it.
type HandlerRegistration struct {
	EventType string
	Handler   messaging.Handler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Obs           *observability.Manager `optional:"true"`
	Registrations []HandlerRegistration  `group:"worker.handlers"`
}

// EventStats counts the outcomes of one event type.
type EventStats struct {
	Handled int64
	Failed  int64
}

type route struct {
	handlers []messaging.Handler
	handled  atomic.Int64
	failed   atomic.Int64
}

// Engine consumes the order stream and fans each event out to the handlers
// registered for its type.
type Engine struct {
	client   messaging.Client
	logger   *zap.Logger
	cfg      config.Config
	routes   map[string]*route
	unrouted atomic.Int64
	messages metric.Int64Counter
	cancel   context.CancelFunc
	wg       *sync.WaitGroup
}

// NewEngine builds the routing table from the registered handlers.
func NewEngine(p Params) *Engine {
	routes := make(map[string]*route, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.EventType == "" || r.Handler == nil {
			continue
		}
		rt, ok := routes[r.EventType]
		if !ok {
			rt = &route{}
			routes[r.EventType] = rt
		}
		rt.handlers = append(rt.handlers, r.Handler)
	}

	meter := noop.NewMeterProvider().Meter("worker")
	if p.Obs != nil {
		meter = p.Obs.Meter()
	}
	messages, err := meter.Int64Counter("servio.worker.messages",
		metric.WithDescription("Consumed order events, by event type and outcome."))
	if err != nil {
		p.Logger.Warn("worker message counter unavailable", zap.Error(err))
		messages, _ = noop.NewMeterProvider().Meter("worker").Int64Counter("servio.worker.messages")
	}

	return &Engine{
		client:   p.Client,
		logger:   p.Logger,
		cfg:      p.Config,
		routes:   routes,
		messages: messages,
	}
}

// Module wires the engine into Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStart: engine.start,
			OnStop:  engine.stop,
		})
	}),
)

// EventTypes lists the routed event types in sorted order.
func (e *Engine) EventTypes() []string {
	types := make([]string, 0, len(e.routes))
	for t := range e.routes {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Stats returns per-event-type outcome counts and the number of messages
// that matched no route.
func (e *Engine) Stats() (map[string]EventStats, int64) {
	out := make(map[string]EventStats, len(e.routes))
	for t, rt := range e.routes {
		out[t] = EventStats{Handled: rt.handled.Load(), Failed: rt.failed.Load()}
	}
	return out, e.unrouted.Load()
}

func (e *Engine) start(ctx context.Context) error {
	if !e.cfg.Messaging.Enabled || !e.cfg.Messaging.Workers.Enabled {
		e.logger.Info("worker engine disabled")

		return nil
	}
	if len(e.routes) == 0 {
		e.logger.Info("worker engine has no handlers; skipping")

		return nil
	}

	concurrency := e.cfg.Messaging.Workers.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg = &sync.WaitGroup{}

	for i := 0; i < concurrency; i++ {
		workerID := i
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.consumeLoop(runCtx, workerID)
		}()
	}

	e.logger.Info("worker engine started",
		zap.Int("workers", concurrency),
		zap.Strings("event_types", e.EventTypes()),
	)

	return nil
}

func (e *Engine) stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	done := make(chan struct{})
	go func() {
		if e.wg != nil {
			e.wg.Wait()
		}
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		stats, unrouted := e.Stats()
		fields := make([]zap.Field, 0, len(stats)+1)
		for _, t := range e.EventTypes() {
			fields = append(fields, zap.Int64s(t, []int64{stats[t].Handled, stats[t].Failed}))
		}
		fields = append(fields, zap.Int64("unrouted", unrouted))
		e.logger.Info("worker engine stopped", fields...)

		return nil
	}
}

// dispatch fans one message out to every handler of its event type. Unknown
// event types are acknowledged so a newer producer cannot stall older
// workers. A failing handler does not keep the others from running.
func (e *Engine) dispatch(ctx context.Context, msg messaging.Message, workerID int) error {
	eventType := msg.EventType()
	rt, ok := e.routes[eventType]
	if !ok {
		e.unrouted.Add(1)
		e.record(ctx, eventType, OutcomeUnrouted)
		e.logger.Debug("no handler for event",
			zap.String("topic", msg.Topic),
			zap.String("event_type", eventType),
		)

		return nil
	}

	e.logger.Debug("processing message",
		zap.String("event_type", eventType),
		zap.ByteString("key", msg.Key),
		zap.Int64("offset", msg.Offset),
		zap.Int("worker", workerID),
	)

	var errs []error
	for _, handler := range rt.handlers {
		if err := handler(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		rt.failed.Add(1)
		e.record(ctx, eventType, OutcomeFailed)
		e.logger.Warn("event handler failed",
			zap.String("event_type", eventType),
			zap.ByteString("key", msg.Key),
			zap.Int64("offset", msg.Offset),
			zap.Int("worker", workerID),
			zap.Error(err),
		)

		return err
	}
	rt.handled.Add(1)
	e.record(ctx, eventType, OutcomeHandled)

	return nil
}

func (e *Engine) record(ctx context.Context, eventType, outcome string) {
	e.messages.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event.type", eventType),
		attribute.String("outcome", outcome),
	))
}

// consumeLoop restarts the consumer with exponential backoff. The backoff
// resets once a restarted consumer has delivered a message again.
func (e *Engine) consumeLoop(ctx context.Context, workerID int) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		var delivered atomic.Bool
		err := e.client.Consume(ctx, func(msgCtx context.Context, msg messaging.Message) error {
			delivered.Store(true)
			return e.dispatch(msgCtx, msg, workerID)
		})

		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		if delivered.Load() {
			backoff = time.Second
		}

		e.logger.Error("consume loop error",
			zap.Int("worker", workerID),
			zap.Duration("retry_in", backoff),
			zap.Error(err),
		)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}

		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}
