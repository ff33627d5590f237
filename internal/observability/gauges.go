package observability

import (
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"

	"github.com/Additional-Code/servio/internal/notify"
	"github.com/Additional-Code/servio/internal/service/integrity"
)

// GaugesModule exposes realtime and integrity state as gauges.
var GaugesModule = fx.Invoke(RegisterGauges)

// RegisterGauges wires the hub subscriber counts and the open integrity
// issue count into the meter.
func RegisterGauges(m *Manager, hub *notify.Hub, checker *integrity.Service) error {
	if err := m.RegisterGauge("servio.realtime.subscribers", "Connected realtime subscribers per role.",
		func(observe func(int64, ...attribute.KeyValue)) {
			stats := hub.Stats()
			observe(int64(stats.Waiters), attribute.String("role", "WAITER"))
			observe(int64(stats.Kitchen), attribute.String("role", "KITCHEN"))
			observe(int64(stats.Admins), attribute.String("role", "ADMIN"))
		}); err != nil {
		return err
	}
	return m.RegisterGauge("servio.integrity.open_issues", "Issues found by the last integrity check.",
		func(observe func(int64, ...attribute.KeyValue)) {
			observe(checker.OpenIssues())
		})
}
