package order

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/servio/internal/notify"
)

// Module provides the order service to Fx.
var Module = fx.Provide(
	NewService,
	func(hub *notify.Hub) Notifier { return hub },
)
