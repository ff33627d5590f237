package user

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/servio/internal/notify"
)

// Module provides the user service to Fx.
var Module = fx.Provide(
	NewService,
	func(hub *notify.Hub) Disconnector { return hub },
)
