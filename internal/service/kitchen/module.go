package kitchen

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/servio/internal/service/order"
)

// Module provides the kitchen service to Fx.
var Module = fx.Provide(
	NewService,
	func(orders *order.Service) ItemMover { return orders },
)
