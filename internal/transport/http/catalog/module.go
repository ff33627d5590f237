package catalog

import "go.uber.org/fx"

// Module wires catalog handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)
