package menu

import "go.uber.org/fx"

// Module wires menu handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)
