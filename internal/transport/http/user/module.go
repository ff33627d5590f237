package user

import "go.uber.org/fx"

// Module wires user handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)
