package kitchen

import "go.uber.org/fx"

// Module wires kitchen handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)
