package integrity

import "go.uber.org/fx"

// Module wires integrity handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)
