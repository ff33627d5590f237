package floor

import "go.uber.org/fx"

// Module wires floor handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)
