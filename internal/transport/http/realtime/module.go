package realtime

import "go.uber.org/fx"

// Module wires the websocket endpoint.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)
