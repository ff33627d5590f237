package integrity

import "go.uber.org/fx"

// Module provides the integrity service to Fx.
var Module = fx.Provide(NewService)
