package floor

import "go.uber.org/fx"

// Module provides the floor service to Fx.
var Module = fx.Provide(NewService)
