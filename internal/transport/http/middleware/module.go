package middleware

import "go.uber.org/fx"

// Module provides the shared middleware.
var Module = fx.Provide(NewAuthenticator, NewRateLimiter)
