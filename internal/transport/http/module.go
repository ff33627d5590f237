package http

import (
	"go.uber.org/fx"

	catalogtransport "github.com/Additional-Code/servio/internal/transport/http/catalog"
	floortransport "github.com/Additional-Code/servio/internal/transport/http/floor"
	integritytransport "github.com/Additional-Code/servio/internal/transport/http/integrity"
	kitchentransport "github.com/Additional-Code/servio/internal/transport/http/kitchen"
	menutransport "github.com/Additional-Code/servio/internal/transport/http/menu"
	"github.com/Additional-Code/servio/internal/transport/http/middleware"
	ordertransport "github.com/Additional-Code/servio/internal/transport/http/order"
	realtimetransport "github.com/Additional-Code/servio/internal/transport/http/realtime"
	usertransport "github.com/Additional-Code/servio/internal/transport/http/user"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	middleware.Module,
	ordertransport.Module,
	floortransport.Module,
	catalogtransport.Module,
	usertransport.Module,
	kitchentransport.Module,
	integritytransport.Module,
	menutransport.Module,
	realtimetransport.Module,
)
