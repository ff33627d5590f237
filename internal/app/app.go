package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/servio/internal/auth"
	"github.com/Additional-Code/servio/internal/cache"
	"github.com/Additional-Code/servio/internal/config"
	"github.com/Additional-Code/servio/internal/database"
	"github.com/Additional-Code/servio/internal/logger"
	"github.com/Additional-Code/servio/internal/messaging"
	"github.com/Additional-Code/servio/internal/notify"
	"github.com/Additional-Code/servio/internal/observability"
	repositorycatalog "github.com/Additional-Code/servio/internal/repository/catalog"
	repositorylocation "github.com/Additional-Code/servio/internal/repository/location"
	repositoryorder "github.com/Additional-Code/servio/internal/repository/order"
	repositorypayment "github.com/Additional-Code/servio/internal/repository/payment"
	repositorytable "github.com/Additional-Code/servio/internal/repository/table"
	repositoryuser "github.com/Additional-Code/servio/internal/repository/user"
	grpcserver "github.com/Additional-Code/servio/internal/server/grpc"
	httpserver "github.com/Additional-Code/servio/internal/server/http"
	servicecatalog "github.com/Additional-Code/servio/internal/service/catalog"
	servicefloor "github.com/Additional-Code/servio/internal/service/floor"
	serviceintegrity "github.com/Additional-Code/servio/internal/service/integrity"
	servicekitchen "github.com/Additional-Code/servio/internal/service/kitchen"
	serviceorder "github.com/Additional-Code/servio/internal/service/order"
	serviceuser "github.com/Additional-Code/servio/internal/service/user"
	transporthttp "github.com/Additional-Code/servio/internal/transport/http"
	"github.com/Additional-Code/servio/internal/worker"
	workerorder "github.com/Additional-Code/servio/internal/worker/order"
)

// Infra provides configuration, logging and the connections every
// executable needs.
var Infra = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	Infra,
	auth.Module,
	notify.Module,
	repositorycatalog.Module,
	repositorylocation.Module,
	repositoryorder.Module,
	repositorypayment.Module,
	repositorytable.Module,
	repositoryuser.Module,
	servicecatalog.Module,
	servicefloor.Module,
	serviceintegrity.Module,
	servicekitchen.Module,
	serviceorder.Module,
	serviceuser.Module,
)

// HTTP wires the HTTP, WebSocket and gRPC health transports plus the
// housekeeping loop on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
	observability.GaugesModule,
	serviceintegrity.HousekeepingModule,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Infra,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
