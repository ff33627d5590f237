// Package floor manages locations and tables and keeps their activation
// state consistent with the orders seated at them.
package floor

import (
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/config"
	"github.com/Additional-Code/servio/internal/database"
	locationrepo "github.com/Additional-Code/servio/internal/repository/location"
	orderrepo "github.com/Additional-Code/servio/internal/repository/order"
	tablerepo "github.com/Additional-Code/servio/internal/repository/table"
	"github.com/Additional-Code/servio/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/servio/service/floor")

// Service owns location and table administration.
type Service struct {
	db        *database.Connections
	locations *locationrepo.Repository
	tables    *tablerepo.Repository
	orders    *orderrepo.Repository
	qrBaseURL string
	logger    *zap.Logger
	now       func() time.Time
	newToken  func() string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	DB        *database.Connections
	Locations *locationrepo.Repository
	Tables    *tablerepo.Repository
	Orders    *orderrepo.Repository
	Config    config.Config
	Logger    *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		db:        p.DB,
		locations: p.Locations,
		tables:    p.Tables,
		orders:    p.Orders,
		qrBaseURL: strings.TrimRight(p.Config.Restaurant.QRBaseURL, "/"),
		logger:    p.Logger,
		now:       time.Now,
		newToken:  newQRToken,
	}
}

func (s *Service) fail(span trace.Span, err error, msg string) error {
	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if database.IsUniqueViolation(err) {
		return errorbank.Conflict(msg+": a record with the same unique value exists", errorbank.WithCause(err))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return errorbank.Internal(msg, errorbank.WithCause(err))
}
