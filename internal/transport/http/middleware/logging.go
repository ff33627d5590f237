package middleware

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/presentation/http/response"
	"github.com/Additional-Code/servio/pkg/errorbank"
)

// RequestLogger logs every request. Internal faults are logged at ERROR;
// with debug enabled the entry also carries the cause type and a stack.
func RequestLogger(logger *zap.Logger, debug bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("client_ip", c.RealIP()),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
			}

			if fault, ok := c.Get(response.FaultKey).(*errorbank.AppError); ok {
				fields = append(fields, zap.Error(fault))
				if debug {
					if cause := fault.Cause(); cause != nil {
						fields = append(fields, zap.String("error_type", fmt.Sprintf("%T", cause)))
					}
					fields = append(fields, zap.Stack("stack"))
				}
				logger.Error("request failed", fields...)
				return nil
			}
			if c.Response().Status >= 500 {
				logger.Error("request failed", fields...)
				return nil
			}
			logger.Debug("request served", fields...)
			return nil
		}
	}
}
