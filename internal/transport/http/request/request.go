// Package request holds binding helpers shared by HTTP handlers.
package request

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/servio/pkg/errorbank"
)

// ID parses a positive integer path parameter.
func ID(c echo.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid "+name, errorbank.WithDetail(name, raw))
	}
	return id, nil
}

// Bind decodes the request body (and query string) into dst.
func Bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
	}
	return nil
}

// Bool reads an optional boolean query parameter.
func Bool(c echo.Context, name string) (*bool, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errorbank.BadRequest("invalid "+name, errorbank.WithDetail(name, raw))
	}
	return &v, nil
}

// Int64 reads an optional integer query parameter.
func Int64(c echo.Context, name string) (*int64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, errorbank.BadRequest("invalid "+name, errorbank.WithDetail(name, raw))
	}
	return &v, nil
}

// List reads a repeated or comma separated query parameter.
func List(c echo.Context, name string) []string {
	var out []string
	for _, raw := range c.QueryParams()[name] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
