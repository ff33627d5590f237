// Package response renders the JSON envelope shared by every HTTP endpoint.
package response

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/servio/pkg/errorbank"
)

const debugKey = "response.debug"

// FaultKey holds the internal error rendered for a request.
const FaultKey = "response.fault"

// Debug marks requests whose internal errors may be rendered verbatim.
func Debug(enabled bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(debugKey, enabled)
			return next(c)
		}
	}
}

// Builder helps construct consistent HTTP responses.
type Builder struct {
	ctx    echo.Context
	status int
	data   any
	err    error
	meta   map[string]any
}

// New instantiates a Builder for the provided request context.
func New(ctx echo.Context) *Builder {
	return &Builder{ctx: ctx, status: http.StatusOK}
}

// WithStatus overrides the response status code.
func (b *Builder) WithStatus(status int) *Builder {
	if status > 0 {
		b.status = status
	}
	return b
}

// WithData attaches a success payload.
func (b *Builder) WithData(data any) *Builder {
	b.data = data
	return b
}

// Created attaches a payload answered with 201.
func (b *Builder) Created(data any) *Builder {
	b.status = http.StatusCreated
	b.data = data
	return b
}

// WithError records an error to be rendered.
func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// WithMeta appends auxiliary metadata to the response.
func (b *Builder) WithMeta(key string, value any) *Builder {
	if key == "" {
		return b
	}
	if b.meta == nil {
		b.meta = make(map[string]any)
	}
	b.meta[key] = value
	return b
}

// Build finalises and emits the HTTP response.
func (b *Builder) Build() error {
	if b.err != nil {
		return b.buildError()
	}
	return b.buildSuccess()
}

// Fail renders err immediately.
func Fail(c echo.Context, err error) error {
	return New(c).WithError(err).Build()
}

// OK renders data with 200.
func OK(c echo.Context, data any) error {
	return New(c).WithData(data).Build()
}

// NoContent answers a successful request that has no body.
func NoContent(c echo.Context) error {
	return New(c).WithStatus(http.StatusNoContent).Build()
}

func (b *Builder) buildSuccess() error {
	if b.status == http.StatusNoContent {
		return b.ctx.NoContent(http.StatusNoContent)
	}
	payload := struct {
		Success bool           `json:"success"`
		Data    any            `json:"data,omitempty"`
		Meta    map[string]any `json:"meta,omitempty"`
	}{
		Success: true,
		Data:    b.data,
		Meta:    b.meta,
	}
	return b.ctx.JSON(b.status, payload)
}

// errorBody is the failure envelope.
type errorBody struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	ErrorCode string         `json:"error_code"`
	Details   map[string]any `json:"details,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

func (b *Builder) buildError() error {
	appErr := errorbank.From(b.err)
	status := b.status
	if status < 400 {
		status = appErr.StatusCode()
	}
	body := errorBody{
		Success:   false,
		Message:   appErr.Message(),
		ErrorCode: string(appErr.Kind()),
		Details:   appErr.Details(),
		Meta:      b.meta,
	}
	if appErr.Kind() == errorbank.KindInternal {
		// picked up by the request logger
		b.ctx.Set(FaultKey, appErr)
		body.Message = "internal server error"
		body.Details = nil
		if debug, _ := b.ctx.Get(debugKey).(bool); debug && appErr.Cause() != nil {
			body.Details = map[string]any{"cause": appErr.Cause().Error()}
		}
	}
	return b.ctx.JSON(status, body)
}
