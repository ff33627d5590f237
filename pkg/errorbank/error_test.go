package errorbank_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/Additional-Code/servio/pkg/errorbank"
)

func TestStatusCodes(t *testing.T) {
	cases := []struct {
		err    *errorbank.AppError
		status int
		code   codes.Code
	}{
		{errorbank.BadRequest("x"), http.StatusBadRequest, codes.InvalidArgument},
		{errorbank.NotFound("x"), http.StatusNotFound, codes.NotFound},
		{errorbank.Conflict("x"), http.StatusConflict, codes.AlreadyExists},
		{errorbank.InvalidTransition("x"), http.StatusConflict, codes.FailedPrecondition},
		{errorbank.ValidationFailed("x"), http.StatusUnprocessableEntity, codes.InvalidArgument},
		{errorbank.PreconditionFailed("x"), http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{errorbank.PermissionDenied("x"), http.StatusForbidden, codes.PermissionDenied},
		{errorbank.Unauthenticated("x"), http.StatusUnauthorized, codes.Unauthenticated},
		{errorbank.RateLimited("x"), http.StatusTooManyRequests, codes.ResourceExhausted},
		{errorbank.Internal("x"), http.StatusInternalServerError, codes.Internal},
	}
	for _, tc := range cases {
		t.Run(string(tc.err.Kind()), func(t *testing.T) {
			assert.Equal(t, tc.status, tc.err.StatusCode())
			assert.Equal(t, tc.code, tc.err.GRPCCode())
		})
	}
}

func TestFromWrapsForeignErrors(t *testing.T) {
	cause := errors.New("boom")
	appErr := errorbank.From(cause)
	require.NotNil(t, appErr)
	assert.Equal(t, errorbank.KindInternal, appErr.Kind())
	assert.ErrorIs(t, appErr, cause)

	assert.Nil(t, errorbank.From(nil))
}

func TestFromKeepsWrappedAppError(t *testing.T) {
	original := errorbank.PreconditionFailed("blocked", errorbank.WithDetail("active_orders_count", 2))
	wrapped := fmt.Errorf("deactivate: %w", original)

	appErr := errorbank.From(wrapped)
	assert.Same(t, original, appErr)
	assert.Equal(t, 2, appErr.Details()["active_orders_count"])
	assert.True(t, errorbank.Is(wrapped, errorbank.KindPreconditionFailed))
	assert.False(t, errorbank.Is(wrapped, errorbank.KindConflict))
}

func TestWithDetailsMerges(t *testing.T) {
	appErr := errorbank.Conflict("dup",
		errorbank.WithDetail("field", "username"),
		errorbank.WithDetails(map[string]any{"value": "alice"}),
	)
	assert.Equal(t, map[string]any{"field": "username", "value": "alice"}, appErr.Details())
	assert.Equal(t, "dup", appErr.Error())
}
