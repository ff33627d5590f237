package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/pkg/errorbank"
)

func TestErrorHandlerUsesEnvelope(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = errorHandler(zap.NewNop())
	e.GET("/orders", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/explode", func(echo.Context) error { return errorbank.Conflict("already taken") })

	cases := []struct {
		method string
		path   string
		status int
		kind   errorbank.Kind
	}{
		{http.MethodGet, "/nowhere", http.StatusNotFound, errorbank.KindNotFound},
		{http.MethodDelete, "/orders", http.StatusMethodNotAllowed, errorbank.KindBadRequest},
		{http.MethodGet, "/explode", http.StatusConflict, errorbank.KindConflict},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, tc.status, rec.Code)

			var body struct {
				Success   bool   `json:"success"`
				ErrorCode string `json:"error_code"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, string(tc.kind), body.ErrorCode)
		})
	}
}
