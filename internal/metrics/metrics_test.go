package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RecordsRouteTemplate(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/v1/remote/check-temp-password/:loginCode", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"hasTempPassword": false})
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/remote/check-temp-password/TR-0042", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(
		http.MethodGet, "/v1/remote/check-temp-password/:loginCode", "200"))
	assert.Equal(t, float64(1), got)
}

func TestHandler_ExposesCounters(t *testing.T) {
	m := New()
	m.LoginsTotal.WithLabelValues("success").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `portal_auth_logins_total{outcome="success"} 1`))
}
