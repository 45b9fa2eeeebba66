package middleware

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()

	rec := serve(t, "", func(c echo.Context) error {
		c.Set(ContextUserID, uint64(9))
		return echo.NewHTTPError(http.StatusTeapot, "short and stout")
	}, RequestLogger(logger))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "/protected", entry.Data["path"])
	assert.Equal(t, http.StatusTeapot, entry.Data["status"])
	assert.Equal(t, uint64(9), entry.Data["user_id"])
}
