package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/training-portal/internal/service"
)

// writeServiceError maps service errors onto HTTP responses.  Internal
// failures were already logged with their cause, so the client only sees a
// generic message.
func writeServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_credentials", "message": "username or password is incorrect"})
	case errors.Is(err, service.ErrInvalidRefreshToken):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_refresh_token", "message": "please log in again"})
	case errors.Is(err, service.ErrAccountDisabled):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account_disabled", "message": "account is disabled"})
	case errors.Is(err, service.ErrAccountNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "account_not_found", "message": "account not found"})
	case errors.Is(err, service.ErrNotTrainee):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "not_trainee", "message": "temporary passwords are only issued to active trainees"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "internal server error"})
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "bad_request", "message": msg})
}
