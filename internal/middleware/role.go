package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/training-portal/internal/model"
)

// RequireRole returns a middleware that lets a request through only when
// the authenticated role ranks at least min.  It must run after JWTAuth;
// without claims the request is rejected as forbidden.
func RequireRole(min model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !RoleFrom(c).AtLeast(min) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "insufficient role"})
			}
			return next(c)
		}
	}
}

// Convenience guards for the tiers handlers use most.
var (
	RequireTrainee        = RequireRole(model.RoleTrainee)
	RequireInstructor     = RequireRole(model.RoleInstructor)
	RequireLeadInstructor = RequireRole(model.RoleLeadInstructor)
	RequireAdmin          = RequireRole(model.RoleAdmin)
	RequireSuperAdmin     = RequireRole(model.RoleSuperAdmin)
)
