package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/training-portal/internal/model"
	"github.com/iliyamo/training-portal/internal/utils"
)

// Context keys set by JWTAuth.
const (
	ContextClaims = "claims"
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// TokenVerifier is satisfied by *utils.Issuer.
type TokenVerifier interface {
	VerifyAccessToken(raw string) (*utils.Claims, error)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and stores its claims in the request context.  Failures are answered with
// 401 and an error code the client can act on: "unauthenticated" when no
// token was sent, "token_expired" when it should refresh, "invalid_token"
// otherwise.
func JWTAuth(v TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			scheme, raw, found := strings.Cut(auth, " ")
			raw = strings.TrimSpace(raw)
			if !found || !strings.EqualFold(scheme, "Bearer") || raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated", "message": "missing bearer token"})
			}

			claims, err := v.VerifyAccessToken(raw)
			if errors.Is(err, utils.ErrTokenExpired) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token_expired", "message": "access token expired"})
			}
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_token", "message": "invalid access token"})
			}

			c.Set(ContextClaims, claims)
			c.Set(ContextUserID, claims.UserID)
			c.Set(ContextRole, claims.Role)
			return next(c)
		}
	}
}

// ClaimsFrom returns the claims stored by JWTAuth, or nil when the route is
// not behind it.
func ClaimsFrom(c echo.Context) *utils.Claims {
	claims, _ := c.Get(ContextClaims).(*utils.Claims)
	return claims
}

// RoleFrom returns the caller's role, or zero for anonymous requests.
func RoleFrom(c echo.Context) model.Role {
	if claims := ClaimsFrom(c); claims != nil {
		return claims.Role
	}
	return 0
}
