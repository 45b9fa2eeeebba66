package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/training-portal/internal/middleware"
	"github.com/iliyamo/training-portal/internal/model"
	"github.com/iliyamo/training-portal/internal/service"
)

// Sessions is the subset of *service.SessionService used by AuthHandler.
type Sessions interface {
	Login(ctx context.Context, username, password string) (service.Session, error)
	Refresh(ctx context.Context, raw string) (service.Session, error)
	Logout(ctx context.Context, raw string) error
	LogoutAll(ctx context.Context, userID uint64) (int64, error)
}

// AuthHandler serves /v1/auth.
type AuthHandler struct {
	Sessions Sessions
}

func NewAuthHandler(s Sessions) *AuthHandler { return &AuthHandler{Sessions: s} }

// ----- DTOs -----

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResp struct {
	AccessToken      string     `json:"access_token"`
	RefreshToken     string     `json:"refresh_token"`
	AccessExpiresAt  time.Time  `json:"access_expires_at"`
	RefreshExpiresAt *time.Time `json:"refresh_expires_at,omitempty"`
	UserID           uint64     `json:"user_id"`
	Role             model.Role `json:"role"`
	CompanyID        uint64     `json:"company_id"`
	LoginCode        string     `json:"login_code"`
}

func toSessionResp(s service.Session) sessionResp {
	return sessionResp{
		AccessToken:      s.Access.Token,
		RefreshToken:     s.Refresh.Raw, // raw back to client
		AccessExpiresAt:  s.Access.Exp,
		RefreshExpiresAt: s.Refresh.Exp,
		UserID:           s.Account.UserID,
		Role:             s.Account.Role,
		CompanyID:        s.Account.CompanyID,
		LoginCode:        s.Account.LoginCode,
	}
}

// Login: verify and return new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return badRequest(c, "username/password required")
	}

	sess, err := h.Sessions.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResp(sess))
}

// Refresh: rotate the refresh token and return a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw, ok := bindRefresh(c)
	if !ok {
		return badRequest(c, "refresh_token required")
	}
	sess, err := h.Sessions.Refresh(c.Request().Context(), raw)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResp(sess))
}

// Logout: revoke one refresh token.  Succeeds whether or not the token
// still exists.
func (h *AuthHandler) Logout(c echo.Context) error {
	raw, ok := bindRefresh(c)
	if !ok {
		return badRequest(c, "refresh_token required")
	}
	if err := h.Sessions.Logout(c.Request().Context(), raw); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// LogoutAll: revoke every refresh token of the caller (protected).
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated", "message": "missing bearer token"})
	}
	n, err := h.Sessions.LogoutAll(c.Request().Context(), claims.UserID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out everywhere", "revoked": n})
}

// Me: the caller's identity as carried by the access token.
func (h *AuthHandler) Me(c echo.Context) error {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated", "message": "missing bearer token"})
	}
	return c.JSON(http.StatusOK, model.AccountView{
		UserID:    claims.UserID,
		Role:      claims.Role,
		CompanyID: claims.CompanyID,
		LoginCode: claims.LoginCode,
	})
}

func bindRefresh(c echo.Context) (string, bool) {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return "", false
	}
	raw := strings.TrimSpace(req.RefreshToken)
	return raw, raw != ""
}
