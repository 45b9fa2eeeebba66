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

// TempPasswords is the subset of *service.TempPasswordService used by
// RemoteHandler.
type TempPasswords interface {
	Issue(ctx context.Context, actorID, userID uint64) (service.IssuedTempPassword, error)
	Consume(ctx context.Context, loginCode string) (model.TemporaryPassword, bool, error)
	Notify(ctx context.Context, actorID uint64, loginCode, message string) error
	PopNotification(ctx context.Context, loginCode string) (model.Notification, bool, error)
}

// RemoteHandler serves the remote-support (kiosk) endpoints under /v1/remote.
type RemoteHandler struct {
	Temp TempPasswords
}

func NewRemoteHandler(t TempPasswords) *RemoteHandler { return &RemoteHandler{Temp: t} }

type issueReq struct {
	UserID uint64 `json:"user_id"`
}

type notifyReq struct {
	LoginCode string `json:"login_code"`
	Message   string `json:"message"`
}

// checkResp keeps the camelCase keys the kiosk client already parses.
type checkResp struct {
	HasTempPassword bool       `json:"hasTempPassword"`
	TempPassword    string     `json:"tempPassword,omitempty"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
}

type notificationResp struct {
	HasNotification bool                `json:"hasNotification"`
	Notification    *model.Notification `json:"notification,omitempty"`
}

// IssueTempPassword: staff issue a one-time code for a trainee.
func (h *RemoteHandler) IssueTempPassword(c echo.Context) error {
	var req issueReq
	if err := c.Bind(&req); err != nil || req.UserID == 0 {
		return badRequest(c, "user_id required")
	}
	actor := middleware.ClaimsFrom(c)
	var actorID uint64
	if actor != nil {
		actorID = actor.UserID
	}
	issued, err := h.Temp.Issue(c.Request().Context(), actorID, req.UserID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, issued)
}

// CheckTempPassword: kiosk polling endpoint.  A hit consumes the code.
func (h *RemoteHandler) CheckTempPassword(c echo.Context) error {
	code := strings.TrimSpace(c.Param("loginCode"))
	if code == "" {
		return badRequest(c, "loginCode required")
	}
	tp, ok, err := h.Temp.Consume(c.Request().Context(), code)
	if err != nil {
		return writeServiceError(c, err)
	}
	if !ok {
		return c.JSON(http.StatusOK, checkResp{HasTempPassword: false})
	}
	exp := tp.ExpiresAt
	return c.JSON(http.StatusOK, checkResp{HasTempPassword: true, TempPassword: tp.TempPassword, ExpiresAt: &exp})
}

// Notify: staff tell a waiting kiosk to pick up its code.
func (h *RemoteHandler) Notify(c echo.Context) error {
	var req notifyReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.LoginCode = strings.TrimSpace(req.LoginCode)
	if req.LoginCode == "" {
		return badRequest(c, "login_code required")
	}
	var actorID uint64
	if actor := middleware.ClaimsFrom(c); actor != nil {
		actorID = actor.UserID
	}
	if err := h.Temp.Notify(c.Request().Context(), actorID, req.LoginCode, req.Message); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "notification queued"})
}

// GetNotification: kiosk pulls its pending notification, at most once.
func (h *RemoteHandler) GetNotification(c echo.Context) error {
	code := strings.TrimSpace(c.Param("loginCode"))
	if code == "" {
		return badRequest(c, "loginCode required")
	}
	n, ok, err := h.Temp.PopNotification(c.Request().Context(), code)
	if err != nil {
		return writeServiceError(c, err)
	}
	if !ok {
		return c.JSON(http.StatusOK, notificationResp{HasNotification: false})
	}
	return c.JSON(http.StatusOK, notificationResp{HasNotification: true, Notification: &n})
}
