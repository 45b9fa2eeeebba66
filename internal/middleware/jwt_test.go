package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/training-portal/internal/model"
	"github.com/iliyamo/training-portal/internal/utils"
)

var mwNow = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func testIssuer(now time.Time) *utils.Issuer {
	return utils.NewIssuer("mw-secret", 15*time.Minute, 0).WithClock(func() time.Time { return now })
}

func issue(t *testing.T, role model.Role) string {
	t.Helper()
	at, err := testIssuer(mwNow).IssueAccessToken(model.AccountView{UserID: 5, Role: role, CompanyID: 2, LoginCode: "C-5"})
	require.NoError(t, err)
	return at.Token
}

// serve runs h behind mws and returns the recorder.
func serve(t *testing.T, header string, h echo.HandlerFunc, mws ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.GET("/protected", h, mws...)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	code, _ := body["error"].(string)
	return code
}

func okHandler(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

func TestJWTAuth_AttachesClaims(t *testing.T) {
	var got *utils.Claims
	h := func(c echo.Context) error {
		got = ClaimsFrom(c)
		assert.Equal(t, uint64(5), c.Get(ContextUserID))
		assert.Equal(t, model.RoleAdmin, c.Get(ContextRole))
		return c.NoContent(http.StatusNoContent)
	}

	rec := serve(t, "Bearer "+issue(t, model.RoleAdmin), h, JWTAuth(testIssuer(mwNow.Add(time.Minute))))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "C-5", got.LoginCode)
	assert.Equal(t, uint64(2), got.CompanyID)
}

func TestJWTAuth_Failures(t *testing.T) {
	valid := issue(t, model.RoleAdmin)
	tests := []struct {
		name   string
		header string
		now    time.Time
		code   string
	}{
		{"no header", "", mwNow, "unauthenticated"},
		{"wrong scheme", "Basic " + valid, mwNow, "unauthenticated"},
		{"empty bearer", "Bearer ", mwNow, "unauthenticated"},
		{"garbage", "Bearer abc.def.ghi", mwNow, "invalid_token"},
		{"expired", "Bearer " + valid, mwNow.Add(15 * time.Minute), "token_expired"},
		{"long expired", "Bearer " + valid, mwNow.Add(48 * time.Hour), "token_expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, tt.header, okHandler, JWTAuth(testIssuer(tt.now)))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestJWTAuth_LowercaseScheme(t *testing.T) {
	rec := serve(t, "bearer "+issue(t, model.RoleTrainee), okHandler, JWTAuth(testIssuer(mwNow)))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireRole(t *testing.T) {
	auth := JWTAuth(testIssuer(mwNow))
	tests := []struct {
		role model.Role
		min  model.Role
		want int
	}{
		{model.RoleTrainee, model.RoleTrainee, http.StatusNoContent},
		{model.RoleTrainee, model.RoleInstructor, http.StatusForbidden},
		{model.RoleInstructor, model.RoleInstructor, http.StatusNoContent},
		{model.RoleLeadInstructor, model.RoleAdmin, http.StatusForbidden},
		{model.RoleSuperAdmin, model.RoleAdmin, http.StatusNoContent},
		{model.RoleAdmin, model.RoleSuperAdmin, http.StatusForbidden},
	}
	for _, tt := range tests {
		rec := serve(t, "Bearer "+issue(t, tt.role), okHandler, auth, RequireRole(tt.min))
		assert.Equal(t, tt.want, rec.Code, "%s vs min %s", tt.role, tt.min)
		if tt.want == http.StatusForbidden {
			assert.Equal(t, "forbidden", errorCode(t, rec))
		}
	}
}

func TestRequireRole_WithoutAuth(t *testing.T) {
	rec := serve(t, "", okHandler, RequireTrainee)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
