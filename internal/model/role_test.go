package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_AtLeast(t *testing.T) {
	tests := []struct {
		role Role
		min  Role
		want bool
	}{
		{RoleTrainee, RoleTrainee, true},
		{RoleTrainee, RoleInstructor, false},
		{RoleInstructor, RoleStaff, true},
		{RoleLeadInstructor, RoleInstructor, true},
		{RoleAdmin, RoleSuperAdmin, false},
		{RoleSuperAdmin, RoleAdmin, true},
		{Role(7), RoleInstructor, false},
		{Role(200), RoleTrainee, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.role.AtLeast(tt.min), "%s >= %s", tt.role, tt.min)
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(9)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)
	assert.Equal(t, "admin", r.String())

	for _, bad := range []int64{-1, 0, 2, 6, 11, 256} {
		_, err := ParseRole(bad)
		assert.Error(t, err, "value %d", bad)
	}
	assert.Equal(t, "role(3)", Role(3).String())
}

func TestRole_WireFormIsInteger(t *testing.T) {
	b, err := json.Marshal(AccountView{UserID: 1, Role: RoleLeadInstructor})
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":1,"role":5,"company_id":0,"login_code":""}`, string(b))
}
