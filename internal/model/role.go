package model

import "fmt"

// Role is the coarse authorization tier of an account.  The numeric values
// are part of the wire format (JSON bodies and JWT claims carry the bare
// integer) so they must never be renumbered.
type Role uint8

const (
	RoleTrainee        Role = 1  // facility user; may only log in through a temporary password
	RoleInstructor     Role = 4  // staff; lowest tier allowed to use the admin portal
	RoleLeadInstructor Role = 5  // staff lead
	RoleAdmin          Role = 9  // company administrator
	RoleSuperAdmin     Role = 10 // platform operator
)

// RoleStaff is the minimum tier allowed to authenticate with a username and password.
const RoleStaff = RoleInstructor

var roleNames = map[Role]string{
	RoleTrainee:        "trainee",
	RoleInstructor:     "instructor",
	RoleLeadInstructor: "lead_instructor",
	RoleAdmin:          "admin",
	RoleSuperAdmin:     "super_admin",
}

// Valid reports whether r is one of the known tiers.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// AtLeast reports whether r ranks at or above min.  Unknown roles never pass.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && r >= min
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// ParseRole converts a raw integer tier, as stored in the database or
// decoded from a token, into a Role.
func ParseRole(v int64) (Role, error) {
	if v < 0 || v > 255 {
		return 0, fmt.Errorf("role %d out of range", v)
	}
	r := Role(v)
	if !r.Valid() {
		return 0, fmt.Errorf("unknown role %d", v)
	}
	return r, nil
}
