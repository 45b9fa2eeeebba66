package model

import "time"

// Account status values as stored in users.status.
const (
	StatusInactive = 0
	StatusActive   = 1
)

// Account is the subset of a `users` row this service reads.  Accounts are
// owned by the user-management side of the portal; the session core only
// ever writes last_login_at.
type Account struct {
	ID          uint64     // users.id
	Role        Role       // users.role
	Status      int        // users.status (1 = active)
	LoginCode   string     // users.login_code, unique human readable code
	CompanyID   uint64     // users.company_id, 0 when the account has no company
	LastLoginAt *time.Time // users.last_login_at (nullable)
}

// Active reports whether the account may authenticate.
func (a Account) Active() bool { return a.Status == StatusActive }

// AdminCredential models a row in `admin_credentials`.  There is at most
// one credential per account and usernames are globally unique.
type AdminCredential struct {
	UserID       uint64 // admin_credentials.user_id
	Username     string // admin_credentials.username
	PasswordHash string // admin_credentials.password_hash (bcrypt)
}

// AccountView is what a successful credential check hands to the session
// layer and what ends up inside the access token.
type AccountView struct {
	UserID    uint64 `json:"user_id"`
	Role      Role   `json:"role"`
	CompanyID uint64 `json:"company_id"`
	LoginCode string `json:"login_code"`
}

// View projects an Account onto an AccountView.
func (a Account) View() AccountView {
	return AccountView{UserID: a.ID, Role: a.Role, CompanyID: a.CompanyID, LoginCode: a.LoginCode}
}
