package model

import "time"

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the opaque token is persisted.  A nil ExpiresAt means the
// token lives until it is rotated or logged out.
type RefreshToken struct {
	TokenHash string     // refresh_tokens.token_hash
	UserID    uint64     // refresh_tokens.user_id
	IssuedAt  time.Time  // refresh_tokens.issued_at
	ExpiresAt *time.Time // refresh_tokens.expires_at (nullable)
}

// TemporaryPassword models a row in `temporary_passwords`.
type TemporaryPassword struct {
	ID           uint64    // temporary_passwords.id
	UserID       uint64    // temporary_passwords.user_id
	TempPassword string    // temporary_passwords.temp_password
	IssuedAt     time.Time // temporary_passwords.issued_at
	ExpiresAt    time.Time // temporary_passwords.expires_at
	IsUsed       bool      // temporary_passwords.is_used
}

// Notification is a pending remote-support hand-off for a kiosk, keyed by
// the trainee's login code.  It never carries the password itself.
type Notification struct {
	LoginCode string    `json:"login_code"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationKindTempPassword signals that a temporary password is waiting.
const NotificationKindTempPassword = "temp_password"
