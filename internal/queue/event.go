// Package queue carries auth audit events over RabbitMQ: a publisher used by
// the services and a background consumer that appends them to a log file.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Event types published by the session and temporary password services.
const (
	EventLoginSucceeded        = "login.succeeded"
	EventLoginFailed           = "login.failed"
	EventRefreshRotated        = "refresh.rotated"
	EventRefreshRejected       = "refresh.rejected"
	EventLogout                = "logout"
	EventLogoutAll             = "logout.all"
	EventTempPasswordIssued    = "temp_password.issued"
	EventTempPasswordConsumed  = "temp_password.consumed"
	EventNotificationDelivered = "notification.delivered"
)

// AuthEvent is one entry in the authentication audit trail.  It never
// carries passwords or tokens; TokenFingerprint is a short prefix of the
// stored token hash, enough to correlate entries.
type AuthEvent struct {
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	UserID           uint64    `json:"user_id,omitempty"`
	LoginCode        string    `json:"login_code,omitempty"`
	ActorID          uint64    `json:"actor_id,omitempty"`
	TokenFingerprint string    `json:"token_fp,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// NewAuthEvent stamps a fresh event id.
func NewAuthEvent(typ string, userID uint64, at time.Time) AuthEvent {
	return AuthEvent{ID: uuid.NewString(), Type: typ, UserID: userID, OccurredAt: at.UTC()}
}
