// Package repository holds the MySQL and Redis persistence for accounts,
// refresh tokens, temporary passwords and kiosk notifications.  Every method
// takes the caller's context so that request deadlines reach the driver.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no live row: an unknown
// username or login code, a deleted or expired refresh token, or a refresh
// token that was already rotated by a concurrent request.
var ErrNotFound = errors.New("not found")
