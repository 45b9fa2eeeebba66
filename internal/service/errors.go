// Package service implements the credential and session lifecycle: admin
// login, refresh token rotation, logout, and the one-time temporary
// password flow used by kiosks.
package service

import "errors"

// Errors returned by the services.  Handlers translate them to HTTP status
// codes; anything wrapping ErrInternal is an infrastructure failure whose
// cause has already been logged.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrAccountDisabled     = errors.New("account disabled")
	ErrAccountNotFound     = errors.New("account not found")
	ErrNotTrainee          = errors.New("account is not an active trainee")
	ErrInternal            = errors.New("internal error")
)
