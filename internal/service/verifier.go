package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/training-portal/internal/model"
	"github.com/iliyamo/training-portal/internal/repository"
	"github.com/iliyamo/training-portal/internal/utils"
)

// Verifier checks admin usernames and passwords.
type Verifier struct {
	accounts  AccountStore
	dummyHash string
	opts      Options
}

// NewVerifier prepares a verifier whose decoy hash uses the same bcrypt
// cost as real credentials, so that unknown usernames take as long to
// reject as wrong passwords.
func NewVerifier(accounts AccountStore, bcryptCost int, opts Options) (*Verifier, error) {
	dummy, err := utils.HashPassword("decoy-password-never-matches", bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("preparing decoy hash: %w", err)
	}
	return &Verifier{accounts: accounts, dummyHash: dummy, opts: opts.withDefaults()}, nil
}

// Verify returns the account behind username when password matches and the
// account is an active staff member.  Every rejection is
// ErrInvalidCredentials.  On success last_login_at is updated; a failure to
// do so is logged and does not fail the login.
func (v *Verifier) Verify(ctx context.Context, username, password string) (model.AccountView, error) {
	ctx, cancel := context.WithTimeout(ctx, v.opts.Timeout)
	defer cancel()

	cred, acc, err := v.accounts.GetStaffCredential(ctx, username, model.RoleStaff)
	if errors.Is(err, repository.ErrNotFound) {
		_ = utils.CheckPassword(v.dummyHash, password)
		return model.AccountView{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.AccountView{}, internalErr(v.opts.Log, "verify", err)
	}
	if err := utils.CheckPassword(cred.PasswordHash, password); err != nil {
		if !errors.Is(err, utils.ErrPasswordMismatch) {
			// Still a plain rejection for the caller; the row needs fixing.
			v.opts.Log.WithError(err).WithField("user_id", cred.UserID).Error("stored credential unusable")
		}
		return model.AccountView{}, ErrInvalidCredentials
	}
	if !acc.Active() || !acc.Role.AtLeast(model.RoleStaff) {
		return model.AccountView{}, ErrInvalidCredentials
	}

	if err := v.accounts.TouchLastLogin(ctx, acc.ID, v.opts.Now()); err != nil {
		v.opts.Log.WithError(err).WithField("user_id", acc.ID).Warn("update last_login_at failed")
	}
	return acc.View(), nil
}
