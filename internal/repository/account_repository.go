package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/training-portal/internal/model"
)

// AccountRepo reads accounts and their admin credentials.  The users table
// belongs to the user-management side of the portal; the only column written
// from here is last_login_at.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

const accountColumns = "u.id, u.role, u.status, u.login_code, u.company_id, u.last_login_at"

// GetStaffCredential fetches the credential row for username together with
// its account, restricted to active accounts ranked at least minRole.
// Unknown usernames, inactive accounts and low-ranked accounts all yield
// ErrNotFound so the caller cannot tell them apart.
func (r *AccountRepo) GetStaffCredential(ctx context.Context, username string, minRole model.Role) (model.AdminCredential, model.Account, error) {
	var (
		cred model.AdminCredential
		row  accountRow
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT ac.user_id, ac.username, ac.password_hash, "+accountColumns+
			" FROM admin_credentials ac JOIN users u ON u.id = ac.user_id"+
			" WHERE ac.username=? AND u.status=? AND u.role>=? LIMIT 1",
		username, model.StatusActive, uint8(minRole)).
		Scan(&cred.UserID, &cred.Username, &cred.PasswordHash,
			&row.id, &row.role, &row.status, &row.loginCode, &row.companyID, &row.lastLoginAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AdminCredential{}, model.Account{}, ErrNotFound
	}
	if err != nil {
		return model.AdminCredential{}, model.Account{}, err
	}
	acc, err := row.account()
	if err != nil {
		return model.AdminCredential{}, model.Account{}, err
	}
	return cred, acc, nil
}

// GetByID fetches an account by id regardless of its status.
func (r *AccountRepo) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	return r.getOne(ctx, "SELECT "+accountColumns+" FROM users u WHERE u.id=? LIMIT 1", id)
}

// GetByLoginCode fetches an account by its login code regardless of status.
func (r *AccountRepo) GetByLoginCode(ctx context.Context, loginCode string) (model.Account, error) {
	return r.getOne(ctx, "SELECT "+accountColumns+" FROM users u WHERE u.login_code=? LIMIT 1", loginCode)
}

// TouchLastLogin records a successful login.
func (r *AccountRepo) TouchLastLogin(ctx context.Context, id uint64, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET last_login_at=? WHERE id=?", at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AccountRepo) getOne(ctx context.Context, query string, arg any) (model.Account, error) {
	var row accountRow
	err := r.DB.QueryRowContext(ctx, query, arg).
		Scan(&row.id, &row.role, &row.status, &row.loginCode, &row.companyID, &row.lastLoginAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, ErrNotFound
	}
	if err != nil {
		return model.Account{}, err
	}
	return row.account()
}

// accountRow is the nullable scan target for accountColumns.
type accountRow struct {
	id          uint64
	role        int64
	status      int
	loginCode   string
	companyID   sql.NullInt64
	lastLoginAt sql.NullTime
}

func (r accountRow) account() (model.Account, error) {
	role, err := model.ParseRole(r.role)
	if err != nil {
		return model.Account{}, fmt.Errorf("account %d: %w", r.id, err)
	}
	acc := model.Account{ID: r.id, Role: role, Status: r.status, LoginCode: r.loginCode}
	if r.companyID.Valid {
		acc.CompanyID = uint64(r.companyID.Int64)
	}
	if r.lastLoginAt.Valid {
		t := r.lastLoginAt.Time
		acc.LastLoginAt = &t
	}
	return acc, nil
}
