package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/training-portal/internal/model"
)

// TempPasswordRepo stores one-time kiosk login codes.
type TempPasswordRepo struct{ DB *sql.DB }

func NewTempPasswordRepo(db *sql.DB) *TempPasswordRepo { return &TempPasswordRepo{DB: db} }

// Issue invalidates every unused code of tp.UserID and inserts tp, in one
// transaction.  It returns the new row id.
func (r *TempPasswordRepo) Issue(ctx context.Context, tp model.TemporaryPassword) (id uint64, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		"UPDATE temporary_passwords SET is_used=1 WHERE user_id=? AND is_used=0",
		tp.UserID); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO temporary_passwords (user_id, temp_password, issued_at, expires_at, is_used) VALUES (?,?,?,?,0)",
		tp.UserID, tp.TempPassword, tp.IssuedAt, tp.ExpiresAt)
	if err != nil {
		return 0, err
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return uint64(lastID), nil
}

// Consume marks the newest valid unused code of userID as used and returns
// it.  The claim is a single conditional UPDATE; LAST_INSERT_ID(id) makes
// MySQL report the claimed row's id back to the winning connection.  When
// nothing was pending the boolean is false and the error nil.
func (r *TempPasswordRepo) Consume(ctx context.Context, userID uint64, now time.Time) (model.TemporaryPassword, bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE temporary_passwords SET is_used=1, id=LAST_INSERT_ID(id)"+
			" WHERE user_id=? AND is_used=0 AND expires_at > ? ORDER BY id DESC LIMIT 1",
		userID, now)
	if err != nil {
		return model.TemporaryPassword{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.TemporaryPassword{}, false, err
	}
	if n == 0 {
		return model.TemporaryPassword{}, false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.TemporaryPassword{}, false, err
	}
	tp, err := r.getByID(ctx, uint64(id))
	if err != nil {
		return model.TemporaryPassword{}, false, err
	}
	return tp, true, nil
}

// PurgeStale deletes codes issued before cutoff that are used or expired.
func (r *TempPasswordRepo) PurgeStale(ctx context.Context, cutoff, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM temporary_passwords WHERE issued_at < ? AND (is_used=1 OR expires_at <= ?)",
		cutoff, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *TempPasswordRepo) getByID(ctx context.Context, id uint64) (model.TemporaryPassword, error) {
	var tp model.TemporaryPassword
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, temp_password, issued_at, expires_at, is_used FROM temporary_passwords WHERE id=? LIMIT 1",
		id).Scan(&tp.ID, &tp.UserID, &tp.TempPassword, &tp.IssuedAt, &tp.ExpiresAt, &tp.IsUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TemporaryPassword{}, ErrNotFound
	}
	return tp, err
}
