package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/training-portal/internal/model"
)

// TokenRepo persists refresh tokens.  Only the SHA-256 hash of the opaque
// token is stored; a NULL expires_at means the token never expires on its
// own.  Revocation is a hard delete.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

const liveToken = "(expires_at IS NULL OR expires_at > ?)"

// Replace starts a new token family for next.UserID: every token the user
// holds is deleted and next is inserted in one transaction.  The users row
// is locked first so concurrent logins of the same account queue up instead
// of interleaving their deletes and inserts.  It reports how many tokens
// were revoked.
func (r *TokenRepo) Replace(ctx context.Context, next model.RefreshToken) (revoked int64, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var id uint64
	err = tx.QueryRowContext(ctx, "SELECT id FROM users WHERE id=? FOR UPDATE", next.UserID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE user_id=?", next.UserID)
	if err != nil {
		return 0, err
	}
	if revoked, err = res.RowsAffected(); err != nil {
		return 0, err
	}
	if err = r.saveTx(ctx, tx, next); err != nil {
		return 0, err
	}
	return revoked, tx.Commit()
}

// Lookup returns the owner of a live token.  Expired rows are treated as
// absent even before the cleanup job removes them.
func (r *TokenRepo) Lookup(ctx context.Context, tokenHash string, now time.Time) (uint64, error) {
	var userID uint64
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id FROM refresh_tokens WHERE token_hash=? AND "+liveToken+" LIMIT 1",
		tokenHash, now).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return userID, err
}

// Delete removes a single token.  Deleting an unknown token is not an error.
func (r *TokenRepo) Delete(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE token_hash=?", tokenHash)
	return err
}

// DeleteAll removes every token of the user and reports how many went away.
func (r *TokenRepo) DeleteAll(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE user_id=?", userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Rotate atomically replaces oldHash with next.  The delete must remove
// exactly one live row owned by next.UserID; when it removes none (already
// rotated, logged out or expired) the transaction is rolled back and
// ErrNotFound is returned, so at most one concurrent caller wins.
func (r *TokenRepo) Rotate(ctx context.Context, oldHash string, next model.RefreshToken) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE token_hash=? AND user_id=? AND "+liveToken,
		oldHash, next.UserID, next.IssuedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	if err = r.saveTx(ctx, tx, next); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteExpired removes tokens whose expiry has passed.
func (r *TokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at IS NOT NULL AND expires_at <= ?", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *TokenRepo) saveTx(ctx context.Context, ex execer, t model.RefreshToken) error {
	var exp sql.NullTime
	if t.ExpiresAt != nil {
		exp = sql.NullTime{Time: *t.ExpiresAt, Valid: true}
	}
	_, err := ex.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, issued_at, expires_at) VALUES (?,?,?,?)",
		t.UserID, t.TokenHash, t.IssuedAt, exp)
	return err
}
