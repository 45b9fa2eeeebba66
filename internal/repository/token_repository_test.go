package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/training-portal/internal/model"
)

var tokenNow = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func TestTokenRepo_Replace(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)
	exp := tokenNow.Add(time.Hour)

	lock := regexp.QuoteMeta("SELECT id FROM users WHERE id=? FOR UPDATE")
	wipe := regexp.QuoteMeta("DELETE FROM refresh_tokens WHERE user_id=?")
	insert := regexp.QuoteMeta("INSERT INTO refresh_tokens (user_id, token_hash, issued_at, expires_at) VALUES (?,?,?,?)")

	mock.ExpectBegin()
	mock.ExpectQuery(lock).WithArgs(7).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec(wipe).WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(insert).WithArgs(7, "h1", tokenNow, exp).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectQuery(lock).WithArgs(7).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec(wipe).WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insert).WithArgs(7, "h2", tokenNow, nil).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	n, err := repo.Replace(context.Background(), model.RefreshToken{TokenHash: "h1", UserID: 7, IssuedAt: tokenNow, ExpiresAt: &exp})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	n, err = repo.Replace(context.Background(), model.RefreshToken{TokenHash: "h2", UserID: 7, IssuedAt: tokenNow})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTokenRepo_ReplaceRollsBack(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users WHERE id=? FOR UPDATE")).
		WithArgs(9).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users WHERE id=? FOR UPDATE")).
		WithArgs(7).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens WHERE user_id=?")).
		WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	_, err := repo.Replace(context.Background(), model.RefreshToken{TokenHash: "h", UserID: 9, IssuedAt: tokenNow})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Replace(context.Background(), model.RefreshToken{TokenHash: "h", UserID: 7, IssuedAt: tokenNow})
	assert.EqualError(t, err, "duplicate key")
}

func TestTokenRepo_Lookup(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)

	q := regexp.QuoteMeta("SELECT user_id FROM refresh_tokens WHERE token_hash=? AND (expires_at IS NULL OR expires_at > ?)")
	mock.ExpectQuery(q).WithArgs("live", tokenNow).WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(7))
	mock.ExpectQuery(q).WithArgs("gone", tokenNow).WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	uid, err := repo.Lookup(context.Background(), "live", tokenNow)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), uid)

	_, err = repo.Lookup(context.Background(), "gone", tokenNow)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenRepo_DeleteAndDeleteAll(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens WHERE token_hash=?")).
		WithArgs("unknown").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens WHERE user_id=?")).
		WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.Delete(context.Background(), "unknown"))
	n, err := repo.DeleteAll(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestTokenRepo_Rotate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)
	next := model.RefreshToken{TokenHash: "new", UserID: 7, IssuedAt: tokenNow}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens WHERE token_hash=? AND user_id=?")).
		WithArgs("old", 7, tokenNow).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO refresh_tokens").
		WithArgs(7, "new", tokenNow, nil).WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Rotate(context.Background(), "old", next))
}

func TestTokenRepo_Rotate_LostRace(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM refresh_tokens WHERE token_hash").
		WithArgs("old", 7, tokenNow).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Rotate(context.Background(), "old", model.RefreshToken{TokenHash: "new", UserID: 7, IssuedAt: tokenNow})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenRepo_Rotate_InsertFailureRollsBack(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM refresh_tokens").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnError(errors.New("duplicate"))
	mock.ExpectRollback()

	err := repo.Rotate(context.Background(), "old", model.RefreshToken{TokenHash: "new", UserID: 7, IssuedAt: tokenNow})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestTokenRepo_DeleteExpired(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens WHERE expires_at IS NOT NULL AND expires_at <= ?")).
		WithArgs(tokenNow).WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteExpired(context.Background(), tokenNow)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
