// Package servicetest provides in-memory stores with the same contracts as
// the MySQL and Redis repositories, for tests of the services and handlers.
package servicetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/training-portal/internal/model"
	"github.com/iliyamo/training-portal/internal/queue"
	"github.com/iliyamo/training-portal/internal/repository"
	"github.com/iliyamo/training-portal/internal/utils"
)

// Clock is a settable time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{t: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// Accounts is an in-memory AccountStore.
type Accounts struct {
	mu       sync.Mutex
	accounts map[uint64]model.Account
	creds    map[string]model.AdminCredential
	touched  map[uint64]time.Time
	Err      error
	TouchErr error
}

func NewAccounts() *Accounts {
	return &Accounts{
		accounts: map[uint64]model.Account{},
		creds:    map[string]model.AdminCredential{},
		touched:  map[uint64]time.Time{},
	}
}

// AddStaff stores an active account with an admin credential.
func (f *Accounts) AddStaff(id uint64, role model.Role, username, password string) {
	hash, err := utils.HashPassword(password, 4)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[id] = model.Account{ID: id, Role: role, Status: model.StatusActive, LoginCode: "STAFF-" + username, CompanyID: 1}
	f.creds[username] = model.AdminCredential{UserID: id, Username: username, PasswordHash: hash}
}

// SetPasswordHash overwrites the stored hash of username.
func (f *Accounts) SetPasswordHash(username, hash string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cred := f.creds[username]
	cred.PasswordHash = hash
	f.creds[username] = cred
}

// TouchedAt returns the last login time recorded for id.
func (f *Accounts) TouchedAt(id uint64) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.touched[id]
}

func (f *Accounts) AddAccount(acc model.Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[acc.ID] = acc
}

func (f *Accounts) SetStatus(id uint64, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc := f.accounts[id]
	acc.Status = status
	f.accounts[id] = acc
}

func (f *Accounts) GetStaffCredential(_ context.Context, username string, minRole model.Role) (model.AdminCredential, model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return model.AdminCredential{}, model.Account{}, f.Err
	}
	cred, ok := f.creds[username]
	if !ok {
		return model.AdminCredential{}, model.Account{}, repository.ErrNotFound
	}
	acc := f.accounts[cred.UserID]
	if !acc.Active() || !acc.Role.AtLeast(minRole) {
		return model.AdminCredential{}, model.Account{}, repository.ErrNotFound
	}
	return cred, acc, nil
}

func (f *Accounts) GetByID(_ context.Context, id uint64) (model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return model.Account{}, f.Err
	}
	acc, ok := f.accounts[id]
	if !ok {
		return model.Account{}, repository.ErrNotFound
	}
	return acc, nil
}

func (f *Accounts) GetByLoginCode(_ context.Context, code string) (model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return model.Account{}, f.Err
	}
	for _, acc := range f.accounts {
		if acc.LoginCode == code {
			return acc, nil
		}
	}
	return model.Account{}, repository.ErrNotFound
}

func (f *Accounts) TouchLastLogin(_ context.Context, id uint64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.TouchErr != nil {
		return f.TouchErr
	}
	f.touched[id] = at
	return nil
}

// Tokens mirrors TokenRepo: a mutex stands in for the transaction.
type Tokens struct {
	mu   sync.Mutex
	rows map[string]model.RefreshToken
	Err  error
}

func NewTokens() *Tokens { return &Tokens{rows: map[string]model.RefreshToken{}} }

func live(t model.RefreshToken, now time.Time) bool {
	return t.ExpiresAt == nil || t.ExpiresAt.After(now)
}

// Save stores t as-is; tests use it to seed tokens from other devices.
func (f *Tokens) Save(_ context.Context, t model.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.rows[t.TokenHash] = t
	return nil
}

// Replace deletes every token of next.UserID and stores next atomically.
func (f *Tokens) Replace(_ context.Context, next model.RefreshToken) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	var n int64
	for h, t := range f.rows {
		if t.UserID == next.UserID {
			delete(f.rows, h)
			n++
		}
	}
	f.rows[next.TokenHash] = next
	return n, nil
}

func (f *Tokens) Lookup(_ context.Context, hash string, now time.Time) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	t, ok := f.rows[hash]
	if !ok || !live(t, now) {
		return 0, repository.ErrNotFound
	}
	return t.UserID, nil
}

func (f *Tokens) Delete(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	delete(f.rows, hash)
	return nil
}

func (f *Tokens) DeleteAll(_ context.Context, userID uint64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	var n int64
	for h, t := range f.rows {
		if t.UserID == userID {
			delete(f.rows, h)
			n++
		}
	}
	return n, nil
}

func (f *Tokens) Rotate(_ context.Context, oldHash string, next model.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	old, ok := f.rows[oldHash]
	if !ok || old.UserID != next.UserID || !live(old, next.IssuedAt) {
		return repository.ErrNotFound
	}
	delete(f.rows, oldHash)
	f.rows[next.TokenHash] = next
	return nil
}

func (f *Tokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for h, t := range f.rows {
		if !live(t, now) {
			delete(f.rows, h)
			n++
		}
	}
	return n, nil
}

// Count reports how many tokens userID holds, expired ones included.
func (f *Tokens) Count(userID uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.rows {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

// TempPasswords mirrors TempPasswordRepo; Consume is a single critical
// section like the conditional UPDATE.
type TempPasswords struct {
	mu     sync.Mutex
	rows   []model.TemporaryPassword
	nextID uint64
	Err    error
}

func (f *TempPasswords) Issue(_ context.Context, tp model.TemporaryPassword) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	for i := range f.rows {
		if f.rows[i].UserID == tp.UserID {
			f.rows[i].IsUsed = true
		}
	}
	f.nextID++
	tp.ID = f.nextID
	f.rows = append(f.rows, tp)
	return tp.ID, nil
}

func (f *TempPasswords) Consume(_ context.Context, userID uint64, now time.Time) (model.TemporaryPassword, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return model.TemporaryPassword{}, false, f.Err
	}
	for i := len(f.rows) - 1; i >= 0; i-- {
		r := &f.rows[i]
		if r.UserID == userID && !r.IsUsed && r.ExpiresAt.After(now) {
			r.IsUsed = true
			return *r, true, nil
		}
	}
	return model.TemporaryPassword{}, false, nil
}

// Rows returns a copy of every stored code, oldest first.
func (f *TempPasswords) Rows() []model.TemporaryPassword {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.TemporaryPassword(nil), f.rows...)
}

func (f *TempPasswords) PurgeStale(_ context.Context, cutoff, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	var n int64
	for _, r := range f.rows {
		if r.IssuedAt.Before(cutoff) && (r.IsUsed || !r.ExpiresAt.After(now)) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return n, nil
}

// Relay is an in-memory NotificationRelay without expiry.
type Relay struct {
	mu      sync.Mutex
	pending map[string]model.Notification
	Err     error
}

func NewRelay() *Relay { return &Relay{pending: map[string]model.Notification{}} }

func (f *Relay) Put(_ context.Context, n model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.pending[n.LoginCode] = n
	return nil
}

func (f *Relay) Pop(_ context.Context, code string) (model.Notification, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return model.Notification{}, false, f.Err
	}
	n, ok := f.pending[code]
	delete(f.pending, code)
	return n, ok, nil
}

// Publisher records published events.
type Publisher struct {
	mu     sync.Mutex
	events []queue.AuthEvent
}

func (f *Publisher) Publish(_ context.Context, ev queue.AuthEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

// Types returns the recorded event types, sorted.
func (f *Publisher) Types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Type)
	}
	sort.Strings(out)
	return out
}
