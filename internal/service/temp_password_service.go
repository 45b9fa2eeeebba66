package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/training-portal/internal/model"
	"github.com/iliyamo/training-portal/internal/queue"
	"github.com/iliyamo/training-portal/internal/repository"
	"github.com/iliyamo/training-portal/internal/utils"
)

// staleAfter is how long used or expired codes are kept for inspection
// before the cleanup job deletes them.
const staleAfter = 24 * time.Hour

// IssuedTempPassword is returned to the staff member who issued a code.
type IssuedTempPassword struct {
	TempPassword string    `json:"temp_password"`
	LoginCode    string    `json:"login_code"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// TempPasswordService issues and consumes one-time kiosk login codes and
// relays "a code is waiting" notifications to kiosks.
type TempPasswordService struct {
	accounts AccountStore
	store    TempPasswordStore
	relay    NotificationRelay
	loc      *time.Location
	generate func() (string, error)
	opts     Options
}

// NewTempPasswordService returns a service whose codes expire at the end of
// the issuing day in loc.
func NewTempPasswordService(accounts AccountStore, store TempPasswordStore, relay NotificationRelay, loc *time.Location, opts Options) *TempPasswordService {
	if loc == nil {
		loc = time.UTC
	}
	return &TempPasswordService{
		accounts: accounts,
		store:    store,
		relay:    relay,
		loc:      loc,
		generate: utils.NewTempPassword,
		opts:     opts.withDefaults(),
	}
}

// EndOfDay returns 23:59:59 of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 23, 59, 59, 0, loc)
}

// Issue creates a new code for an active trainee, invalidating any code the
// trainee still had.  actorID is the staff member asking for it.  A
// notification is queued for the trainee's kiosk; failing to queue it is
// logged but does not fail the issuance.
func (s *TempPasswordService) Issue(ctx context.Context, actorID, userID uint64) (IssuedTempPassword, error) {
	log := s.opts.Log.WithFields(logrus.Fields{"op": "temp_password.issue", "user_id": userID, "actor_id": actorID})
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	acc, err := s.accounts.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		s.count("issue", "not_found")
		return IssuedTempPassword{}, ErrAccountNotFound
	}
	if err != nil {
		s.count("issue", "error")
		return IssuedTempPassword{}, internalErr(log, "temp_password.issue.account", err)
	}
	if !acc.Active() || acc.Role != model.RoleTrainee {
		s.count("issue", "not_trainee")
		return IssuedTempPassword{}, ErrNotTrainee
	}

	code, err := s.generate()
	if err != nil {
		s.count("issue", "error")
		return IssuedTempPassword{}, internalErr(log, "temp_password.issue.generate", err)
	}
	now := s.opts.Now()
	tp := model.TemporaryPassword{
		UserID:       userID,
		TempPassword: code,
		IssuedAt:     now.UTC(),
		ExpiresAt:    EndOfDay(now, s.loc).UTC(),
	}
	if _, err := s.store.Issue(ctx, tp); err != nil {
		s.count("issue", "error")
		return IssuedTempPassword{}, internalErr(log, "temp_password.issue.store", err)
	}
	s.count("issue", "success")
	log.WithField("expires_at", tp.ExpiresAt).Info("temporary password issued")

	if s.relay != nil {
		n := model.Notification{LoginCode: acc.LoginCode, Kind: model.NotificationKindTempPassword, CreatedAt: now.UTC()}
		if err := s.relay.Put(ctx, n); err != nil {
			s.countNotify("put", "error")
			log.WithError(err).Warn("queue kiosk notification failed")
		} else {
			s.countNotify("put", "success")
		}
	}

	ev := queue.NewAuthEvent(queue.EventTempPasswordIssued, userID, now)
	ev.ActorID = actorID
	ev.LoginCode = acc.LoginCode
	s.opts.emit(ev)

	return IssuedTempPassword{TempPassword: code, LoginCode: acc.LoginCode, ExpiresAt: tp.ExpiresAt}, nil
}

// Consume claims the pending code of the account behind loginCode.  At most
// one caller ever receives a given code; everyone else, and every caller
// when nothing is pending, gets ok=false with a nil error.
func (s *TempPasswordService) Consume(ctx context.Context, loginCode string) (model.TemporaryPassword, bool, error) {
	log := s.opts.Log.WithFields(logrus.Fields{"op": "temp_password.consume", "login_code": loginCode})
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	acc, err := s.resolve(ctx, loginCode)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			s.count("consume", "not_found")
			return model.TemporaryPassword{}, false, err
		}
		s.count("consume", "error")
		return model.TemporaryPassword{}, false, internalErr(log, "temp_password.consume.account", err)
	}
	if !acc.Active() {
		s.count("consume", "empty")
		return model.TemporaryPassword{}, false, nil
	}

	tp, ok, err := s.store.Consume(ctx, acc.ID, s.opts.Now().UTC())
	if err != nil {
		s.count("consume", "error")
		return model.TemporaryPassword{}, false, internalErr(log.WithField("user_id", acc.ID), "temp_password.consume.store", err)
	}
	if !ok {
		s.count("consume", "empty")
		return model.TemporaryPassword{}, false, nil
	}
	s.count("consume", "success")
	log.WithField("user_id", acc.ID).Info("temporary password consumed")
	ev := queue.NewAuthEvent(queue.EventTempPasswordConsumed, acc.ID, s.opts.Now())
	ev.LoginCode = acc.LoginCode
	s.opts.emit(ev)
	return tp, true, nil
}

// Notify queues a message for the kiosk logged in as loginCode, replacing
// any notification it has not picked up yet.
func (s *TempPasswordService) Notify(ctx context.Context, actorID uint64, loginCode, message string) error {
	log := s.opts.Log.WithFields(logrus.Fields{"op": "notify", "login_code": loginCode, "actor_id": actorID})
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	acc, err := s.resolve(ctx, loginCode)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			s.countNotify("put", "not_found")
			return err
		}
		s.countNotify("put", "error")
		return internalErr(log, "notify.account", err)
	}
	n := model.Notification{
		LoginCode: acc.LoginCode,
		Kind:      model.NotificationKindTempPassword,
		Message:   strings.TrimSpace(message),
		CreatedAt: s.opts.Now().UTC(),
	}
	if err := s.relay.Put(ctx, n); err != nil {
		s.countNotify("put", "error")
		return internalErr(log, "notify.put", err)
	}
	s.countNotify("put", "success")
	return nil
}

// PopNotification hands the pending notification for loginCode to exactly
// one poller.
func (s *TempPasswordService) PopNotification(ctx context.Context, loginCode string) (model.Notification, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	n, ok, err := s.relay.Pop(ctx, loginCode)
	if err != nil {
		s.countNotify("pop", "error")
		return model.Notification{}, false, internalErr(s.opts.Log.WithField("login_code", loginCode), "notify.pop", err)
	}
	if !ok {
		s.countNotify("pop", "empty")
		return model.Notification{}, false, nil
	}
	s.countNotify("pop", "success")
	ev := queue.NewAuthEvent(queue.EventNotificationDelivered, 0, s.opts.Now())
	ev.LoginCode = loginCode
	s.opts.emit(ev)
	return n, true, nil
}

// PurgeStale deletes used or expired codes issued more than a day ago.
func (s *TempPasswordService) PurgeStale(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	now := s.opts.Now().UTC()
	n, err := s.store.PurgeStale(ctx, now.Add(-staleAfter), now)
	if err != nil {
		return 0, internalErr(s.opts.Log, "purge_temp_passwords", err)
	}
	s.opts.Metrics.CleanupRemoved.WithLabelValues("temporary_passwords").Add(float64(n))
	return n, nil
}

func (s *TempPasswordService) resolve(ctx context.Context, loginCode string) (model.Account, error) {
	acc, err := s.accounts.GetByLoginCode(ctx, loginCode)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Account{}, ErrAccountNotFound
	}
	return acc, err
}

func (s *TempPasswordService) count(op, outcome string) {
	s.opts.Metrics.TempPasswordsTotal.WithLabelValues(op, outcome).Inc()
}

func (s *TempPasswordService) countNotify(op, outcome string) {
	s.opts.Metrics.NotificationsTotal.WithLabelValues(op, outcome).Inc()
}
