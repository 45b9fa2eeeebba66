package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/training-portal/internal/metrics"
	"github.com/iliyamo/training-portal/internal/model"
	"github.com/iliyamo/training-portal/internal/queue"
)

// AccountStore reads accounts and admin credentials.
type AccountStore interface {
	GetStaffCredential(ctx context.Context, username string, minRole model.Role) (model.AdminCredential, model.Account, error)
	GetByID(ctx context.Context, id uint64) (model.Account, error)
	GetByLoginCode(ctx context.Context, loginCode string) (model.Account, error)
	TouchLastLogin(ctx context.Context, id uint64, at time.Time) error
}

// RefreshTokenStore persists refresh token hashes.
type RefreshTokenStore interface {
	Replace(ctx context.Context, next model.RefreshToken) (int64, error)
	Lookup(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
	Delete(ctx context.Context, tokenHash string) error
	DeleteAll(ctx context.Context, userID uint64) (int64, error)
	Rotate(ctx context.Context, oldHash string, next model.RefreshToken) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// TempPasswordStore persists temporary passwords.
type TempPasswordStore interface {
	Issue(ctx context.Context, tp model.TemporaryPassword) (uint64, error)
	Consume(ctx context.Context, userID uint64, now time.Time) (model.TemporaryPassword, bool, error)
	PurgeStale(ctx context.Context, cutoff, now time.Time) (int64, error)
}

// NotificationRelay holds pending kiosk notifications.
type NotificationRelay interface {
	Put(ctx context.Context, n model.Notification) error
	Pop(ctx context.Context, loginCode string) (model.Notification, bool, error)
}

// EventPublisher ships audit events.  Publish is called on the request path
// and must not block on the broker; queue.Dispatcher provides that.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AuthEvent) error
}

// Options carries the ambient dependencies shared by the services.  Zero
// values are replaced with working defaults.
type Options struct {
	Log     logrus.FieldLogger
	Metrics *metrics.Metrics
	Events  EventPublisher
	Timeout time.Duration    // budget for each store round-trip
	Now     func() time.Time // clock for rows the service writes
}

func (o Options) withDefaults() Options {
	if o.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.Log = l
	}
	if o.Metrics == nil {
		o.Metrics = metrics.New()
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// emit hands ev to the publisher.  Events are best effort: a failure is
// logged and never reaches the caller.
func (o Options) emit(ev queue.AuthEvent) {
	if o.Events == nil {
		return
	}
	if err := o.Events.Publish(context.Background(), ev); err != nil {
		o.Log.WithError(err).WithField("event", ev.Type).Warn("publish auth event failed")
	}
}

// internalErr logs err under op and returns it wrapped in ErrInternal.
func internalErr(log logrus.FieldLogger, op string, err error) error {
	log.WithError(err).WithField("op", op).Error("store failure")
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}
