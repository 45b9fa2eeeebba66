package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/training-portal/internal/model"
)

// NotificationStore keeps at most one pending kiosk notification per login
// code in Redis.  Entries expire after TTL; Pop reads and deletes in one
// GETDEL so a notification is delivered at most once.
type NotificationStore struct {
	RDB    *redis.Client
	Prefix string
	TTL    time.Duration
}

func NewNotificationStore(rdb *redis.Client, prefix string, ttl time.Duration) *NotificationStore {
	return &NotificationStore{RDB: rdb, Prefix: prefix, TTL: ttl}
}

func (s *NotificationStore) key(loginCode string) string {
	return fmt.Sprintf("%s:%s", s.Prefix, loginCode)
}

// Put stores n, replacing any pending notification for the same login code.
func (s *NotificationStore) Put(ctx context.Context, n model.Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.RDB.Set(ctx, s.key(n.LoginCode), b, s.TTL).Err()
}

// Pop removes and returns the pending notification for loginCode.  The
// boolean is false when nothing is pending.
func (s *NotificationStore) Pop(ctx context.Context, loginCode string) (model.Notification, bool, error) {
	b, err := s.RDB.GetDel(ctx, s.key(loginCode)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Notification{}, false, nil
	}
	if err != nil {
		return model.Notification{}, false, err
	}
	var n model.Notification
	if err := json.Unmarshal(b, &n); err != nil {
		return model.Notification{}, false, fmt.Errorf("decode notification %s: %w", loginCode, err)
	}
	return n, true, nil
}

// Ping reports whether Redis is reachable.
func (s *NotificationStore) Ping(ctx context.Context) error {
	return s.RDB.Ping(ctx).Err()
}
