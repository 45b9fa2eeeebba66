package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// AuditConsumer drains the auth events queue into an append-only file.
type AuditConsumer struct {
	URL   string
	Queue string
	Path  string
	Log   logrus.FieldLogger
}

// Run connects to RabbitMQ and consumes until ctx is cancelled,
// reconnecting with exponential backoff.  Malformed messages are rejected
// without requeue so they cannot loop.
func (a *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(a.URL)
		if err != nil {
			a.Log.WithError(err).Warnf("audit consumer: dial failed; retrying in %s", backoff)
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = a.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.Log.WithError(err).Warn("audit consumer: consume loop ended; reconnecting")
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (a *AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		a.Log.WithError(err).Warn("audit consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(a.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(a.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := a.Handle(d.Body); err != nil {
				a.Log.WithError(err).Error("audit consumer: handle message failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one message and appends it to the audit file.
func (a *AuditConsumer) Handle(body []byte) error {
	var ev AuthEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	if dir := filepath.Dir(a.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(a.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatAuditLine(ev)); err != nil {
		return fmt.Errorf("write audit file: %w", err)
	}
	return nil
}

// FormatAuditLine renders ev as a single key=value line.
func FormatAuditLine(ev AuthEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | id=%s", ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.ID)
	if ev.UserID != 0 {
		fmt.Fprintf(&b, " | user_id=%d", ev.UserID)
	}
	if ev.LoginCode != "" {
		fmt.Fprintf(&b, " | login_code=%q", ev.LoginCode)
	}
	if ev.ActorID != 0 {
		fmt.Fprintf(&b, " | actor_id=%d", ev.ActorID)
	}
	if ev.TokenFingerprint != "" {
		fmt.Fprintf(&b, " | token_fp=%s", ev.TokenFingerprint)
	}
	if ev.Reason != "" {
		fmt.Fprintf(&b, " | reason=%q", ev.Reason)
	}
	b.WriteByte('\n')
	return b.String()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
