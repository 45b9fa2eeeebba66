package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedSink blocks every delivery until release is closed.
type gatedSink struct {
	release chan struct{}
	mu      sync.Mutex
	got     []string
}

func (s *gatedSink) Publish(ctx context.Context, ev AuthEvent) error {
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	s.got = append(s.got, ev.ID)
	s.mu.Unlock()
	return nil
}

func (s *gatedSink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.got...)
}

func event(id string) AuthEvent { return AuthEvent{ID: id, Type: EventLogout} }

func TestDispatcher_DropsWhenFull(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sink := &gatedSink{release: make(chan struct{})}
	d := NewDispatcher(sink, 2, time.Minute, logger)

	// The worker takes the first event and blocks on it; two more fill the buffer.
	require.NoError(t, d.Publish(context.Background(), event("e1")))
	require.Eventually(t, func() bool { return len(d.events) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, d.Publish(context.Background(), event("e2")))
	require.NoError(t, d.Publish(context.Background(), event("e3")))

	start := time.Now()
	assert.ErrorIs(t, d.Publish(context.Background(), event("e4")), ErrDispatchFull)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(sink.release)
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, []string{"e1", "e2", "e3"}, sink.ids())
	assert.ErrorIs(t, d.Publish(context.Background(), event("e5")), ErrDispatchClosed)
}

func TestDispatcher_CloseGivesUpAtDeadline(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := &gatedSink{release: make(chan struct{})}
	d := NewDispatcher(sink, 4, 50*time.Millisecond, logger)
	require.NoError(t, d.Publish(context.Background(), event("e1")))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)

	// The stuck delivery times out on its own and is logged.
	assert.Eventually(t, func() bool { return len(hook.AllEntries()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, sink.ids())
}
