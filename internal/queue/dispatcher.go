package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrDispatchFull is returned when the dispatch buffer is full and the
// event was dropped.
var ErrDispatchFull = errors.New("auth event buffer full")

// ErrDispatchClosed is returned for events offered after Close.
var ErrDispatchClosed = errors.New("auth event dispatcher closed")

// Sink delivers one event.  *Publisher is the production sink.
type Sink interface {
	Publish(ctx context.Context, ev AuthEvent) error
}

// Dispatcher decouples request handling from the broker.  Publish only
// enqueues; a single worker delivers events in order, each with its own
// timeout.  When the broker is slow or down the buffer fills and new events
// are dropped instead of piling up goroutines.
type Dispatcher struct {
	sink    Sink
	timeout time.Duration
	log     logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
	events chan AuthEvent
	done   chan struct{}
}

// NewDispatcher starts the delivery worker.  size is the buffer capacity.
func NewDispatcher(sink Sink, size int, timeout time.Duration, log logrus.FieldLogger) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	d := &Dispatcher{
		sink:    sink,
		timeout: timeout,
		log:     log,
		events:  make(chan AuthEvent, size),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Publish enqueues ev without blocking.  ctx is unused; delivery gets a
// fresh timeout so that it outlives the request that produced the event.
func (d *Dispatcher) Publish(_ context.Context, ev AuthEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatchClosed
	}
	select {
	case d.events <- ev:
		return nil
	default:
		return ErrDispatchFull
	}
}

// Close stops accepting events and waits until the buffered ones have been
// handed to the sink or ctx expires, whichever comes first.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.events {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := d.sink.Publish(ctx, ev); err != nil {
			d.log.WithError(err).WithField("event", ev.Type).Warn("deliver auth event failed")
		}
		cancel()
	}
}
