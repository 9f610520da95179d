// Package notify delivers the events of the workflow engine asynchronously.
//
// The engine hands events to a Queue, which never blocks. A single goroutine takes events from the queue and passes
// them to a Sender. Delivery is attempted once. Failures are logged, because the transitions which caused the events
// have been committed already.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/wansing/editorial/core"
)

var (
	ErrQueueClosed = errors.New("notification queue is closed")
	ErrQueueFull   = errors.New("notification queue is full")
)

const DefaultQueueSize = 256

// Option customizes Queue construction.
type Option func(*Queue)

func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

func WithSize(size int) Option {
	return func(q *Queue) {
		if size > 0 {
			q.size = size
		}
	}
}

// Queue is a bounded in-memory queue. It implements core.Dispatcher.
type Queue struct {
	sender Sender
	logger *slog.Logger
	size   int

	mu     sync.RWMutex // guards closed and sending on events
	closed bool
	events chan core.Event
	done   chan struct{}
	once   sync.Once
}

func NewQueue(sender Sender, opts ...Option) *Queue {
	var q = &Queue{
		sender: sender,
		logger: slog.Default(),
		size:   DefaultQueueSize,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}
	q.events = make(chan core.Event, q.size)
	return q
}

// Dispatch enqueues the event. It returns ErrQueueFull instead of blocking.
func (q *Queue) Dispatch(_ context.Context, event core.Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.events <- event:
		return nil
	default:
		q.logger.Warn("dropping event", "topic", event.Topic(), "err", ErrQueueFull)
		return ErrQueueFull
	}
}

// Len returns the number of waiting events.
func (q *Queue) Len() int {
	return len(q.events)
}

// Run delivers events until the queue has been closed and drained. If ctx is done, the remaining events are discarded.
func (q *Queue) Run(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case event, ok := <-q.events:
			if !ok {
				return
			}
			q.send(ctx, event)
		case <-ctx.Done():
			q.logger.Warn("notification queue stopped", "discarded", len(q.events))
			return
		}
	}
}

func (q *Queue) send(ctx context.Context, event core.Event) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("sender panicked", "topic", event.Topic(), "panic", r)
		}
	}()
	if err := q.sender.Send(ctx, event); err != nil {
		q.logger.Warn("sending event failed", "topic", event.Topic(), "err", err)
		return
	}
	q.logger.Debug("event sent", "topic", event.Topic())
}

// Close stops accepting events and waits until Run has delivered the waiting ones or ctx is done.
// Run must have been started before.
func (q *Queue) Close(ctx context.Context) error {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.events)
		q.mu.Unlock()
	})
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
