// Package marshal moves work from background goroutines onto the single
// goroutine that owns presentation state.
package marshal

import (
	"context"
	"errors"
	"sync"

	"github.com/alexbilevskiy/tgdesk/internal/metrics"
)

var ErrClosed = errors.New("marshal loop closed")

// Loop is an unbounded FIFO of tasks. Post may be called from any goroutine,
// never blocks and never runs the task inline. Tasks run in post order on
// whichever goroutine drains the loop with Run, or on the executor fed by
// Forward. Only one of the two may be used.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
	m      *metrics.Metrics
}

func New(m *metrics.Metrics) *Loop {
	if m == nil {
		m = metrics.New(nil)
	}

	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		m:    m,
	}
}

func (l *Loop) Post(task func()) {
	if task == nil {
		return
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, task)
	n := len(l.queue)
	l.mu.Unlock()
	l.m.QueueDepth.Set(float64(n))

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of queued tasks.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.queue)
}

// Close drops every queued task. Later posts are ignored.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.queue = nil
	l.mu.Unlock()
	l.m.QueueDepth.Set(0)
	close(l.done)
}

// Run makes the calling goroutine the presentation goroutine and executes
// tasks until ctx is done or the loop is closed.
func (l *Loop) Run(ctx context.Context) error {
	return l.Forward(ctx, func(task func()) { task() })
}

// Forward hands tasks, in order, to deliver. deliver is expected to run the
// task on another single-threaded executor, e.g. a bubbletea program.
func (l *Loop) Forward(ctx context.Context, deliver func(task func())) error {
	for {
		for _, task := range l.take() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if l.isClosed() {
				return ErrClosed
			}
			deliver(task)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return ErrClosed
		case <-l.wake:
		}
	}
}

// Call posts fn and waits for it to run. It must not be called from the
// presentation goroutine.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	l.Post(func() {
		fn()
		close(ran)
	})
	select {
	case <-ran:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) take() []func() {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()
	if len(batch) > 0 {
		l.m.QueueDepth.Set(0)
	}

	return batch
}

func (l *Loop) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.closed
}
