package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alexbilevskiy/tgdesk/internal/backend"
	"github.com/alexbilevskiy/tgdesk/internal/metrics"
	"github.com/alexbilevskiy/tgdesk/internal/tdlib"
)

var ErrStopped = errors.New("dispatcher stopped")

const DefaultPollTimeout = time.Second

// Callback receives the reply to one request. It runs on the polling
// goroutine and must only hand the response over, never touch UI state.
type Callback func(tdlib.Response)

// Dispatcher correlates backend replies with the requests that caused them
// and forwards untagged pushes to a single sink.
type Dispatcher struct {
	handle      backend.Handle
	push        Callback
	log         *slog.Logger
	m           *metrics.Metrics
	pollTimeout time.Duration
	graceful    bool

	nextID  atomic.Uint64
	mu      sync.Mutex
	pending map[uint64]Callback

	running atomic.Bool
	started atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

type Option func(*Dispatcher)

func WithPollTimeout(d time.Duration) Option {
	return func(ds *Dispatcher) {
		if d > 0 {
			ds.pollTimeout = d
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(ds *Dispatcher) { ds.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(ds *Dispatcher) { ds.m = m }
}

// WithGracefulClose makes Shutdown send a close request before stopping.
func WithGracefulClose() Option {
	return func(ds *Dispatcher) { ds.graceful = true }
}

func New(handle backend.Handle, push Callback, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handle:      handle,
		push:        push,
		log:         slog.Default(),
		pollTimeout: DefaultPollTimeout,
		pending:     make(map[uint64]Callback),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.m == nil {
		d.m = metrics.New(nil)
	}
	d.log = d.log.With("component", "dispatcher")

	return d
}

// Start launches the polling goroutine. Calling it twice is a no-op.
func (d *Dispatcher) Start() {
	if !d.started.CompareAndSwap(false, true) {
		return
	}
	d.running.Store(true)
	go d.poll()
}

// Submit hands fn to the backend under a fresh correlation id. The callback,
// when given, is registered before the request leaves so a fast reply can
// always find it. Ids are never reused, even for rejected requests.
func (d *Dispatcher) Submit(fn tdlib.Function, cb Callback) (uint64, error) {
	if d.started.Load() && !d.running.Load() {
		return 0, ErrStopped
	}
	id := d.nextID.Add(1)
	if cb != nil {
		d.mu.Lock()
		d.pending[id] = cb
		n := len(d.pending)
		d.mu.Unlock()
		d.m.Pending.Set(float64(n))
	}

	if err := d.handle.Send(fn, id); err != nil {
		if cb != nil {
			d.mu.Lock()
			delete(d.pending, id)
			n := len(d.pending)
			d.mu.Unlock()
			d.m.Pending.Set(float64(n))
		}
		d.m.SubmitFailures.Inc()
		return 0, fmt.Errorf("failed to submit %s: %w", fn.Type(), err)
	}
	d.m.Submitted.Inc()
	d.log.Debug("submitted", "type", fn.Type(), "id", id)

	return id, nil
}

// Pending returns the number of requests still waiting for a reply.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.pending)
}

// Shutdown stops polling, waits for the polling goroutine (bounded by ctx)
// and drops every pending callback without invoking it.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if !d.started.Load() {
		d.started.Store(true)
		d.dropPending()
		return nil
	}
	if !d.running.CompareAndSwap(true, false) {
		return nil
	}
	if d.graceful {
		id := d.nextID.Add(1)
		if err := d.handle.Send(tdlib.Close{}, id); err != nil {
			d.log.Warn("close request failed", "error", err)
		}
	}
	close(d.stop)

	var err error
	select {
	case <-d.done:
	case <-ctx.Done():
		err = fmt.Errorf("waiting for polling goroutine: %w", ctx.Err())
	}
	d.dropPending()

	return err
}

func (d *Dispatcher) dropPending() {
	d.mu.Lock()
	n := len(d.pending)
	d.pending = make(map[uint64]Callback)
	d.mu.Unlock()
	d.m.Pending.Set(0)
	if n > 0 {
		d.log.Info("dropped pending requests", "count", n)
	}
}

func (d *Dispatcher) poll() {
	defer close(d.done)

	for d.running.Load() {
		frame, err := d.handle.Receive(d.pollTimeout)
		if err != nil {
			d.m.PollErrors.Inc()
			d.log.Debug("poll failed", "error", err)
			select {
			case <-d.stop:
				return
			case <-time.After(d.pollTimeout):
			}
			continue
		}
		if frame == nil {
			continue
		}
		d.route(tdlib.Decode(frame.RequestID, frame.Data))
	}
}

func (d *Dispatcher) route(resp tdlib.Response) {
	if resp.IsPush() {
		d.m.Responses.WithLabelValues(metrics.RoutePush).Inc()
		if d.push != nil {
			d.push(resp)
		}
		return
	}

	d.mu.Lock()
	cb, ok := d.pending[resp.RequestID]
	if ok {
		delete(d.pending, resp.RequestID)
	}
	n := len(d.pending)
	d.mu.Unlock()
	d.m.Pending.Set(float64(n))

	if !ok {
		// reply to a fire-and-forget request, or one dropped at shutdown
		d.m.Responses.WithLabelValues(metrics.RouteOrphan).Inc()
		return
	}
	d.m.Responses.WithLabelValues(metrics.RouteReply).Inc()
	cb(resp)
}
