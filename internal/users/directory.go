package users

import (
	"log/slog"

	"github.com/alexbilevskiy/tgdesk/internal/metrics"
	"github.com/alexbilevskiy/tgdesk/internal/tdlib"
)

// Caller issues backend requests whose callbacks run on the presentation
// goroutine.
type Caller interface {
	Call(fn tdlib.Function, cb func(tdlib.Payload)) error
}

// Directory memoizes users by id and coalesces concurrent lookups so that at
// most one getUser is outstanding per id. It is owned by the presentation
// goroutine and is not safe for concurrent use.
type Directory struct {
	caller   Caller
	log      *slog.Logger
	m        *metrics.Metrics
	negative bool

	// a nil value is a tombstone for a failed lookup
	users   map[int64]*tdlib.User
	waiters map[int64][]func(*tdlib.User)
}

type Option func(*Directory)

// WithNegativeCaching controls whether failed lookups are remembered.
func WithNegativeCaching(enabled bool) Option {
	return func(d *Directory) { d.negative = enabled }
}

func WithLogger(log *slog.Logger) Option {
	return func(d *Directory) { d.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Directory) { d.m = m }
}

func New(caller Caller, opts ...Option) *Directory {
	d := &Directory{
		caller:   caller,
		log:      slog.Default(),
		negative: true,
		users:    make(map[int64]*tdlib.User),
		waiters:  make(map[int64][]func(*tdlib.User)),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.m == nil {
		d.m = metrics.New(nil)
	}
	d.log = d.log.With("component", "users")

	return d
}

// Get resolves userID. Known users, and remembered failures as nil, are
// delivered synchronously; otherwise cb is queued until the backend answers.
func (d *Directory) Get(userID int64, cb func(*tdlib.User)) {
	if u, ok := d.users[userID]; ok {
		if u == nil {
			d.m.UserLookups.WithLabelValues(metrics.LookupNegative).Inc()
		} else {
			d.m.UserLookups.WithLabelValues(metrics.LookupHit).Inc()
		}
		cb(u)
		return
	}

	if waiting, ok := d.waiters[userID]; ok {
		d.m.UserLookups.WithLabelValues(metrics.LookupCoalesced).Inc()
		d.waiters[userID] = append(waiting, cb)
		return
	}

	d.m.UserLookups.WithLabelValues(metrics.LookupMiss).Inc()
	d.waiters[userID] = []func(*tdlib.User){cb}
	err := d.caller.Call(tdlib.GetUser{UserID: userID}, func(p tdlib.Payload) {
		d.resolve(userID, p)
	})
	if err != nil {
		d.log.Warn("user lookup not sent", "user_id", userID, "error", err)
		d.release(userID, nil)
	}
}

// Cached reports what the directory knows about userID without asking the
// backend. A remembered failure returns (nil, true).
func (d *Directory) Cached(userID int64) (*tdlib.User, bool) {
	u, ok := d.users[userID]

	return u, ok
}

// Put stores a user pushed by the backend. The last write wins, including
// over a lookup still in flight.
func (d *Directory) Put(u *tdlib.User) {
	if u == nil {
		return
	}
	cp := *u
	d.users[u.ID] = &cp
}

// SetStatus replaces the cached record with a copy carrying the new status.
// Unknown users are ignored.
func (d *Directory) SetStatus(userID int64, status tdlib.UserStatus) bool {
	u, ok := d.users[userID]
	if !ok || u == nil {
		return false
	}
	cp := *u
	cp.Status = status
	d.users[userID] = &cp

	return true
}

// InFlight reports whether a lookup for userID is outstanding.
func (d *Directory) InFlight(userID int64) bool {
	_, ok := d.waiters[userID]

	return ok
}

func (d *Directory) Len() int {
	return len(d.users)
}

func (d *Directory) resolve(userID int64, p tdlib.Payload) {
	switch v := p.(type) {
	case *tdlib.User:
		d.Put(v)
		d.release(userID, d.users[userID])
	case *tdlib.Error:
		d.log.Debug("user lookup failed", "user_id", userID, "code", v.Code, "error", v.Message)
		d.fail(userID)
	default:
		d.log.Warn("unexpected user lookup reply", "user_id", userID, "payload", p)
		d.fail(userID)
	}
}

func (d *Directory) fail(userID int64) {
	if d.negative {
		if _, ok := d.users[userID]; !ok {
			d.users[userID] = nil
		}
	}
	d.release(userID, d.users[userID])
}

func (d *Directory) release(userID int64, u *tdlib.User) {
	waiting := d.waiters[userID]
	delete(d.waiters, userID)
	for _, cb := range waiting {
		cb(u)
	}
}
