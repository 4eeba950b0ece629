// Package backendtest provides a scripted in-memory backend Handle.
package backendtest

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/alexbilevskiy/tgdesk/internal/backend"
	"github.com/alexbilevskiy/tgdesk/internal/tdlib"
)

type Sent struct {
	Function  tdlib.Function
	RequestID uint64
}

// Fake records submitted functions and hands out frames queued with Reply,
// Push or Fail.
type Fake struct {
	mu      sync.Mutex
	sent    []Sent
	queue   []fakeItem
	closed  bool
	sendErr error
	notify  chan struct{}
	onSend  func(Sent)
}

type fakeItem struct {
	frame *backend.Frame
	err   error
}

func New() *Fake {
	return &Fake{notify: make(chan struct{}, 1)}
}

// OnSend installs a hook called after every accepted Send.
func (f *Fake) OnSend(fn func(Sent)) {
	f.mu.Lock()
	f.onSend = fn
	f.mu.Unlock()
}

// FailSends makes subsequent Send calls return err; nil restores them.
func (f *Fake) FailSends(err error) {
	f.mu.Lock()
	f.sendErr = err
	f.mu.Unlock()
}

func (f *Fake) Send(fn tdlib.Function, requestID uint64) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return backend.ErrClosed
	}
	if f.sendErr != nil {
		err := f.sendErr
		f.mu.Unlock()
		return err
	}
	s := Sent{Function: fn, RequestID: requestID}
	f.sent = append(f.sent, s)
	hook := f.onSend
	f.mu.Unlock()

	if hook != nil {
		hook(s)
	}

	return nil
}

func (f *Fake) Receive(timeout time.Duration) (*backend.Frame, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		f.mu.Lock()
		if len(f.queue) > 0 {
			it := f.queue[0]
			f.queue = f.queue[1:]
			f.mu.Unlock()
			return it.frame, it.err
		}
		if f.closed {
			f.mu.Unlock()
			return nil, backend.ErrClosed
		}
		f.mu.Unlock()

		select {
		case <-f.notify:
		case <-deadline.C:
			return nil, nil
		}
	}
}

func (f *Fake) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.wake()

	return nil
}

// Reply queues a raw reply tagged with requestID.
func (f *Fake) Reply(requestID uint64, data string) {
	f.enqueue(fakeItem{frame: &backend.Frame{RequestID: requestID, Data: json.RawMessage(data)}})
}

// Push queues an untagged raw object.
func (f *Fake) Push(data string) {
	f.Reply(0, data)
}

// Fail queues a transport error for the next Receive.
func (f *Fake) Fail(err error) {
	f.enqueue(fakeItem{err: err})
}

func (f *Fake) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]Sent(nil), f.sent...)
}

// Last returns the most recent submission.
func (f *Fake) Last() (Sent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return Sent{}, false
	}

	return f.sent[len(f.sent)-1], true
}

func (f *Fake) enqueue(it fakeItem) {
	f.mu.Lock()
	f.queue = append(f.queue, it)
	f.mu.Unlock()
	f.wake()
}

func (f *Fake) wake() {
	select {
	case f.notify <- struct{}{}:
	default:
	}
}
