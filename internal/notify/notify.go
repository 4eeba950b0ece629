// Package notify is the boundary to whatever shows desktop notifications.
package notify

import (
	"io"
	"log/slog"
	"sync"
)

type Notifier interface {
	Notify(title, body string)
}

// LogNotifier records notifications in the log only.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("component", "notify")}
}

func (n *LogNotifier) Notify(title, body string) {
	n.log.Info("notification", "title", title, "body", body)
}

// Bell rings the terminal bell and forwards to next.
type Bell struct {
	mu   sync.Mutex
	w    io.Writer
	next Notifier
}

func NewBell(w io.Writer, next Notifier) *Bell {
	return &Bell{w: w, next: next}
}

func (b *Bell) Notify(title, body string) {
	b.mu.Lock()
	_, _ = b.w.Write([]byte("\a"))
	b.mu.Unlock()
	if b.next != nil {
		b.next.Notify(title, body)
	}
}

type Notification struct {
	Title string
	Body  string
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(title, body string) {
	r.mu.Lock()
	r.items = append(r.items, Notification{Title: title, Body: body})
	r.mu.Unlock()
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Notification(nil), r.items...)
}
