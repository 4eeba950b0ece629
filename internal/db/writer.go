package db

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alexbilevskiy/tgdesk/internal/tdlib"
)

// FolderWriter saves folder lists on its own goroutine. Only the latest list
// handed to Save is written; intermediate ones are skipped.
type FolderWriter struct {
	store  FolderStore
	log    *slog.Logger
	signal chan struct{}

	mu      sync.Mutex
	pending []tdlib.ChatFolder
	dirty   bool
}

func NewFolderWriter(store FolderStore, log *slog.Logger) *FolderWriter {
	return &FolderWriter{
		store:  store,
		log:    log.With("component", "folders"),
		signal: make(chan struct{}, 1),
	}
}

// Save never blocks.
func (w *FolderWriter) Save(folders []tdlib.ChatFolder) {
	w.mu.Lock()
	w.pending = append([]tdlib.ChatFolder(nil), folders...)
	w.dirty = true
	w.mu.Unlock()

	select {
	case w.signal <- struct{}{}:
	default:
	}
}

// Run writes pending lists until ctx is done, then flushes what is left.
func (w *FolderWriter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush(context.WithoutCancel(ctx))
			return nil
		case <-w.signal:
			w.flush(ctx)
		}
	}
}

func (w *FolderWriter) flush(ctx context.Context) {
	w.mu.Lock()
	folders, dirty := w.pending, w.dirty
	w.pending, w.dirty = nil, false
	w.mu.Unlock()
	if !dirty {
		return
	}

	if err := w.store.SaveChatFolders(ctx, folders); err != nil {
		w.log.Error("failed to save chat folders", "count", len(folders), "error", err)
		return
	}
	w.log.Debug("chat folders saved", "count", len(folders))
}
