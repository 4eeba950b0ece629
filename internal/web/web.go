package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// NewHandler builds the debug mux: /metrics, /l (active chat list) and /h
// (open chat history).
func NewHandler(src Source, gatherer prometheus.Gatherer, log *slog.Logger) http.Handler {
	controller := newWebController(src, log)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("GET /l", verbosity(http.HandlerFunc(controller.processTgChatList)))
	mux.Handle("GET /h", verbosity(http.HandlerFunc(controller.processTgChatHistoryOnline)))
	mux.Handle("/", verbosity(http.HandlerFunc(controller.catchAll)))

	return logging(log, mux)
}

// Run serves handler on addr until ctx is done.
func Run(ctx context.Context, addr string, handler http.Handler, log *slog.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting web server", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web server failed: %w", err)
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		return fmt.Errorf("failed to stop web server: %w", err)
	}

	return nil
}
