package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type ctxKey string

const verboseKey ctxKey = "verbose"

// verbosity marks requests with a=1, which get indented JSON.
func verbosity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		verbose := req.FormValue("a") == "1"
		next.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), verboseKey, verbose)))
	})
}

func isVerbose(req *http.Request) bool {
	v, _ := req.Context().Value(verboseKey).(bool)
	return v
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logging(log *slog.Logger, next http.Handler) http.Handler {
	log = log.With("component", "web")
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		log.Debug("request", "method", req.Method, "uri", req.RequestURI, "status", rec.status, "took", time.Since(start))
	})
}
