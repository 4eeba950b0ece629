// Package metrics holds the client's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Submitted      prometheus.Counter
	SubmitFailures prometheus.Counter
	Responses      *prometheus.CounterVec
	PollErrors     prometheus.Counter
	Pending        prometheus.Gauge
	QueueDepth     prometheus.Gauge
	UserLookups    *prometheus.CounterVec
	HistoryPages   *prometheus.CounterVec
	ChatEvents     *prometheus.CounterVec
}

// New registers all collectors on reg. A nil reg uses a private registry,
// which keeps tests independent of each other.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		Submitted: f.NewCounter(prometheus.CounterOpts{
			Name: "tgdesk_requests_submitted_total",
			Help: "Requests handed to the backend.",
		}),
		SubmitFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "tgdesk_requests_rejected_total",
			Help: "Requests the backend handle refused to enqueue.",
		}),
		Responses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tgdesk_responses_total",
			Help: "Backend objects received, by routing outcome.",
		}, []string{"route"}),
		PollErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "tgdesk_poll_errors_total",
			Help: "Failed backend polls.",
		}),
		Pending: f.NewGauge(prometheus.GaugeOpts{
			Name: "tgdesk_pending_requests",
			Help: "Requests waiting for a reply.",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "tgdesk_ui_queue_depth",
			Help: "Tasks waiting for the presentation goroutine.",
		}),
		UserLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tgdesk_user_lookups_total",
			Help: "User directory lookups by result.",
		}, []string{"result"}),
		HistoryPages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tgdesk_history_pages_total",
			Help: "History page requests by outcome.",
		}, []string{"outcome"}),
		ChatEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tgdesk_chat_events_total",
			Help: "Chat list events applied, by kind.",
		}, []string{"kind"}),
	}
}

const (
	RouteReply  = "reply"
	RoutePush   = "push"
	RouteOrphan = "orphan"

	LookupHit       = "hit"
	LookupMiss      = "miss"
	LookupCoalesced = "coalesced"
	LookupNegative  = "negative"

	PageLoaded    = "loaded"
	PageExhausted = "exhausted"
	PageFailed    = "failed"
	PageStale     = "stale"
)
