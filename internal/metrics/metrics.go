package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrochat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agrochat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	MessagesAppended = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agrochat_messages_appended_total",
			Help: "Total messages persisted to the log",
		},
	)

	UsersProvisioned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agrochat_users_provisioned_total",
			Help: "Total participants auto-provisioned on first contact",
		},
	)

	SearchQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agrochat_search_queries_total",
			Help: "Total message search queries",
		},
	)

	// Relay metrics
	ConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agrochat_ws_connections_open",
			Help: "Currently open chat connections",
		},
	)

	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agrochat_rooms_active",
			Help: "Rooms with at least one live subscriber",
		},
	)

	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrochat_events_delivered_total",
			Help: "Frames fanned out to subscribers",
		},
		[]string{"event"}, // "message" or "new-message"
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrochat_events_dropped_total",
			Help: "Frames dropped because a subscriber could not keep up",
		},
		[]string{"event"},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrochat_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrochat_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)
)
