package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamfinder_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "teamfinder_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	UsersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "teamfinder_users_registered_total",
			Help: "Total users registered",
		},
	)

	TeamsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "teamfinder_teams_created_total",
			Help: "Total teams created",
		},
	)

	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamfinder_messages_sent_total",
			Help: "Total chat messages sent",
		},
		[]string{"room_type"}, // "private" or "team"
	)

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamfinder_notifications_created_total",
			Help: "Total notifications created",
		},
		[]string{"type"},
	)

	SearchQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamfinder_search_queries_total",
			Help: "Total search queries",
		},
		[]string{"kind"}, // "users" or "teams"
	)

	// Websocket metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "teamfinder_ws_connections",
			Help: "Currently open websocket sessions",
		},
	)

	WSEventsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamfinder_ws_events_sent_total",
			Help: "Total websocket events fanned out",
		},
		[]string{"event"},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamfinder_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	// Infrastructure metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamfinder_cache_hits_total",
			Help: "Profile cache hits and misses",
		},
		[]string{"kind", "result"}, // kind: "user"/"team", result: "hit"/"miss"
	)
)
