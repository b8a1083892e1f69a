// Package metrics holds the Prometheus collectors of the chat backend. All of
// them live in the default registry and are exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vesper"

// MessagesPersistedTotal counts messages stored, by kind ("text" or "file").
var MessagesPersistedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_persisted_total",
		Help:      "Total number of chat messages persisted, by kind.",
	},
	[]string{"kind"},
)

// MessagePersistFailuresTotal counts appends that failed in the store.
var MessagePersistFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "message_persist_failures_total",
		Help:      "Total number of chat messages that could not be persisted.",
	},
)

var RealtimeConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "realtime_connections",
		Help:      "Current number of open realtime connections.",
	},
)

// RealtimeEventsTotal counts inbound realtime events.
// Label:
//   - type: event name ("join", "message", "typing") or "unknown"
var RealtimeEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_events_total",
		Help:      "Total number of inbound realtime events, by type.",
	},
	[]string{"type"},
)

var OnlineUsers = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "online_users",
		Help:      "Current number of users marked online.",
	},
)

// HTTPRequestDuration measures API latency.
// Labels:
//   - route: the gin route template (e.g. "/api/v1/messages/:chatId")
//   - status: the response status code
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)
