// Package metrics is the single source of truth for the server's Prometheus
// metric names, labels, and help strings. Everything registers against the
// default registry via promauto; the /metrics route serves it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chatserver"

// ConnectionsActive tracks currently open client connections, authenticated
// or not.
var ConnectionsActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections_active",
		Help:      "Number of currently open client connections.",
	},
)

// SessionsActive tracks authenticated sessions in the registry.
var SessionsActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Number of authenticated sessions in the registry.",
	},
)

// EventsDispatchedTotal counts events drained from the dispatch queue.
// Label:
//   - kind: the event kind (e.g. "channelCreate")
var EventsDispatchedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dispatched_total",
		Help:      "Total number of events routed to a handler.",
	},
	[]string{"kind"},
)

// RequestsFailedTotal counts domain validation failures answered with a
// requestFailed reply.
// Label:
//   - kind: the rejected request's kind
var RequestsFailedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_failed_total",
		Help:      "Total number of requests rejected by a handler.",
	},
	[]string{"kind"},
)

// PersistWritesTotal counts durable writes drained from the persistence
// queue.
// Label:
//   - kind: "user", "channel", "channel_delete", or "avatar"
var PersistWritesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persist_writes_total",
		Help:      "Total number of persistence writes flushed.",
	},
	[]string{"kind"},
)

// PersistErrorsTotal counts persistence writes that failed. Fire-and-forget
// writes are not retried, so this is the only trace a lost write leaves.
var PersistErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persist_errors_total",
		Help:      "Total number of persistence writes that failed.",
	},
)
