package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all listsync metrics
const namespace = "listsync"

// Registry is the global Prometheus registry for all metrics
var Registry = prometheus.NewRegistry()

// AppInfo is a gauge that exposes application version information as labels
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// Realtime metrics

// RealtimeConnections tracks currently connected live clients
var RealtimeConnections = promauto.With(Registry).NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "realtime_connections",
		Help:      "Number of live connections registered with the broadcaster",
	},
)

// RealtimeMemberships tracks scope channel joins and leaves
var RealtimeMemberships = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_membership_changes_total",
		Help:      "Total number of scope channel membership changes",
	},
	[]string{"op"}, // op: join|leave
)

// BroadcastsTotal counts events published per channel kind
var BroadcastsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcasts_total",
		Help:      "Total number of events published to broadcast channels",
	},
	[]string{"event", "channel"}, // channel: global|scope
)

// BroadcastDeliveries counts envelopes queued to individual connections
var BroadcastDeliveries = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcast_deliveries_total",
		Help:      "Total number of envelopes queued to live connections",
	},
)

// BroadcastDropped counts envelopes dropped because a connection queue was full
var BroadcastDropped = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcast_dropped_total",
		Help:      "Total number of envelopes dropped for slow connections",
	},
)

// BroadcastErrors counts transport publish failures
var BroadcastErrors = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcast_errors_total",
		Help:      "Total number of transport publish failures",
	},
	[]string{"transport"},
)

// Domain metrics

// MutationsTotal counts coordinator mutations by entity, operation and outcome
var MutationsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mutations_total",
		Help:      "Total number of list and item mutations",
	},
	[]string{"entity", "op", "outcome"}, // outcome: ok|not_found|invalid|unauthenticated|forbidden|error
)

// ActivityAppended counts audit records written by action
var ActivityAppended = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "activity_appended_total",
		Help:      "Total number of activity log records appended",
	},
	[]string{"action"},
)

// Init registers runtime collectors and sets version information
func Init(version, commit, buildDate string) {
	// Register default Go metrics (memory, goroutines, GC, etc.)
	Registry.MustRegister(collectors.NewGoCollector())

	// Register process metrics (CPU, memory, file descriptors)
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}
