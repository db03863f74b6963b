package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Collection metrics
	CollectionCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vinecast_collection_cycles_total",
			Help: "Total number of collection cycles",
		},
		[]string{"status"}, // status: ok, error
	)

	CollectionCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vinecast_collection_cycle_duration_seconds",
			Help:    "Duration of a full collection cycle",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vinecast_provider_fetch_total",
			Help: "Total number of provider fetches",
		},
		[]string{"location", "status"}, // status: ok, error
	)

	// Alert metrics
	AlertsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vinecast_alerts_submitted_total",
			Help: "Total number of alert candidates submitted",
		},
		[]string{"kind", "outcome"}, // outcome: created, refreshed
	)

	AlertsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vinecast_alerts_expired_total",
			Help: "Total number of alerts deactivated by the expiry sweep",
		},
	)

	// Notification hub metrics
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vinecast_ws_connected_clients",
			Help: "Number of currently connected websocket clients",
		},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vinecast_events_published_total",
			Help: "Total number of events published to the hub",
		},
		[]string{"type"},
	)

	EventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vinecast_events_dropped_total",
			Help: "Total number of events dropped because a client buffer was full",
		},
	)
)
