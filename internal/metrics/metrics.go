package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GiftEventsTotal counts classified gift events by direction
	GiftEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giftstream_gift_events_total",
			Help: "Total number of gift events processed",
		},
		[]string{"direction", "status"},
	)

	// UpdatesDiscarded counts updates that carried no gift action
	UpdatesDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "giftstream_updates_discarded_total",
			Help: "Total number of non-gift updates discarded",
		},
	)

	// AssetsMaterialized counts documents written to asset storage
	AssetsMaterialized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giftstream_assets_materialized_total",
			Help: "Total number of documents materialized",
		},
		[]string{"content_type"},
	)

	// AssetDownloadErrors counts failed document downloads
	AssetDownloadErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "giftstream_asset_download_errors_total",
			Help: "Total number of failed document downloads",
		},
	)

	// ReconcileRuns counts reconciliation passes by outcome
	ReconcileRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giftstream_reconcile_runs_total",
			Help: "Total number of reconciliation passes",
		},
		[]string{"status"},
	)

	// ReconcileDuration tracks how long a reconciliation pass takes
	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "giftstream_reconcile_duration_seconds",
			Help:    "Reconciliation pass duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ReconcileGiftsSeen tracks gifts discovered in the last pass
	ReconcileGiftsSeen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "giftstream_reconcile_gifts_seen",
			Help: "Number of gifts seen in the most recent reconciliation pass",
		},
	)

	// ListenerState reflects the update listener's connection state
	ListenerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "giftstream_listener_state",
			Help: "Listener state (0 disconnected, 1 connecting, 2 listening, 3 reconnecting, 4 disabled)",
		},
	)

	// EventsPublished counts downstream notifications by subject
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giftstream_events_published_total",
			Help: "Total number of downstream events published",
		},
		[]string{"subject", "status"},
	)
)
