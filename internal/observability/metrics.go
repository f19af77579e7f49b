package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the escrow engine.
type Metrics struct {
	// --- Engine ---
	EngineOpsApplied  *prometheus.CounterVec
	EngineOpsRejected *prometheus.CounterVec
	EngineOpDuration  *prometheus.HistogramVec
	EngineSequence    prometheus.Gauge

	// --- Registry & ledger gauges ---
	ProvidersRegistered prometheus.Gauge
	ProvidersAvailable  prometheus.Gauge
	TokensTradeable     prometheus.Gauge
	OrdersTotal         prometheus.Gauge
	OrdersByStatus      *prometheus.CounterVec
	CustodyAmount       *prometheus.GaugeVec

	// --- Channel & backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ChannelUtilization  *prometheus.GaugeVec
	PublishDrops        prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistOrdersWritten prometheus.Counter
	PersistBatchSize     prometheus.Histogram
	PersistBatchDur      prometheus.Histogram
	PersistErrors        *prometheus.CounterVec
	PersistRetry         prometheus.Counter
	PersistLastSequence  prometheus.Gauge

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec

	// --- Price feed ---
	PriceFeedRequests *prometheus.CounterVec
	PriceFeedDuration prometheus.Histogram
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		EngineOpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "p2pex_engine_ops_applied_total",
			Help: "Operations successfully applied by the engine",
		}, []string{"operation"}),

		EngineOpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "p2pex_engine_ops_rejected_total",
			Help: "Operations rejected by a guard",
		}, []string{"operation", "reason"}),

		EngineOpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "p2pex_engine_op_duration_seconds",
			Help:    "Time to apply a single operation",
			Buckets: latencyBuckets,
		}, []string{"operation"}),

		EngineSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "p2pex_engine_sequence",
			Help: "Current global event sequence number",
		}),

		ProvidersRegistered: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "p2pex_providers_registered",
			Help: "Currently registered providers",
		}),

		ProvidersAvailable: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "p2pex_providers_available",
			Help: "Providers currently marked available",
		}),

		TokensTradeable: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "p2pex_tokens_tradeable",
			Help: "Tokens listed as tradeable",
		}),

		OrdersTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "p2pex_orders_total",
			Help: "Total orders ever created",
		}),

		OrdersByStatus: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "p2pex_orders_transitions_total",
			Help: "Order transitions by resulting status",
		}, []string{"status"}),

		CustodyAmount: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "p2pex_custody_amount",
			Help: "Total escrowed amount per token (base units)",
		}, []string{"token"}),

		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "p2pex_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "p2pex_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "p2pex_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "p2pex_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "p2pex_persist_backpressure_total",
			Help: "Times the engine blocked on the persist channel",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "p2pex_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistOrdersWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "p2pex_persist_orders_written_total",
			Help: "Order rows written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "p2pex_persist_batch_size",
			Help:    "Events per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "p2pex_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "p2pex_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "p2pex_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "p2pex_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "p2pex_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "p2pex_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "p2pex_query_errors_total",
			Help: "Query errors",
		}, []string{"endpoint", "code"}),

		PriceFeedRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "p2pex_price_feed_requests_total",
			Help: "Price feed lookups",
		}, []string{"status"}),

		PriceFeedDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "p2pex_price_feed_duration_seconds",
			Help:    "Price feed lookup latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
