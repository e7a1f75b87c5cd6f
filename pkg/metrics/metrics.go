package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Connection metrics
	ReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rtdb_reconnects_total",
			Help: "Total number of reconnect attempts made by the persistent connection",
		},
	)

	ConnectionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rtdb_connection_state",
			Help: "Current connection state (0=disconnected .. 5=interrupted), see pkg/conn.State",
		},
	)

	ConnectDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rtdb_connect_duration_seconds",
			Help:    "Time from host resolution through the websocket dial (before authentication)",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Sync tree / listen metrics
	ActiveListens = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rtdb_active_listens",
			Help: "Number of consolidated server listens currently registered",
		},
	)

	EventDispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rtdb_event_dispatch_duration_seconds",
			Help:    "Time spent running one event-target batch, by event type",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event_type"},
	)

	// Write queue metrics
	PendingWrites = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rtdb_pending_writes",
			Help: "Number of write-queue records awaiting a server ack or revert",
		},
	)

	WriteOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtdb_write_outcomes_total",
			Help: "Total writes resolved, by outcome (ok, revert)",
		},
		[]string{"outcome"},
	)

	TransactionRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rtdb_transaction_retries_total",
			Help: "Total optimistic transaction re-runs due to a hash-precondition mismatch",
		},
	)

	// Persistence metrics
	CacheBytesUsed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rtdb_persistence_bytes_used",
			Help: "Estimated bytes used by tracked-query cache entries",
		},
	)

	CacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rtdb_persistence_evictions_total",
			Help: "Total tracked queries evicted to stay under the persistence byte budget",
		},
	)
)

func init() {
	prometheus.MustRegister(ReconnectsTotal)
	prometheus.MustRegister(ConnectionState)
	prometheus.MustRegister(ConnectDuration)
	prometheus.MustRegister(ActiveListens)
	prometheus.MustRegister(EventDispatchDuration)
	prometheus.MustRegister(PendingWrites)
	prometheus.MustRegister(WriteOutcomesTotal)
	prometheus.MustRegister(TransactionRetriesTotal)
	prometheus.MustRegister(CacheBytesUsed)
	prometheus.MustRegister(CacheEvictionsTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
