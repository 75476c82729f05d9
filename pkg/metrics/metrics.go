package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Region metrics
	RegionsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pebblevault_regions_total",
			Help: "Total number of loaded regions",
		},
	)

	ObjectsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pebblevault_objects_total",
			Help: "Total number of indexed objects by region",
		},
		[]string{"region_id"},
	)

	// Operation counters
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pebblevault_operations_total",
			Help: "Total number of vault operations by kind and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// Operation latency
	AddObjectDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pebblevault_add_object_duration_seconds",
			Help:    "Time taken to add an object, including backend persistence",
			Buckets: prometheus.DefBuckets,
		},
	)

	QueryRegionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pebblevault_query_region_duration_seconds",
			Help:    "Time taken to run a region range query",
			Buckets: prometheus.DefBuckets,
		},
	)

	TransferPlayerDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pebblevault_transfer_player_duration_seconds",
			Help:    "Time taken to move an object between regions",
			Buckets: prometheus.DefBuckets,
		},
	)

	PersistToDiskDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pebblevault_persist_to_disk_duration_seconds",
			Help:    "Time taken to clear the backend's points and re-upsert every region's points",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
		},
	)

	RecoveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pebblevault_recovery_duration_seconds",
			Help:    "Time taken to rebuild in-memory indexes from the backend at startup",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
		},
	)

	// Backend health
	BackendUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pebblevault_backend_up",
			Help: "Set to 1 once the configured persistence backend is open and the vault has recovered; not updated afterwards",
		},
	)
)

func init() {
	prometheus.MustRegister(RegionsTotal)
	prometheus.MustRegister(ObjectsTotal)
	prometheus.MustRegister(OperationsTotal)
	prometheus.MustRegister(AddObjectDuration)
	prometheus.MustRegister(QueryRegionDuration)
	prometheus.MustRegister(TransferPlayerDuration)
	prometheus.MustRegister(PersistToDiskDuration)
	prometheus.MustRegister(RecoveryDuration)
	prometheus.MustRegister(BackendUp)
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

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
