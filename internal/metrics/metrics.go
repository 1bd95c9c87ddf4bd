package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cabo"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	leadsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leads_submitted_total",
			Help:      "Accepted lead form submissions by form type.",
		},
		[]string{"form"},
	)

	outboxDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_deliveries_total",
			Help:      "Outbox task attempts by task type and result.",
		},
		[]string{"task_type", "result"},
	)

	migrationRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migration_rows_total",
			Help:      "Rows handled by the data migration by table and result.",
		},
		[]string{"table", "result"},
	)

	imagesOptimized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_optimized_total",
			Help:      "Images handled by the optimizer by result.",
		},
		[]string{"result"},
	)

	imageBytesSaved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_bytes_saved_total",
			Help:      "Bytes saved by image recompression.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			leadsSubmitted,
			outboxDeliveries,
			migrationRows,
			imagesOptimized,
			imageBytesSaved,
		)
	})
}

func ObserveHTTP(method, route string, status int, dur time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(route).Observe(dur.Seconds())
}

func IncLead(form string) {
	leadsSubmitted.WithLabelValues(form).Inc()
}

func IncOutbox(taskType, result string) {
	outboxDeliveries.WithLabelValues(taskType, result).Inc()
}

func AddMigrationRows(table, result string, n int) {
	if n <= 0 {
		return
	}
	migrationRows.WithLabelValues(table, result).Add(float64(n))
}

func IncImage(result string) {
	imagesOptimized.WithLabelValues(result).Inc()
}

func AddImageBytesSaved(n int64) {
	if n <= 0 {
		return
	}
	imageBytesSaved.Add(float64(n))
}
