package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ClassificationsTotal counts classification attempts by backend and outcome
	// (success or an error kind).
	ClassificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rockclassifier",
		Name:      "classifications_total",
		Help:      "Total number of classification requests, labeled by backend and result.",
	}, []string{"backend", "result"})

	// ClassificationDurationSeconds is the time spent waiting on the vision backend.
	ClassificationDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rockclassifier",
		Name:      "classification_duration_seconds",
		Help:      "Round-trip time of a single call to the vision backend.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"backend"})

	// UploadBytes is the size distribution of accepted uploads.
	UploadBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rockclassifier",
		Name:      "upload_bytes",
		Help:      "Size of uploaded image files in bytes.",
		Buckets:   prometheus.ExponentialBuckets(16<<10, 2, 11),
	})
)

// Register registers metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ClassificationsTotal,
			ClassificationDurationSeconds,
			UploadBytes,
		)
	})
}

// ResultUnknown labels failures that carry no error kind.
const ResultUnknown = "unknown"

// ResultLabel is "success" for a nil error, otherwise the error kind.
func ResultLabel(kind string) string {
	if kind == "" {
		return "success"
	}
	return kind
}
