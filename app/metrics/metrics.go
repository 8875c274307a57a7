// Package metrics holds the Prometheus collectors of the gateway and the worker pool.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "wp_extractor"

type Metrics struct {
	// Gateway
	RequestsTotal   *prometheus.CounterVec
	JobsSubmitted   prometheus.Counter
	SyncPostsTotal  prometheus.Counter
	RequestDuration *prometheus.HistogramVec

	// Worker pool
	JobsFinished    *prometheus.CounterVec
	JobDuration     prometheus.Histogram
	JobsRunning     prometheus.Gauge
	WorkersRecycled *prometheus.CounterVec
	JobsPurged      prometheus.Counter
}

// New creates and registers the collectors. A nil registerer means the default one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		JobsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "api",
			Name:      "jobs_submitted_total",
			Help:      "Extraction jobs accepted for background processing",
		}),
		SyncPostsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "api",
			Name:      "sync_posts_total",
			Help:      "Posts returned by synchronous extractions",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 10), // 5ms to ~22min
		}, []string{"route"}),

		JobsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "worker",
			Name:      "jobs_finished_total",
			Help:      "Extraction jobs finished by outcome",
		}, []string{"outcome"}),
		JobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "worker",
			Name:      "job_duration_seconds",
			Help:      "Duration of extraction jobs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14), // 0.1s to ~27min
		}),
		JobsRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "worker",
			Name:      "jobs_running",
			Help:      "Extraction jobs currently running",
		}),
		WorkersRecycled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "worker",
			Name:      "recycled_total",
			Help:      "Workers replaced, by reason",
		}, []string{"reason"}),
		JobsPurged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "worker",
			Name:      "jobs_purged_total",
			Help:      "Expired job records deleted from the store",
		}),
	}
}

// Outcome labels of JobsFinished.
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeHardLimit  = "hard_limit"
	OutcomeDeadLetter = "max_deliveries"
)
