package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corexia",
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by result",
		},
		[]string{"job", "result"},
	)

	JobLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "corexia",
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Duration of scheduled jobs",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"job"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(JobRuns, JobLatency)
	})
}

// ObserveJob records one job run. result is "ok", "error" or "skipped".
func ObserveJob(job, result string, took time.Duration) {
	JobRuns.WithLabelValues(job, result).Inc()
	if result != "skipped" {
		JobLatency.WithLabelValues(job).Observe(took.Seconds())
	}
}
