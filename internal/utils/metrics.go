package utils

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database Metrics
var DBQueryDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "db_query_duration_seconds",
	Help:    "Duration of database queries in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"query_type", "repository", "status"})

var DBQueryErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "db_query_errors_total",
	Help: "Total number of failed database queries.",
}, []string{"query_type", "repository"})

// TrackQuery starts timing a repository call. The returned func records the
// duration and, for a non-nil error, bumps the error counter.
func TrackQuery(queryType, repository string) func(err error) {
	start := time.Now()
	return func(err error) {
		status := "success"
		if err != nil {
			status = "error"
			DBQueryErrorsTotal.WithLabelValues(queryType, repository).Inc()
		}
		DBQueryDurationSeconds.WithLabelValues(queryType, repository, status).Observe(time.Since(start).Seconds())
	}
}
