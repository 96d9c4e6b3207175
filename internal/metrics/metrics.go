// Package metrics exposes Prometheus collectors for the relay pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	candidatesCollectedTotal prometheus.Counter
	newImportantTotal        prometheus.Counter
	notificationsTotal       *prometheus.CounterVec
	sourceErrorsTotal        *prometheus.CounterVec
	runDurationSeconds       prometheus.Histogram

	once sync.Once
)

// Init registers the collectors. It is safe to call multiple times.
func Init() {
	once.Do(func() {
		candidatesCollectedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_candidates_collected_total",
			Help: "Total raw candidates surviving relevance and future filters.",
		})
		newImportantTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_events_new_important_total",
			Help: "Total events that passed the dedup and importance gate.",
		})
		notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_notifications_total",
			Help: "Total notification dispatches, labeled by outcome.",
		}, []string{"outcome"})
		sourceErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_source_errors_total",
			Help: "Total source fetch or parse failures, labeled by region.",
		}, []string{"region"})
		runDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_run_duration_seconds",
			Help:    "Histogram of full pipeline run durations.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		})
	})
}

// AddCollected adds to the collected-candidate counter.
func AddCollected(n int) {
	if candidatesCollectedTotal != nil {
		candidatesCollectedTotal.Add(float64(n))
	}
}

// AddNewImportant adds to the new-important counter.
func AddNewImportant(n int) {
	if newImportantTotal != nil {
		newImportantTotal.Add(float64(n))
	}
}

// AddNotifications records dispatch outcomes.
func AddNotifications(outcome string, n int) {
	if notificationsTotal != nil {
		notificationsTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

// IncSourceError records one failed source read.
func IncSourceError(region string) {
	if sourceErrorsTotal != nil {
		sourceErrorsTotal.WithLabelValues(region).Inc()
	}
}

// ObserveRunDuration records one run's wall-clock duration in seconds.
func ObserveRunDuration(seconds float64) {
	if runDurationSeconds != nil {
		runDurationSeconds.Observe(seconds)
	}
}
