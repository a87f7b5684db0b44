// Package metrics holds the engine's Prometheus collectors, registered on the
// default registry and served at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// graphRequests counts graph builds.
	// Labels: toolkit_type, graph_range, status (success, error)
	graphRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toolkit_engine",
		Subsystem: "graph",
		Name:      "requests_total",
		Help:      "Graph builds by toolkit type, range and status",
	}, []string{"toolkit_type", "graph_range", "status"})

	// graphDuration measures graph build latency including averages.
	// Labels: graph_range
	graphDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "toolkit_engine",
		Subsystem: "graph",
		Name:      "duration_seconds",
		Help:      "Graph build latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"graph_range"})

	// answersSaved counts persisted toolkit answers.
	// Labels: toolkit_type
	answersSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toolkit_engine",
		Subsystem: "answers",
		Name:      "saved_total",
		Help:      "Toolkit answers persisted",
	}, []string{"toolkit_type"})

	// levelUnlocks counts unlock attempts.
	// Labels: result (created, duplicate)
	levelUnlocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toolkit_engine",
		Subsystem: "goals",
		Name:      "level_unlocks_total",
		Help:      "Goal level unlock attempts by result",
	}, []string{"result"})

	// eventsPublished counts domain events handed to the bus.
	// Labels: event, status (success, error)
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toolkit_engine",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Domain events published by status",
	}, []string{"event", "status"})

	dependencyUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "toolkit_engine",
		Name:      "dependency_up",
		Help:      "1 when the last health check of a dependency passed",
	}, []string{"dependency"})
)

// RecordGraph records one graph build
func RecordGraph(toolkitType, graphRange string, started time.Time, err error) {
	graphRequests.WithLabelValues(toolkitType, graphRange, status(err)).Inc()
	graphDuration.WithLabelValues(graphRange).Observe(time.Since(started).Seconds())
}

// RecordAnswerSaved records a persisted answer
func RecordAnswerSaved(toolkitType string) {
	answersSaved.WithLabelValues(toolkitType).Inc()
}

// RecordUnlock records an unlock attempt; created is false for a duplicate
func RecordUnlock(created bool) {
	result := "created"
	if !created {
		result = "duplicate"
	}
	levelUnlocks.WithLabelValues(result).Inc()
}

// RecordEventPublished records a publish attempt
func RecordEventPublished(event string, err error) {
	eventsPublished.WithLabelValues(event, status(err)).Inc()
}

// RecordDependency records the outcome of a dependency health check
func RecordDependency(name string, err error) {
	up := 1.0
	if err != nil {
		up = 0
	}
	dependencyUp.WithLabelValues(name).Set(up)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
