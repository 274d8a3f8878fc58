package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Node outcomes recorded by NodesRecovered
const (
	OutcomeHealthy   = "healthy"   // already running, DNS re-asserted
	OutcomeRestarted = "restarted" // restarted and fixed up
	OutcomeFailed    = "failed"    // restart itself failed
)

// Pass outcomes recorded by PassesTotal
const (
	PassCompleted = "completed"
	PassSkipped   = "skipped" // empty or absent store
	PassFatal     = "fatal"
)

var (
	// Pass metrics
	PassDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cluster_agent_pass_duration_seconds",
			Help:    "Duration of a recovery pass in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	PassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluster_agent_passes_total",
			Help: "Total number of recovery passes by outcome",
		},
		[]string{"outcome"},
	)

	LastPassTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cluster_agent_last_pass_timestamp_seconds",
			Help: "Unix time the last recovery pass finished",
		},
	)

	// Node metrics
	NodesRecovered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluster_agent_nodes_total",
			Help: "Nodes visited by recovery passes by role and outcome",
		},
		[]string{"role", "outcome"},
	)

	StepErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluster_agent_step_errors_total",
			Help: "Non-fatal step errors by step",
		},
		[]string{"step"},
	)

	ReadinessWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cluster_agent_readiness_wait_seconds",
			Help:    "Time spent waiting for a dependency to become ready",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"role"},
	)

	// Image metrics
	ImagePulls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluster_agent_image_pulls_total",
			Help: "Image pulls by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(PassDuration)
	prometheus.MustRegister(PassesTotal)
	prometheus.MustRegister(LastPassTimestamp)
	prometheus.MustRegister(NodesRecovered)
	prometheus.MustRegister(StepErrors)
	prometheus.MustRegister(ReadinessWait)
	prometheus.MustRegister(ImagePulls)
}

// RecordStepError counts a logged, non-fatal error in the named step
func RecordStepError(step string) {
	StepErrors.WithLabelValues(step).Inc()
}

// RecordNode counts one node visited by a pass
func RecordNode(role, outcome string) {
	NodesRecovered.WithLabelValues(role, outcome).Inc()
}

// WriteTextfile writes every registered metric to path in the text
// exposition format, for node_exporter's textfile collector. The agent runs
// as a one-shot process, so there is no endpoint to scrape.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
