package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	// Source call metrics
	SourceCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "financeagent_source_calls_total",
			Help: "Total number of external source calls",
		},
		[]string{"source", "outcome"},
	)

	SourceCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "financeagent_source_call_duration_seconds",
			Help:    "External source call duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		},
		[]string{"source"},
	)

	// Summary metrics
	Summaries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "financeagent_summaries_total",
			Help: "Total number of summaries requested",
		},
		[]string{"outcome"},
	)

	Aggregations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "financeagent_aggregations_total",
			Help: "Total number of evidence aggregations run",
		},
	)
)

// ObserveSourceCall records the outcome and latency of one source call
func ObserveSourceCall(source string, started time.Time, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	SourceCalls.WithLabelValues(source, outcome).Inc()
	SourceCallDuration.WithLabelValues(source).Observe(time.Since(started).Seconds())
}

// ObserveSummary records whether a summary was produced
func ObserveSummary(err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	Summaries.WithLabelValues(outcome).Inc()
}
