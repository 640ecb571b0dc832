// Package metrics holds the Prometheus collectors for research runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "deep_research"

var (
	modelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "model_calls_total",
		Help:      "Completion service calls by outcome (ok, auth_error, error)",
	}, []string{"outcome"})

	modelCallDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "model_call_duration_seconds",
		Help:      "Latency of completion service calls",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	searchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "search_requests_total",
		Help:      "Search provider requests by outcome (ok, error)",
	}, []string{"outcome"})

	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "search_request_duration_seconds",
		Help:      "Latency of single search provider requests",
		Buckets:   prometheus.DefBuckets,
	})

	evidenceItems = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "evidence_items_total",
		Help:      "Evidence items assigned a citation index",
	})

	duplicateResults = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "duplicate_results_total",
		Help:      "Search results dropped because their title and URL were already cited",
	})

	toolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tool_calls_total",
		Help:      "Tool invocations by tool name and outcome (ok, unknown, invalid)",
	}, []string{"tool", "outcome"})

	sessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_total",
		Help:      "Research runs by starting state",
	}, []string{"start"})
)

// ObserveModelCall records one completion call
func ObserveModelCall(outcome string, elapsed time.Duration) {
	modelCalls.WithLabelValues(outcome).Inc()
	modelCallDuration.Observe(elapsed.Seconds())
}

// ObserveSearch records one provider request
func ObserveSearch(ok bool, elapsed time.Duration) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	searchRequests.WithLabelValues(outcome).Inc()
	searchDuration.Observe(elapsed.Seconds())
}

// AddEvidence counts newly indexed evidence items
func AddEvidence(n int) {
	evidenceItems.Add(float64(n))
}

// AddDuplicates counts results dropped by deduplication
func AddDuplicates(n int) {
	duplicateResults.Add(float64(n))
}

// ObserveToolCall records one dispatched tool invocation
func ObserveToolCall(tool, outcome string) {
	toolCalls.WithLabelValues(tool, outcome).Inc()
}

// ObserveSessionStart records how a run began (fresh, resumed, complete)
func ObserveSessionStart(start string) {
	sessions.WithLabelValues(start).Inc()
}
