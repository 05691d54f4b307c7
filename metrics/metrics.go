// Package metrics provides Prometheus instrumentation for test runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/callwise/arena/results"
)

const namespace = "arena"

var (
	// testsTotal counts finished test cases by terminal status.
	testsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tests_total",
			Help:      "Total number of finished test cases by status",
		},
		[]string{"status"},
	)

	// turnsTotal counts conversation turns across all tests.
	turnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of conversation turns executed",
		},
	)

	// violationsTotal counts constraint violations by type and severity.
	violationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "constraint_violations_total",
			Help:      "Total constraint violations by type and severity",
		},
		[]string{"type", "severity"},
	)

	// issuesTotal counts tracker issues by type.
	issuesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issues_total",
			Help:      "Total conversational issues detected by type",
		},
		[]string{"type"},
	)

	// testDuration is a histogram of test case wall-clock duration.
	testDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "test_duration_seconds",
			Help:      "Histogram of test case duration in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	// agentLatency is a histogram of agent reply latency.
	agentLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_reply_seconds",
			Help:      "Histogram of agent reply latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// testsActive gauges tests currently in flight.
	testsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tests_active",
			Help:      "Number of test cases currently executing",
		},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		testsTotal,
		turnsTotal,
		violationsTotal,
		issuesTotal,
		testDuration,
		agentLatency,
		testsActive,
	}
)

// TestStarted marks a test case in flight.
func TestStarted() {
	testsActive.Inc()
}

// TestFinished records a finished test case's status, duration, turns,
// violations, and issues.
func TestFinished(r *results.TestResult) {
	testsActive.Dec()
	testsTotal.WithLabelValues(string(r.Status)).Inc()
	turnsTotal.Add(float64(r.TurnCount))
	testDuration.WithLabelValues(string(r.Status)).Observe(r.Duration.Seconds())
	for _, v := range r.Violations {
		violationsTotal.WithLabelValues(v.Type, string(v.Severity)).Inc()
	}
	for _, issue := range r.Issues {
		issuesTotal.WithLabelValues(string(issue.Type)).Inc()
	}
}

// AgentReply records one agent round-trip.
func AgentReply(latency time.Duration) {
	agentLatency.Observe(latency.Seconds())
}
