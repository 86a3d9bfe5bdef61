// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsCompleted counts pipeline runs that reached a grounded answer.
	RunsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "contextchat_runs_completed_total",
		Help: "Total number of pipeline runs completed with an answer",
	})

	// RunsFailed counts terminally failed runs by taxonomy code.
	RunsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contextchat_runs_failed_total",
		Help: "Total number of pipeline runs ended by a terminal error",
	}, []string{"error_code"})

	// StageDuration observes wall time per pipeline stage.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contextchat_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	// ToolCallRetries counts retry attempts against the knowledge tool.
	ToolCallRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "contextchat_tool_call_retries_total",
		Help: "Total number of knowledge tool call retries",
	})

	// HistoryWriteFailures counts best-effort persistence failures.
	HistoryWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "contextchat_history_write_failures_total",
		Help: "Total number of failed conversation history writes",
	})
)
