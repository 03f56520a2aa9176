// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

var (
	LoanOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_operations_total",
			Help: "Loan service operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	LoanTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_status_transitions_total",
			Help: "Applied loan status transitions",
		},
		[]string{"from", "to"},
	)

	QuestionsCloned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loan_questions_cloned_total",
			Help: "Template questions cloned into loan applications",
		},
	)

	SideEffectFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_side_effect_failures_total",
			Help: "Post-commit notification and audit failures",
		},
		[]string{"effect"},
	)
)

// Outcome labels an operation result by error kind, or "ok".
func Outcome(kind string) string {
	if kind == "" {
		return "ok"
	}
	return kind
}
