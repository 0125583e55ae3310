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

	// Evaluation engine

	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_evaluations_total",
			Help: "Solicitud evaluations by outcome (ok, not_found, bad_request, server_error)",
		},
		[]string{"outcome"},
	)

	VerdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_verdicts_total",
			Help: "Underwriting verdicts produced per rule category",
		},
		[]string{"category", "verdict"},
	)

	OfferIntegrityWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_offer_integrity_warnings_total",
			Help: "Offers or terms skipped because of inconsistent catalog data",
		},
		[]string{"reason"},
	)

	ReassignmentRecommendations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loan_reassignment_recommendations_total",
			Help: "Evaluations that recommended reassigning the solicitud",
		},
	)

	PolicyReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_policy_reloads_total",
			Help: "Underwriting policy reload attempts",
		},
		[]string{"result"},
	)

	BankCatalogCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_bank_catalog_cache_total",
			Help: "Bank catalog cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)
