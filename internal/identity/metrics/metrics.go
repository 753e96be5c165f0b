// Package metrics provides Prometheus metrics for the identity anchor registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all registry metrics.
type Metrics struct {
	SubmissionsTotal *prometheus.CounterVec // Submissions by result (created, updated, rejected, failed)

	LedgerWritesTotal   *prometheus.CounterVec // Ledger writes by operation and outcome
	LedgerWriteDuration prometheus.Histogram   // Ledger write latency including fallback attempts

	StoreOpDuration *prometheus.HistogramVec // Store operation latency by op and backend
	MirrorFailures  prometheus.Counter       // File backend mirror write failures

	VerificationsTotal *prometheus.CounterVec // Verifications by match outcome
	QRIssuedTotal      prometheus.Counter     // QR payloads rendered
}

// New creates a new Metrics instance with all metrics registered.
func New() *Metrics {
	return &Metrics{
		SubmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "yatri_identity_submissions_total",
			Help: "Total number of KYC submissions by result",
		}, []string{"result"}),

		LedgerWritesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "yatri_ledger_writes_total",
			Help: "Total number of ledger anchor writes by operation and outcome",
		}, []string{"op", "outcome"}),

		LedgerWriteDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "yatri_ledger_write_duration_seconds",
			Help:    "Duration of ledger anchor writes including fallback attempts",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		StoreOpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "yatri_identity_store_op_duration_seconds",
			Help:    "Duration of identity store operations by op and backend",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
		}, []string{"op", "backend"}),

		MirrorFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "yatri_identity_file_mirror_failures_total",
			Help: "Total number of file backend mirror write failures",
		}),

		VerificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "yatri_identity_verifications_total",
			Help: "Total number of verification reads by match outcome",
		}, []string{"match"}),

		QRIssuedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "yatri_identity_qr_issued_total",
			Help: "Total number of QR payloads rendered",
		}),
	}
}
