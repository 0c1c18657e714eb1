package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for credential lifecycle, workflow and
// verification operations.
type Metrics struct {
	CredentialsIssued      prometheus.Counter
	CredentialTransitions  *prometheus.CounterVec
	AffiliationTransitions *prometheus.CounterVec
	AccessTransitions      *prometheus.CounterVec

	VerificationOutcomes *prometheus.CounterVec
	VerificationLatency  prometheus.Histogram
	LedgerCallErrors     *prometheus.CounterVec
	CandidatesScanned    prometheus.Histogram
}

// New registers and returns the platform metrics collectors.
func New() *Metrics {
	return &Metrics{
		CredentialsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "legitify_credentials_issued_total",
			Help: "Total number of credentials issued and anchored",
		}),
		CredentialTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "legitify_credential_transitions_total",
			Help: "Credential lifecycle transitions, labeled by target status",
		}, []string{"status"}),
		AffiliationTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "legitify_affiliation_transitions_total",
			Help: "Affiliation workflow transitions, labeled by target status",
		}, []string{"status"}),
		AccessTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "legitify_access_transitions_total",
			Help: "Access grant workflow transitions, labeled by target status",
		}, []string{"status"}),
		VerificationOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "legitify_verification_outcomes_total",
			Help: "Document verification outcomes, labeled by result",
		}, []string{"outcome"}),
		VerificationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "legitify_verification_latency_seconds",
			Help:    "End-to-end latency of document verification scans",
			Buckets: prometheus.DefBuckets,
		}),
		LedgerCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "legitify_ledger_call_errors_total",
			Help: "Ledger client call failures, labeled by operation",
		}, []string{"operation"}),
		CandidatesScanned: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "legitify_verification_candidates_scanned",
			Help:    "Number of candidate credentials evaluated per verification",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		}),
	}
}

func (m *Metrics) IncrementCredentialsIssued() {
	m.CredentialsIssued.Inc()
}

func (m *Metrics) IncrementCredentialTransition(status string) {
	m.CredentialTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementAffiliationTransition(status string) {
	m.AffiliationTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementAccessTransition(status string) {
	m.AccessTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementVerificationOutcome(outcome string) {
	m.VerificationOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveVerificationLatency(seconds float64) {
	m.VerificationLatency.Observe(seconds)
}

func (m *Metrics) IncrementLedgerCallError(operation string) {
	m.LedgerCallErrors.WithLabelValues(operation).Inc()
}

func (m *Metrics) ObserveCandidatesScanned(count float64) {
	m.CandidatesScanned.Observe(count)
}
