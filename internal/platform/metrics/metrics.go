package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	CodesIssued           prometheus.Counter
	Verifications         *prometheus.CounterVec
	LockoutsTriggered     prometheus.Counter
	ApprovalEvents        *prometheus.CounterVec
	ApprovalEventsDropped prometheus.Counter
	HoldingsCheckDuration prometheus.Histogram
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics on a caller-provided registerer. Tests pass
// a fresh registry so repeated construction does not panic on duplicates.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CodesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "bankid_verification_codes_issued_total",
			Help: "Total number of verification codes generated",
		}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bankid_verifications_total",
			Help: "Verification attempts by outcome",
		}, []string{"outcome"}),
		LockoutsTriggered: factory.NewCounter(prometheus.CounterOpts{
			Name: "bankid_verification_lockouts_total",
			Help: "Total number of lockouts triggered by exhausted attempts",
		}),
		ApprovalEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bankid_registration_approval_events_total",
			Help: "Registration approval events processed by flow and decision",
		}, []string{"flow", "decision"}),
		ApprovalEventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "bankid_registration_approval_events_dropped_total",
			Help: "Malformed or unroutable approval events dropped",
		}),
		HoldingsCheckDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bankid_holdings_check_duration_seconds",
			Help:    "Latency of the external active-holdings check",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}
