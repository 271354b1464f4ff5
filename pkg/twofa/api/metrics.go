package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tendant/simple-finance/pkg/twofa"
)

// Metrics counts verification outcomes and 2FA state changes. A nil
// *Metrics records nothing.
type Metrics struct {
	verifications *prometheus.CounterVec
	stateChanges  *prometheus.CounterVec
}

// NewMetrics registers the counters with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "twofa_verifications_total",
			Help: "Second-factor code checks by kind (setup, totp, backup_code) and result.",
		}, []string{"kind", "result"}),
		stateChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "twofa_state_changes_total",
			Help: "Completed 2FA state changes by action.",
		}, []string{"action"}),
	}
}

func (m *Metrics) observeVerification(kind string, result twofa.VerifyResult) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(kind, result.String()).Inc()
}

func (m *Metrics) observeStateChange(action string) {
	if m == nil {
		return
	}
	m.stateChanges.WithLabelValues(action).Inc()
}
