package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the verification flow.
type Metrics struct {
	ChallengesIssued  prometheus.Counter
	ChallengesPassed  prometheus.Counter
	ChallengesFailed  prometheus.Counter
	ChallengeTimeouts prometheus.Counter
	RoleDrift         prometheus.Counter
}

// New creates and registers all verification metrics.
func New() *Metrics {
	return &Metrics{
		ChallengesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_challenges_issued_total",
			Help: "Total number of challenges issued to members",
		}),
		ChallengesPassed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_challenges_passed_total",
			Help: "Total number of correctly answered challenges",
		}),
		ChallengesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_challenges_failed_total",
			Help: "Total number of incorrectly answered challenges",
		}),
		ChallengeTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_challenge_timeouts_total",
			Help: "Total number of challenges expired by timeout",
		}),
		RoleDrift: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_role_drift_total",
			Help: "Role mirror mutations that failed after a committed store transition, leaving drift for reconciliation",
		}),
	}
}
