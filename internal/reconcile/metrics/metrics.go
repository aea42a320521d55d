package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for reconciliation passes.
type Metrics struct {
	Passes   *prometheus.CounterVec
	Repairs  prometheus.Counter
	Failures prometheus.Counter
	Expired  prometheus.Counter
	Duration prometheus.Histogram
}

// New creates and registers all reconciliation metrics.
func New() *Metrics {
	return &Metrics{
		Passes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_reconcile_passes_total",
			Help: "Total reconciliation passes by kind (audit, sweep)",
		}, []string{"kind"}),
		Repairs: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_reconcile_repairs_total",
			Help: "Role mirror mutations applied to repair drift",
		}),
		Failures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_reconcile_failures_total",
			Help: "Members whose reconciliation failed and was skipped",
		}),
		Expired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_reconcile_expired_total",
			Help: "Verified members expired by the inactivity sweep",
		}),
		Duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatekeeper_reconcile_duration_seconds",
			Help:    "Duration of reconciliation passes",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
