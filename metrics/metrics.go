// Package metrics exposes Prometheus counters for decision traffic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlekit",
		Name:      "decisions_total",
		Help:      "Entitlement decisions by billing state, category and outcome.",
	}, []string{"billing_state", "category", "outcome"})

	hardDenialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlekit",
		Name:      "hard_denials_total",
		Help:      "Hard denials carrying a machine-readable code.",
	}, []string{"code"})

	overrideGrantsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "entitlekit",
		Name:      "override_grants_total",
		Help:      "Decisions granted through an administrative override.",
	})

	snapshotCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlekit",
		Name:      "snapshot_cache_total",
		Help:      "Snapshot cache lookups by result.",
	}, []string{"result"})
)

// RecordDecision counts one evaluation outcome.
func RecordDecision(billingState, category string, entitled, degraded bool) {
	outcome := "allowed"
	switch {
	case !entitled:
		outcome = "denied"
	case degraded:
		outcome = "degraded"
	}
	decisionsTotal.WithLabelValues(billingState, category, outcome).Inc()
}

// RecordHardDenial counts a denial with a machine code.
func RecordHardDenial(code string) {
	hardDenialsTotal.WithLabelValues(code).Inc()
}

// RecordOverrideGrant counts an override-bypassed grant.
func RecordOverrideGrant() {
	overrideGrantsTotal.Inc()
}

// RecordCacheLookup counts a snapshot cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	snapshotCacheTotal.WithLabelValues(result).Inc()
}
