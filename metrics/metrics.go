// Package metrics holds the Prometheus collectors for entitlement decisions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the paywall collectors; it is served on /metrics.
	Registry = prometheus.NewRegistry()

	resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paywall",
			Subsystem: "entitlements",
			Name:      "resolutions_total",
			Help:      "Entitlement resolutions by resulting source.",
		},
		[]string{"source"},
	)

	lookupFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paywall",
			Subsystem: "entitlements",
			Name:      "lookup_failures_total",
			Help:      "Failed upstream lookups that degraded to the paywalled result.",
		},
		[]string{"lookup"},
	)

	gateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paywall",
			Subsystem: "gates",
			Name:      "decisions_total",
			Help:      "Gate decisions by gate and outcome.",
		},
		[]string{"gate", "outcome"},
	)

	redemptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paywall",
			Subsystem: "kv",
			Name:      "redemptions_total",
			Help:      "Invite code redemption attempts by result.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(resolutions, lookupFailures, gateDecisions, redemptions)
}

// Handler exposes Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func ObserveResolution(source string) { resolutions.WithLabelValues(source).Inc() }

func ObserveLookupFailure(lookup string) { lookupFailures.WithLabelValues(lookup).Inc() }

// ObserveGate records one gate outcome ("allow", "deny", "redirect", "reject").
func ObserveGate(gate, outcome string) { gateDecisions.WithLabelValues(gate, outcome).Inc() }

func ObserveRedemption(result string) { redemptions.WithLabelValues(result).Inc() }
