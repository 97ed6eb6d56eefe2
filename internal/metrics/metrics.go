// Package metrics holds the Prometheus collectors for gateway traffic.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Invocation outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeNotConfigured = "not_configured"
	OutcomeInvalid       = "invalid_action"
	OutcomeUpstreamError = "upstream_error"
)

var (
	GatewayInvocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pushconsole_gateway_invocations_total",
		Help: "Gateway invocations by action and outcome",
	}, []string{"action", "outcome"})

	UpstreamDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pushconsole_gateway_upstream_seconds",
		Help:    "Time spent in the provider call per action",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	DispatchRecordFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pushconsole_dispatch_record_failures_total",
		Help: "Audit log writes that failed",
	})
)

func init() {
	prometheus.MustRegister(
		GatewayInvocations,
		UpstreamDuration,
		DispatchRecordFailures,
	)
}

// ObserveInvocation counts one gateway call. elapsed is recorded only for
// calls that reached the provider.
func ObserveInvocation(action, outcome string, elapsed time.Duration) {
	GatewayInvocations.WithLabelValues(action, outcome).Inc()
	if outcome == OutcomeOK || outcome == OutcomeUpstreamError {
		UpstreamDuration.WithLabelValues(action).Observe(elapsed.Seconds())
	}
}
