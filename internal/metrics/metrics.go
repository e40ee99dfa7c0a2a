// Package metrics counts saga, conversion and bridge outcomes with
// Prometheus collectors registered on a caller-supplied registerer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Saga outcomes.
const (
	OutcomeOK                 = "ok"
	OutcomeFailed             = "failed"
	OutcomeCompensated        = "compensated"
	OutcomeCompensationFailed = "compensation_failed"
)

// Recorder holds the collectors. A nil *Recorder records nothing.
type Recorder struct {
	sagas               *prometheus.CounterVec
	compensationFailure prometheus.Counter
	conversions         *prometheus.CounterVec
	bridgeCalls         *prometheus.CounterVec
	bridgeLatency       *prometheus.HistogramVec
}

// New creates a Recorder and registers its collectors on reg. A nil reg
// gets a private registry, which keeps tests independent.
func New(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	r := &Recorder{
		sagas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "partybook",
			Name:      "saga_total",
			Help:      "Composite writes by operation and outcome.",
		}, []string{"operation", "outcome"}),
		compensationFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "partybook",
			Name:      "compensation_failures_total",
			Help:      "Create compensations whose cleanup delete failed.",
		}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "partybook",
			Name:      "conversions_total",
			Help:      "Conversion attempts by final stage.",
		}, []string{"stage"}),
		bridgeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "partybook",
			Name:      "bridge_calls_total",
			Help:      "Secondary bridge script invocations by script and outcome.",
		}, []string{"script", "outcome"}),
		bridgeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "partybook",
			Name:      "bridge_call_seconds",
			Help:      "Secondary bridge round-trip latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"script"}),
	}
	for _, c := range []prometheus.Collector{r.sagas, r.compensationFailure, r.conversions, r.bridgeCalls, r.bridgeLatency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Saga records the outcome of a Create, Update or Delete.
func (r *Recorder) Saga(operation, outcome string) {
	if r == nil {
		return
	}
	r.sagas.WithLabelValues(operation, outcome).Inc()
	if outcome == OutcomeCompensationFailed {
		r.compensationFailure.Inc()
	}
}

// Conversion records the stage a conversion ended at ("converted" on
// success).
func (r *Recorder) Conversion(stage string) {
	if r == nil {
		return
	}
	r.conversions.WithLabelValues(stage).Inc()
}

// BridgeCall records one script invocation.
func (r *Recorder) BridgeCall(script string, err error, elapsed time.Duration) {
	if r == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFailed
	}
	r.bridgeCalls.WithLabelValues(script, outcome).Inc()
	r.bridgeLatency.WithLabelValues(script).Observe(elapsed.Seconds())
}
