package consensus

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsInitOnce sync.Once
	sharedMetrics   *consensusMetrics
)

type consensusMetrics struct {
	decisions     *prometheus.CounterVec
	confirmations *prometheus.CounterVec
	latency       prometheus.Histogram
}

func newConsensusMetrics() *consensusMetrics {
	metricsInitOnce.Do(func() {
		m := &consensusMetrics{
			decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "fractis_consensus_decisions_total",
				Help: "Transaction evaluations by outcome and rejection reason.",
			}, []string{"stage", "reason"}),
			confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "fractis_consensus_validator_answers_total",
				Help: "Validator answers by outcome.",
			}, []string{"result"}),
			latency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "fractis_consensus_evaluation_seconds",
				Help:    "Time spent evaluating a transaction.",
				Buckets: prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(m.decisions, m.confirmations, m.latency)
		sharedMetrics = m
	})
	return sharedMetrics
}

func (m *consensusMetrics) recordDecision(d Decision, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(d.Stage.String(), d.Reason.String()).Inc()
	m.latency.Observe(elapsed.Seconds())
}

func (m *consensusMetrics) recordConfirmation(result string) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(result).Inc()
}
