package node

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsInitOnce sync.Once
	sharedMetrics   *nodeMetrics
)

type nodeMetrics struct {
	handshakes    *prometheus.CounterVec
	acceptErrors  prometheus.Counter
	refused       prometheus.Counter
	swept         prometheus.Counter
	seedAttempts  *prometheus.CounterVec
	livePeers     prometheus.Gauge
	bytesReceived prometheus.Counter
}

func newNodeMetrics() *nodeMetrics {
	metricsInitOnce.Do(func() {
		m := &nodeMetrics{
			handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "fractis_node_handshakes_total",
				Help: "Connection handshakes by direction and outcome.",
			}, []string{"direction", "result"}),
			acceptErrors: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "fractis_node_accept_errors_total",
				Help: "Failed accepts on the peer listener.",
			}),
			refused: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "fractis_node_refused_connections_total",
				Help: "Inbound connections refused because max-connections was reached.",
			}),
			swept: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "fractis_node_swept_peers_total",
				Help: "Disconnected peers removed from the registry by the sweep.",
			}),
			seedAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "fractis_node_seed_attempts_total",
				Help: "Bootstrap connection attempts by outcome.",
			}, []string{"result"}),
			livePeers: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "fractis_node_live_peers",
				Help: "Connected peers in the registry.",
			}),
			bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "fractis_node_received_bytes_total",
				Help: "Bytes read from peer connections.",
			}),
		}
		prometheus.MustRegister(m.handshakes, m.acceptErrors, m.refused, m.swept, m.seedAttempts, m.livePeers, m.bytesReceived)
		sharedMetrics = m
	})
	return sharedMetrics
}

func (m *nodeMetrics) recordHandshake(direction, result string) {
	if m == nil {
		return
	}
	m.handshakes.WithLabelValues(direction, result).Inc()
}

func (m *nodeMetrics) recordSeedAttempt(result string) {
	if m == nil {
		return
	}
	m.seedAttempts.WithLabelValues(result).Inc()
}

func (m *nodeMetrics) setLivePeers(n int) {
	if m == nil {
		return
	}
	m.livePeers.Set(float64(n))
}
