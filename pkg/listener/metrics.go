package listener

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts reconciliation work. Create with NewMetrics and
// register once with the process registry.
type Metrics struct {
	Passes      *prometheus.CounterVec
	Payments    *prometheus.CounterVec
	RPCFailures *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wowpay",
				Name:      "listener_passes_total",
				Help:      "Reconciliation passes by trigger and result.",
			},
			[]string{"kind", "result"},
		),
		Payments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wowpay",
				Name:      "listener_payments_total",
				Help:      "Payments created, updated or rejected as duplicates.",
			},
			[]string{"action"},
		),
		RPCFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wowpay",
				Name:      "listener_rpc_failures_total",
				Help:      "Wallet RPC calls that failed during reconciliation.",
			},
			[]string{"method"},
		),
	}
}

func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.Passes, m.Payments, m.RPCFailures)
}
