package sequencer

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultCommitted = "committed"
	resultRejected  = "rejected"
)

type Metrics struct {
	transactions *prometheus.CounterVec
	queueLength  prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	ret := &Metrics{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "baldcoin",
			Name:      "transactions_total",
			Help:      "Transactions applied by the sequencer, by result.",
		}, []string{"result"}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "baldcoin",
			Name:      "queue_length",
			Help:      "Transactions waiting in the sequencer queue.",
		}),
	}
	reg.MustRegister(ret.transactions, ret.queueLength)
	return ret
}

func (m *Metrics) observe(err error, queueLength int) {
	if err != nil {
		m.transactions.WithLabelValues(resultRejected).Inc()
	} else {
		m.transactions.WithLabelValues(resultCommitted).Inc()
	}
	m.queueLength.Set(float64(queueLength))
}
