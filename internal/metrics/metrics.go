// Package metrics exposes prometheus collectors for database transactions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/guoxiaopeng875/txscope/pkg/txscope"
)

// Registry holds the service's collectors on a private prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	TransactionsBegun *prometheus.CounterVec
	TransactionsEnded *prometheus.CounterVec
	ProbeFailures     *prometheus.CounterVec
}

// NewRegistry creates the collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{registry: reg}

	r.TransactionsBegun = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "txscope_db_transactions_begun_total",
			Help: "Real database transactions begun, by database, isolation level and result",
		},
		[]string{"database", "isolation", "result"}, // result: ok, error
	)

	r.TransactionsEnded = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "txscope_db_transactions_ended_total",
			Help: "Real database transactions ended, by database, outcome and result",
		},
		[]string{"database", "outcome", "result"}, // outcome: commit, rollback
	)

	r.ProbeFailures = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "txscope_db_probe_failures_total",
			Help: "Failed database health probes",
		},
		[]string{"database"},
	)

	return r
}

// Gatherer returns the registry to serve.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Hooks returns txscope hooks that count transactions of database.
func (r *Registry) Hooks(database string) txscope.Hooks {
	return txscope.Hooks{
		OnBegin: func(level txscope.IsolationLevel, err error) {
			r.TransactionsBegun.WithLabelValues(database, level.String(), result(err)).Inc()
		},
		OnEnd: func(outcome txscope.Outcome, err error) {
			r.TransactionsEnded.WithLabelValues(database, string(outcome), result(err)).Inc()
		},
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
