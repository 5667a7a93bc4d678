/*
metrics.go - Prometheus instrumentation

PURPOSE:
  Counts committed ledger mutations by operation, rule-engine tick outcomes
  by engine, and dropped notifications. Exposed at /metrics via promhttp.
*/
package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_mutations_total",
		Help: "Committed ledger mutations by operation.",
	}, []string{"op"})

	engineTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rule_engine_ticks_total",
		Help: "Rule engine evaluation ticks by engine and outcome.",
	}, []string{"engine", "outcome"})

	engineActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rule_engine_actions_total",
		Help: "Actions taken by rule engines (locks, accruals, installments, misses).",
	}, []string{"engine", "action"})
)

// ObserveMutation is wired into ledger.Service via WithMutationObserver.
func ObserveMutation(op string) {
	mutationsTotal.WithLabelValues(op).Inc()
}
