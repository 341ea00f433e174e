package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"solhop/pkg/graph"
	"solhop/pkg/market"
	"solhop/pkg/pod"
)

// Metrics exports the engine's operational counters. Gauges that mirror
// live state are bound as functions so scraping never goes stale.
type Metrics struct {
	signals     *prometheus.CounterVec
	executions  *prometheus.CounterVec
	validations *prometheus.CounterVec
	bestProfit  prometheus.Gauge
	driftPct    prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer, g *graph.Graph, m *market.Context, q *pod.Queue) *Metrics {
	mt := &Metrics{
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solhop_signals_total",
			Help: "Signals drained from the shared queue by type.",
		}, []string{"type"}),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solhop_executions_total",
			Help: "Settlement attempts by outcome.",
		}, []string{"outcome"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solhop_ghost_validations_total",
			Help: "Ghost validations by verdict.",
		}, []string{"verdict"}),
		bestProfit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "solhop_best_profit_pct",
			Help: "Profit of the most recent routed opportunity.",
		}),
		driftPct: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "solhop_ghost_drift_pct",
			Help:    "Profit drift between signal and delayed re-quote.",
			Buckets: []float64{-5, -2, -1, -0.5, -0.2, -0.1, 0, 0.1, 0.5},
		}),
	}

	reg.MustRegister(
		mt.signals, mt.executions, mt.validations, mt.bestProfit, mt.driftPct,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "solhop_graph_nodes",
			Help: "Distinct tokens in the pool graph.",
		}, func() float64 { return float64(g.NodeCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "solhop_graph_pools",
			Help: "Pools in the graph.",
		}, func() float64 { return float64(g.EdgeCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "solhop_congestion_level",
			Help: "Congestion level, 0 low through 3 extreme.",
		}, func() float64 { return float64(m.Congestion()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "solhop_queue_depth",
			Help: "Signals waiting in the shared queue.",
		}, func() float64 { return float64(q.Len()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "solhop_queue_dropped_total",
			Help: "Signals evicted from the full queue.",
		}, func() float64 { return float64(q.Dropped()) }),
	)
	return mt
}

func (m *Metrics) ObserveSignal(s pod.Signal) {
	m.signals.WithLabelValues(string(s.Type)).Inc()
	switch s.Type {
	case pod.TypeOpportunity:
		if o, ok := s.Data.(pod.Opportunity); ok {
			m.bestProfit.Set(o.ProfitPct)
		}
	case pod.TypeExecutionResult:
		if r, ok := s.Data.(pod.ExecutionResult); ok {
			outcome := "failed"
			if r.Success {
				outcome = "succeeded"
			}
			m.executions.WithLabelValues(outcome).Inc()
		}
	}
}

func (m *Metrics) ObserveValidation(res pod.ValidationResult) {
	verdict := "decayed"
	switch {
	case res.CurrentProfitPct <= -100:
		verdict = "mirage"
	case res.IsStillProfitable:
		verdict = "held"
	}
	m.validations.WithLabelValues(verdict).Inc()
	m.driftPct.Observe(res.DriftPct)
}
