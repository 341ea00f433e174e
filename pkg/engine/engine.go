// Package engine assembles the pod cluster, routes signals from the
// shared queue to their consumers and exposes the whole thing for
// observation.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"solhop/pkg"
	"solhop/pkg/graph"
	"solhop/pkg/market"
	"solhop/pkg/pod"
)

// Config sets engine wide behavior on top of the strategy parameters.
type Config struct {
	Mode     pod.StrategyMode
	Strategy pod.StrategyConfig
	// DrainInterval is the coordinator's queue polling cadence. Zero
	// means 500ms.
	DrainInterval time.Duration
	// RouteMinPriority is the lowest opportunity priority the
	// coordinator forwards to execution. Zero means 8.
	RouteMinPriority int
}

// Deps are the external collaborators. Quotes is required; Relay may be
// nil unless the execution mode is live.
type Deps struct {
	Quotes     pkg.QuoteProvider
	Legs       pkg.LegBuilder
	Relay      pkg.BundleSubmitter
	Congestion pkg.CongestionSource
	Signer     solana.PublicKey
	Log        *zap.Logger
	// Registry receives the engine's metrics. Nil skips registration.
	Registry prometheus.Registerer
}

// SignalSink observes every signal the coordinator drains.
type SignalSink func(pod.Signal)

// Engine owns the graph, the market context, the pod manager and the
// coordinator loop.
type Engine struct {
	cfg Config
	log *zap.Logger

	graph   *graph.Graph
	market  *market.Context
	manager *pod.Manager
	cluster *pod.Cluster
	metrics *Metrics

	mu    sync.Mutex
	sinks []SignalSink

	started time.Time
}

// New builds the engine and spawns its pod cluster. Pods are not
// started until Run.
func New(cfg Config, deps Deps) (*Engine, error) {
	if cfg.Mode == "" {
		cfg.Mode = pod.ModeNarrowPath
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = 500 * time.Millisecond
	}
	if cfg.RouteMinPriority <= 0 {
		cfg.RouteMinPriority = 8
	}
	if deps.Quotes == nil {
		return nil, fmt.Errorf("quote provider is required")
	}
	if cfg.Strategy.Execution.Mode == pod.ModeLive && deps.Relay == nil {
		return nil, fmt.Errorf("live execution needs a bundle relay")
	}

	g := graph.New()
	mktRead, mktWrite := market.New()
	manager := pod.NewManager(pod.DefaultManagerConfig(), deps.Log)

	factory := pod.NewStrategyFactory(manager, pod.Deps{
		Graph:        g,
		Market:       mktRead,
		MarketWriter: mktWrite,
		Quotes:       deps.Quotes,
		Legs:         deps.Legs,
		Relay:        deps.Relay,
		Congestion:   deps.Congestion,
		Signer:       deps.Signer,
		Log:          deps.Log,
	})
	cluster, err := factory.Spawn(cfg.Mode, cfg.Strategy)
	if err != nil {
		return nil, fmt.Errorf("spawn cluster: %w", err)
	}

	e := &Engine{
		cfg:     cfg,
		log:     deps.Log,
		graph:   g,
		market:  mktRead,
		manager: manager,
		cluster: cluster,
		started: time.Now(),
	}
	if deps.Registry != nil {
		e.metrics = NewMetrics(deps.Registry, g, mktRead, manager.Queue())
	}
	return e, nil
}

// Graph exposes the pool graph for the account feed.
func (e *Engine) Graph() *graph.Graph {
	return e.graph
}

// Market exposes the read side of the market context.
func (e *Engine) Market() *market.Context {
	return e.market
}

// OnInflow forwards a venue deposit to the bridge pod.
func (e *Engine) OnInflow(ev pkg.InflowEvent) {
	e.cluster.Bridge.OnInflow(ev)
}

// RegisterSink adds an observer for drained signals.
func (e *Engine) RegisterSink(s SignalSink) {
	e.mu.Lock()
	e.sinks = append(e.sinks, s)
	e.mu.Unlock()
}

// Run starts all pods and blocks in the coordinator loop until the
// context is canceled, then stops everything.
func (e *Engine) Run(ctx context.Context) error {
	e.manager.StartAll()
	e.log.Info("engine running",
		zap.String("mode", string(e.cfg.Mode)),
		zap.String("execution", string(e.cluster.Execution.Mode())),
		zap.Int("pods", len(e.cluster.Pods)))

	var wg sync.WaitGroup
	if e.cluster.Ghost != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.drainValidations(ctx)
		}()
	}

	ticker := time.NewTicker(e.cfg.DrainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.manager.StopAll()
			wg.Wait()
			e.log.Info("engine stopped")
			return ctx.Err()
		case <-ticker.C:
			e.dispatch(e.manager.Drain())
		}
	}
}

// dispatch routes one drained batch: urgent opportunities go to the
// execution intake, everything is fanned out to the sinks and counted.
func (e *Engine) dispatch(signals []pod.Signal) {
	if len(signals) == 0 {
		return
	}
	e.mu.Lock()
	sinks := append([]SignalSink(nil), e.sinks...)
	e.mu.Unlock()

	for _, s := range signals {
		if e.metrics != nil {
			e.metrics.ObserveSignal(s)
		}
		if s.Type == pod.TypeOpportunity && s.Priority >= e.cfg.RouteMinPriority {
			if o, ok := s.Data.(pod.Opportunity); ok {
				if !e.cluster.Execution.Enqueue(o) {
					e.log.Warn("execution intake full",
						zap.String("pod", s.PodID),
						zap.Float64("profit_pct", o.ProfitPct))
				}
			}
		}
		for _, sink := range sinks {
			sink(s)
		}
	}
}

// drainValidations logs ghost validation outcomes and feeds metrics.
func (e *Engine) drainValidations(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case res := <-e.cluster.Ghost.Results():
			if e.metrics != nil {
				e.metrics.ObserveValidation(res)
			}
			e.log.Info("ghost validation",
				zap.String("cycle", res.CycleID),
				zap.Float64("original_pct", res.OriginalProfitPct),
				zap.Float64("current_pct", res.CurrentProfitPct),
				zap.Float64("drift_pct", res.DriftPct),
				zap.Bool("still_profitable", res.IsStillProfitable))
		}
	}
}

// Stats aggregates engine state for the HTTP surface.
func (e *Engine) Stats() map[string]any {
	out := map[string]any{
		"mode":        string(e.cfg.Mode),
		"uptime":      time.Since(e.started).Round(time.Second).String(),
		"graph_nodes": e.graph.NodeCount(),
		"graph_edges": e.graph.EdgeCount(),
		"max_slot":    e.graph.MaxSlot(),
		"congestion":  e.market.Congestion().String(),
		"paused":      e.market.ShouldPauseTrading(),
		"manager":     e.manager.Stats(),
		"execution":   e.cluster.Execution.Stats(),
	}
	if e.cluster.Ghost != nil {
		out["ghost"] = e.cluster.Ghost.Stats()
	}
	return out
}
