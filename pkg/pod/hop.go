package pod

import (
	"context"
	"fmt"
	"sync"

	"solhop/pkg/graph"
	"solhop/pkg/scanner"
)

// HopConfig pins a hop runner to one slice of the search space.
type HopConfig struct {
	Anchor          string
	MinHops         int
	MaxHops         int
	MinLiquidityUSD uint64
	MinProfitPct    float64
	MaxSlotAge      uint64
}

// HopRunner scans the graph for cycles in its hop range and emits the
// best one per scan as an OPPORTUNITY signal.
type HopRunner struct {
	g   *graph.Graph
	cfg HopConfig

	mu            sync.Mutex
	cyclesFound   uint64
	pathsExplored uint64
	bestProfit    float64
	lastScan      scanner.Stats
}

func NewHopRunner(g *graph.Graph, cfg HopConfig) *HopRunner {
	return &HopRunner{g: g, cfg: cfg}
}

func (r *HopRunner) Scan(ctx context.Context) ([]Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := scanner.Scan(r.g, scanner.Params{
		Anchor:          r.cfg.Anchor,
		MinHops:         r.cfg.MinHops,
		MaxHops:         r.cfg.MaxHops,
		MinLiquidityUSD: r.cfg.MinLiquidityUSD,
		MinProfitPct:    r.cfg.MinProfitPct,
		MaxSlotAge:      r.cfg.MaxSlotAge,
	})

	r.mu.Lock()
	r.cyclesFound += uint64(res.Stats.CyclesFound)
	r.pathsExplored += uint64(res.Stats.PathsExplored)
	r.lastScan = res.Stats
	if res.Best != nil && res.Best.ProfitPct > r.bestProfit {
		r.bestProfit = res.Best.ProfitPct
	}
	r.mu.Unlock()

	if res.Best == nil {
		return nil, nil
	}

	c := res.Best
	return []Signal{{
		Type:     TypeOpportunity,
		Priority: OpportunityPriority(c.ProfitPct, c.HopCount, c.MinLiquidityUSD),
		Data: Opportunity{
			Path:            c.Path,
			Pools:           c.Pools,
			Venues:          c.Venues,
			HopCount:        c.HopCount,
			ProfitPct:       c.ProfitPct,
			MinLiquidityUSD: c.MinLiquidityUSD,
			CyclesByHops:    res.ByHopCount,
			ScanTime:        res.Stats.Duration,
		},
	}}, nil
}

// OpportunityPriority grades an opportunity from a base of 5: profit
// tiers at 0.2, 0.5 and 1.0 percent add 1, 2 and 3, four hop or longer
// paths add 1, bottleneck liquidity above 100k USD adds 1. Capped at 10.
func OpportunityPriority(profitPct float64, hopCount int, minLiquidityUSD uint64) int {
	prio := 5
	switch {
	case profitPct >= 1.0:
		prio += 3
	case profitPct >= 0.5:
		prio += 2
	case profitPct >= 0.2:
		prio++
	}
	if hopCount >= 4 {
		prio++
	}
	if minLiquidityUSD > 100_000 {
		prio++
	}
	if prio > 10 {
		prio = 10
	}
	return prio
}

func (r *HopRunner) Stats() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return map[string]any{
		"anchor":         r.cfg.Anchor,
		"hop_range":      fmt.Sprintf("%d-%d", r.cfg.MinHops, r.cfg.MaxHops),
		"cycles_found":   r.cyclesFound,
		"paths_explored": r.pathsExplored,
		"best_profit":    r.bestProfit,
		"graph_nodes":    r.g.NodeCount(),
		"graph_edges":    r.g.EdgeCount(),
		"last_scan_ms":   r.lastScan.Duration.Milliseconds(),
	}
}
