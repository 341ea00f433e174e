package scanner

import (
	"math"
	"reflect"
	"testing"

	"solhop/pkg/graph"
)

const (
	sol  = "So11111111111111111111111111111111111111112"
	usdc = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	ray  = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"
)

// triangle builds SOL -> USDC -> RAY -> SOL where the product of rates
// net of fees ends slightly above 1.
func triangle() *graph.Graph {
	g := graph.New()
	g.Upsert(graph.PoolEdge{
		PoolID: "P1", TokenA: sol, TokenB: usdc,
		RateAToB: 150, FeeBps: 25, LiquidityUSD: 500_000, Venue: "raydium", Slot: 100,
	})
	g.Upsert(graph.PoolEdge{
		PoolID: "P2", TokenA: usdc, TokenB: ray,
		RateAToB: 0.5, FeeBps: 30, LiquidityUSD: 250_000, Venue: "orca", Slot: 100,
	})
	g.Upsert(graph.PoolEdge{
		PoolID: "P3", TokenA: ray, TokenB: sol,
		RateAToB: 0.0135, FeeBps: 25, LiquidityUSD: 120_000, Venue: "meteora", Slot: 100,
	})
	return g
}

func wantTriangleProfit() float64 {
	gross := 150.0 * 0.5 * 0.0135
	net := gross * (1 - 0.0025) * (1 - 0.0030) * (1 - 0.0025)
	return (net - 1) * 100
}

func TestScanFindsTriangle(t *testing.T) {
	res := Scan(triangle(), Params{
		Anchor:       sol,
		MinHops:      2,
		MaxHops:      4,
		MinProfitPct: 0.1,
	})

	if res.Best == nil {
		t.Fatal("no cycle found")
	}
	c := res.Best
	if c.HopCount != 3 {
		t.Fatalf("hop count = %d, want 3", c.HopCount)
	}
	wantPath := []string{sol, usdc, ray, sol}
	if !reflect.DeepEqual(c.Path, wantPath) {
		t.Fatalf("path = %v, want %v", c.Path, wantPath)
	}
	if !reflect.DeepEqual(c.Pools, []string{"P1", "P2", "P3"}) {
		t.Fatalf("pools = %v", c.Pools)
	}
	if want := wantTriangleProfit(); math.Abs(c.ProfitPct-want) > 1e-9 {
		t.Fatalf("profit = %v, want %v", c.ProfitPct, want)
	}
	if c.MinLiquidityUSD != 120_000 {
		t.Fatalf("bottleneck liquidity = %d, want 120000", c.MinLiquidityUSD)
	}
	if res.ByHopCount[3] != 1 {
		t.Fatalf("by hop count = %v", res.ByHopCount)
	}
}

func TestScanRespectsHopBounds(t *testing.T) {
	res := Scan(triangle(), Params{
		Anchor:  sol,
		MinHops: 2,
		MaxHops: 2,
	})
	if res.Best != nil {
		t.Fatalf("found %d-hop cycle with max 2 hops", res.Best.HopCount)
	}

	// Bounds outside [2, 5] are clamped rather than rejected.
	res = Scan(triangle(), Params{Anchor: sol, MinHops: 0, MaxHops: 99})
	if res.Best == nil || res.Best.HopCount != 3 {
		t.Fatalf("clamped scan failed: %+v", res.Best)
	}
}

func TestScanNeverReusesAPool(t *testing.T) {
	// A single pool offers SOL -> USDC and USDC -> SOL; walking it out
	// and back would be a fake 2-hop cycle.
	g := graph.New()
	g.Upsert(graph.PoolEdge{
		PoolID: "P1", TokenA: sol, TokenB: usdc,
		RateAToB: 150, FeeBps: 0, LiquidityUSD: 500_000, Venue: "raydium", Slot: 1,
	})

	res := Scan(g, Params{Anchor: sol, MinHops: 2, MaxHops: 5, MinProfitPct: -100})
	if res.Best != nil {
		t.Fatalf("scan reused pool: %+v", res.Best)
	}
}

func TestScanHonorsLiquidityFloor(t *testing.T) {
	res := Scan(triangle(), Params{
		Anchor:          sol,
		MinHops:         2,
		MaxHops:         4,
		MinLiquidityUSD: 200_000, // excludes P3
	})
	if res.Best != nil {
		t.Fatalf("cycle found through shallow pool: %+v", res.Best)
	}
}

func TestScanExcludesStaleEdges(t *testing.T) {
	g := triangle()
	// Push the newest slot far ahead so the triangle's edges fall
	// outside the staleness horizon.
	g.Upsert(graph.PoolEdge{
		PoolID: "P9", TokenA: usdc, TokenB: ray,
		RateAToB: 0.5, FeeBps: 30, LiquidityUSD: 250_000, Venue: "orca", Slot: 500,
	})

	res := Scan(g, Params{Anchor: sol, MinHops: 2, MaxHops: 4, MaxSlotAge: 50})
	if res.Best != nil {
		t.Fatalf("stale edges traversed: %+v", res.Best)
	}

	res = Scan(g, Params{Anchor: sol, MinHops: 2, MaxHops: 4, MaxSlotAge: 1_000})
	if res.Best == nil {
		t.Fatal("wide horizon should still find the triangle")
	}
}

func TestScanIsDeterministic(t *testing.T) {
	g := triangle()
	// A second, worse route USDC -> RAY to give the search a branch.
	g.Upsert(graph.PoolEdge{
		PoolID: "P4", TokenA: usdc, TokenB: ray,
		RateAToB: 0.49, FeeBps: 30, LiquidityUSD: 300_000, Venue: "lifinity", Slot: 100,
	})

	p := Params{Anchor: sol, MinHops: 2, MaxHops: 4, MinProfitPct: -100}
	a := Scan(g, p)
	b := Scan(g, p)

	if !reflect.DeepEqual(a.Best, b.Best) {
		t.Fatalf("best diverged: %+v vs %+v", a.Best, b.Best)
	}
	if !reflect.DeepEqual(a.ByHopCount, b.ByHopCount) {
		t.Fatalf("counts diverged: %v vs %v", a.ByHopCount, b.ByHopCount)
	}
	if a.Stats.PathsExplored != b.Stats.PathsExplored {
		t.Fatalf("explored diverged: %d vs %d", a.Stats.PathsExplored, b.Stats.PathsExplored)
	}
}

func TestScanEmptyGraph(t *testing.T) {
	res := Scan(graph.New(), Params{Anchor: sol, MinHops: 2, MaxHops: 5})
	if res.Best != nil || res.Stats.CyclesFound != 0 {
		t.Fatalf("empty graph produced cycles: %+v", res)
	}
}

func TestBetterPrefersProfitThenHopsThenLiquidity(t *testing.T) {
	hi := &Cycle{ProfitPct: 1.0, HopCount: 4, MinLiquidityUSD: 10}
	lo := &Cycle{ProfitPct: 0.5, HopCount: 2, MinLiquidityUSD: 100}
	if !better(hi, lo) {
		t.Fatal("higher profit must win")
	}
	short := &Cycle{ProfitPct: 1.0, HopCount: 2, MinLiquidityUSD: 10}
	if !better(short, hi) {
		t.Fatal("fewer hops must break profit ties")
	}
	deep := &Cycle{ProfitPct: 1.0, HopCount: 2, MinLiquidityUSD: 500}
	if !better(deep, short) {
		t.Fatal("deeper liquidity must break remaining ties")
	}
}
