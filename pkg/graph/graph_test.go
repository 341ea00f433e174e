package graph

import (
	"sync"
	"testing"
)

func edge(id, a, b string, rate float64, slot uint64) PoolEdge {
	return PoolEdge{
		PoolID:       id,
		TokenA:       a,
		TokenB:       b,
		RateAToB:     rate,
		FeeBps:       25,
		LiquidityUSD: 100_000,
		Venue:        "raydium",
		Slot:         slot,
	}
}

func TestUpsertIsBidirectional(t *testing.T) {
	g := New()
	g.Upsert(edge("p1", "SOL", "USDC", 150, 10))

	fwd := g.Neighbors("SOL")
	if len(fwd) != 1 || fwd[0].To != "USDC" || fwd[0].Rate != 150 {
		t.Fatalf("forward edge wrong: %+v", fwd)
	}
	rev := g.Neighbors("USDC")
	if len(rev) != 1 || rev[0].To != "SOL" {
		t.Fatalf("reverse edge wrong: %+v", rev)
	}
	if got, want := rev[0].Rate, 1.0/150; got != want {
		t.Fatalf("reverse rate = %v, want %v", got, want)
	}
	if g.NodeCount() != 2 || g.EdgeCount() != 1 {
		t.Fatalf("counts = %d nodes %d edges, want 2/1", g.NodeCount(), g.EdgeCount())
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	g := New()
	e := edge("p1", "SOL", "USDC", 150, 10)
	g.Upsert(e)
	g.Upsert(e)

	if g.EdgeCount() != 1 {
		t.Fatalf("edge count = %d after duplicate upsert, want 1", g.EdgeCount())
	}
	if len(g.Neighbors("SOL")) != 1 {
		t.Fatalf("adjacency duplicated: %+v", g.Neighbors("SOL"))
	}
}

func TestUpsertLaterSlotWins(t *testing.T) {
	g := New()
	g.Upsert(edge("p1", "SOL", "USDC", 150, 10))
	g.Upsert(edge("p1", "SOL", "USDC", 155, 12))

	if got := g.Neighbors("SOL")[0].Rate; got != 155 {
		t.Fatalf("rate = %v after newer slot, want 155", got)
	}

	// An older slot must not roll the edge back.
	g.Upsert(edge("p1", "SOL", "USDC", 140, 11))
	if got := g.Neighbors("SOL")[0].Rate; got != 155 {
		t.Fatalf("rate = %v after stale upsert, want 155", got)
	}
	if g.MaxSlot() != 12 {
		t.Fatalf("max slot = %d, want 12", g.MaxSlot())
	}
}

func TestZeroRateKeepsEdgeButDisablesDirection(t *testing.T) {
	g := New()
	g.Upsert(edge("p1", "SOL", "USDC", 150, 10))
	g.Upsert(edge("p1", "SOL", "USDC", 0, 11))

	if g.EdgeCount() != 1 {
		t.Fatalf("edge removed on zero rate")
	}
	if got := g.Neighbors("SOL")[0].Rate; got != 0 {
		t.Fatalf("forward rate = %v, want 0", got)
	}
	if got := g.Neighbors("USDC")[0].Rate; got != 0 {
		t.Fatalf("inverse of a zero rate must be 0, got %v", got)
	}
}

func TestNeighborsReturnsCopy(t *testing.T) {
	g := New()
	g.Upsert(edge("p1", "SOL", "USDC", 150, 10))

	snap := g.Neighbors("SOL")
	snap[0].Rate = -1

	if got := g.Neighbors("SOL")[0].Rate; got != 150 {
		t.Fatalf("mutating the returned slice changed the graph: %v", got)
	}
}

func TestConcurrentUpsertAndRead(t *testing.T) {
	g := New()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				g.Upsert(edge("p1", "SOL", "USDC", 150+float64(i), uint64(i)))
				g.Neighbors("SOL")
				g.Neighbors("USDC")
			}
		}(w)
	}
	wg.Wait()

	if g.EdgeCount() != 1 {
		t.Fatalf("edge count = %d, want 1", g.EdgeCount())
	}
}
