// Package graph maintains the in-memory token graph that cycle scans
// run against. Pools arrive as slot-stamped edges from the account feed
// and are stored bidirectionally so a scan can traverse either side of
// a pool.
package graph

import (
	"sync"
)

// PoolEdge is one pool observation as delivered by the feed. RateAToB is
// the spot price of TokenA denominated in TokenB before fees. A rate of
// zero (or below) marks the pool as not currently quotable and it is
// skipped during traversal without being removed.
type PoolEdge struct {
	PoolID       string
	TokenA       string
	TokenB       string
	RateAToB     float64
	FeeBps       uint16
	LiquidityUSD uint64
	Venue        string
	Slot         uint64
}

// Directed is one traversable direction of a stored pool.
type Directed struct {
	PoolID       string
	From         string
	To           string
	Rate         float64
	FeeBps       uint16
	LiquidityUSD uint64
	Venue        string
	Slot         uint64
}

// Graph is a concurrency safe token graph. Writers upsert whole pools,
// readers get copies of adjacency lists. Pools are never removed; stale
// or unquotable edges are excluded at scan time instead so the writer
// path stays a simple upsert.
type Graph struct {
	mu      sync.RWMutex
	adj     map[string][]*Directed
	pools   map[string][2]*Directed
	edges   int
	maxSlot uint64
}

func New() *Graph {
	return &Graph{
		adj:   make(map[string][]*Directed),
		pools: make(map[string][2]*Directed),
	}
}

// Upsert inserts or refreshes a pool. When the pool is already known the
// update only applies if its slot is at least as new as the stored one,
// so out of order account notifications cannot roll an edge backwards.
func (g *Graph) Upsert(e PoolEdge) {
	inverse := 0.0
	if e.RateAToB > 0 {
		inverse = 1 / e.RateAToB
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if pair, ok := g.pools[e.PoolID]; ok {
		if e.Slot < pair[0].Slot {
			return
		}
		g.fill(pair[0], e, e.RateAToB)
		g.fill(pair[1], e, inverse)
		if e.Slot > g.maxSlot {
			g.maxSlot = e.Slot
		}
		return
	}

	fwd := &Directed{From: e.TokenA, To: e.TokenB}
	rev := &Directed{From: e.TokenB, To: e.TokenA}
	g.fill(fwd, e, e.RateAToB)
	g.fill(rev, e, inverse)

	g.pools[e.PoolID] = [2]*Directed{fwd, rev}
	g.adj[e.TokenA] = append(g.adj[e.TokenA], fwd)
	g.adj[e.TokenB] = append(g.adj[e.TokenB], rev)
	g.edges++
	if e.Slot > g.maxSlot {
		g.maxSlot = e.Slot
	}
}

func (g *Graph) fill(d *Directed, e PoolEdge, rate float64) {
	d.PoolID = e.PoolID
	d.Rate = rate
	d.FeeBps = e.FeeBps
	d.LiquidityUSD = e.LiquidityUSD
	d.Venue = e.Venue
	d.Slot = e.Slot
}

// Neighbors returns a copy of the outgoing edges of a token in
// insertion order. The copy is safe to traverse while writers keep
// upserting.
func (g *Graph) Neighbors(token string) []Directed {
	g.mu.RLock()
	defer g.mu.RUnlock()

	src := g.adj[token]
	if len(src) == 0 {
		return nil
	}
	out := make([]Directed, len(src))
	for i, d := range src {
		out[i] = *d
	}
	return out
}

// NodeCount returns the number of distinct tokens seen so far.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.adj)
}

// EdgeCount returns the number of pools (not directed half edges).
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges
}

// MaxSlot returns the newest slot observed across all pools. Scans use
// it as the reference point for staleness exclusion.
func (g *Graph) MaxSlot() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.maxSlot
}
