// Package scanner searches the token graph for profitable cycles that
// start and end at an anchor mint. The search runs one exact depth at a
// time so every hop count in the requested range is covered and no cycle
// is counted twice.
package scanner

import (
	"time"

	"solhop/pkg/graph"
)

const (
	minHopFloor = 2
	maxHopCeil  = 5

	// Optimistic per hop net multiplier used for bound pruning. No
	// single hop on a fee bearing pool realistically nets more than
	// this, so a partial path that cannot reach the profit target even
	// at this rate is abandoned.
	bestCaseHopNet = 1.003
)

// Params controls one scan.
type Params struct {
	Anchor          string
	MinHops         int
	MaxHops         int
	MinLiquidityUSD uint64
	MinProfitPct    float64
	// MaxSlotAge excludes edges more than this many slots behind the
	// newest slot in the graph. Zero disables the check.
	MaxSlotAge uint64
}

// Cycle is one profitable path found by a scan.
type Cycle struct {
	Path            []string
	Pools           []string
	Venues          []string
	HopCount        int
	ProfitPct       float64
	MinLiquidityUSD uint64
	TotalFeeBps     uint32
}

// Stats describes the work one scan performed.
type Stats struct {
	PathsExplored int
	PathsPruned   int
	CyclesFound   int
	Duration      time.Duration
}

// Result is the outcome of one scan. Best is nil when no cycle met the
// profit threshold.
type Result struct {
	Best       *Cycle
	ByHopCount map[int]int
	Stats      Stats
}

type search struct {
	g       *graph.Graph
	p       Params
	minSlot uint64
	target  int

	path    []string
	pools   []string
	venues  []string
	liqMin  uint64
	feeSum  uint32
	product float64

	best  *Cycle
	byHop map[int]int
	stats Stats
}

// Scan walks the graph for cycles anchored at p.Anchor. Hop bounds are
// clamped to [2, 5]. The traversal order is the graph's insertion order,
// so repeated scans over an unchanged graph return identical results.
func Scan(g *graph.Graph, p Params) Result {
	start := time.Now()

	if p.MinHops < minHopFloor {
		p.MinHops = minHopFloor
	}
	if p.MaxHops > maxHopCeil {
		p.MaxHops = maxHopCeil
	}
	if p.MaxHops < p.MinHops {
		p.MaxHops = p.MinHops
	}

	s := &search{
		g:     g,
		p:     p,
		byHop: make(map[int]int),
	}
	if p.MaxSlotAge > 0 {
		if max := g.MaxSlot(); max > p.MaxSlotAge {
			s.minSlot = max - p.MaxSlotAge
		}
	}

	for depth := p.MinHops; depth <= p.MaxHops; depth++ {
		s.target = depth
		s.path = append(s.path[:0], p.Anchor)
		s.pools = s.pools[:0]
		s.venues = s.venues[:0]
		s.liqMin = 0
		s.feeSum = 0
		s.product = 1
		s.walk(1)
	}

	s.stats.Duration = time.Since(start)
	return Result{Best: s.best, ByHopCount: s.byHop, Stats: s.stats}
}

func (s *search) walk(depth int) {
	from := s.path[len(s.path)-1]
	for _, e := range s.g.Neighbors(from) {
		if !s.usable(e) {
			continue
		}
		if s.usedPool(e.PoolID) {
			continue
		}

		closing := depth == s.target
		if closing {
			if e.To != s.p.Anchor {
				continue
			}
		} else {
			if e.To == s.p.Anchor || s.visited(e.To) {
				continue
			}
		}

		s.stats.PathsExplored++

		net := s.product * e.Rate * (1 - float64(e.FeeBps)/10_000)
		if !closing {
			remaining := s.target - depth
			bound := net
			for i := 0; i < remaining; i++ {
				bound *= bestCaseHopNet
			}
			if bound < 1+s.p.MinProfitPct/100 {
				s.stats.PathsPruned++
				continue
			}
		}

		liq := s.liqMin
		if liq == 0 || e.LiquidityUSD < liq {
			liq = e.LiquidityUSD
		}

		s.path = append(s.path, e.To)
		s.pools = append(s.pools, e.PoolID)
		s.venues = append(s.venues, e.Venue)
		prevLiq, prevFee, prevProd := s.liqMin, s.feeSum, s.product
		s.liqMin, s.feeSum, s.product = liq, s.feeSum+uint32(e.FeeBps), net

		if closing {
			s.record()
		} else {
			s.walk(depth + 1)
		}

		s.path = s.path[:len(s.path)-1]
		s.pools = s.pools[:len(s.pools)-1]
		s.venues = s.venues[:len(s.venues)-1]
		s.liqMin, s.feeSum, s.product = prevLiq, prevFee, prevProd
	}
}

func (s *search) usable(e graph.Directed) bool {
	if e.Rate <= 0 {
		return false
	}
	if e.LiquidityUSD < s.p.MinLiquidityUSD {
		return false
	}
	if s.minSlot > 0 && e.Slot < s.minSlot {
		return false
	}
	return true
}

func (s *search) usedPool(id string) bool {
	for _, p := range s.pools {
		if p == id {
			return true
		}
	}
	return false
}

func (s *search) visited(token string) bool {
	for _, t := range s.path[1:] {
		if t == token {
			return true
		}
	}
	return false
}

func (s *search) record() {
	profit := (s.product - 1) * 100
	if profit < s.p.MinProfitPct {
		return
	}

	s.stats.CyclesFound++
	s.byHop[s.target]++

	c := &Cycle{
		Path:            append([]string(nil), s.path...),
		Pools:           append([]string(nil), s.pools...),
		Venues:          append([]string(nil), s.venues...),
		HopCount:        s.target,
		ProfitPct:       profit,
		MinLiquidityUSD: s.liqMin,
		TotalFeeBps:     s.feeSum,
	}
	if better(c, s.best) {
		s.best = c
	}
}

// better ranks candidates by profit, then fewer hops, then deeper
// bottleneck liquidity.
func better(c, cur *Cycle) bool {
	if cur == nil {
		return true
	}
	if c.ProfitPct != cur.ProfitPct {
		return c.ProfitPct > cur.ProfitPct
	}
	if c.HopCount != cur.HopCount {
		return c.HopCount < cur.HopCount
	}
	return c.MinLiquidityUSD > cur.MinLiquidityUSD
}
