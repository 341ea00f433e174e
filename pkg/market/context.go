// Package market holds the shared view of network conditions that every
// pod reads when sizing thresholds or deciding whether to trade at all.
// Exactly one writer (the governor) owns mutation; everybody else gets
// read methods and copies.
package market

import (
	"sync"
	"time"
)

// CongestionLevel classifies current network congestion.
type CongestionLevel int

const (
	CongestionLow CongestionLevel = iota
	CongestionModerate
	CongestionHigh
	CongestionExtreme
)

func (l CongestionLevel) String() string {
	switch l {
	case CongestionLow:
		return "low"
	case CongestionModerate:
		return "moderate"
	case CongestionHigh:
		return "high"
	case CongestionExtreme:
		return "extreme"
	default:
		return "unknown"
	}
}

// ProfitAdjustment returns the additive profit threshold step, in
// percentage points, charged for trading under this congestion level.
func (l CongestionLevel) ProfitAdjustment() float64 {
	switch l {
	case CongestionModerate:
		return 0.05
	case CongestionHigh:
		return 0.15
	case CongestionExtreme:
		return 0.30
	default:
		return 0
	}
}

// JitoMetrics summarizes recent tip observations.
type JitoMetrics struct {
	CurrentTipLamports uint64
	P5TipLamports      uint64
	P50TipLamports     uint64
	P95TipLamports     uint64
	// TipVelocity is the average lamport change per sample over the
	// most recent samples. Positive values mean tips are climbing.
	TipVelocity float64
	SampleCount int
	LastUpdate  time.Time
}

// VolumeMetrics summarizes venue trading volume.
type VolumeMetrics struct {
	VolumeByVenue map[string]float64
	TotalVolume   float64
	DominantVenue string
	LastUpdate    time.Time
}

// VolatilityMetrics summarizes market volatility on a 0 to 100 index.
type VolatilityMetrics struct {
	Index      float64
	LastUpdate time.Time
}

// Snapshot is a point in time copy of the whole context.
type Snapshot struct {
	Jito       JitoMetrics
	Volume     VolumeMetrics
	Volatility VolatilityMetrics
	Congestion CongestionLevel
	// GlobalProfitAdj is an extra threshold bias in percentage points,
	// independent of the congestion step. The governor uses it for
	// volatility driven tightening.
	GlobalProfitAdj float64
	// CooldownMultiplier stretches pod cooldowns under load. Never
	// below 1.
	CooldownMultiplier float64
	TradingEnabled     bool
	Reason             string
	UpdateCount        uint64
	LastUpdate         time.Time
}

// Context is the read side. Construct it with New, which also hands out
// the single Writer.
type Context struct {
	mu sync.RWMutex
	s  Snapshot
}

// Writer is the mutation side of a Context. Only one exists per Context
// and it is meant to be held by the governor alone.
type Writer struct {
	c *Context
}

// New returns a context in its benign starting state together with its
// only writer.
func New() (*Context, *Writer) {
	c := &Context{
		s: Snapshot{
			Congestion:         CongestionLow,
			CooldownMultiplier: 1,
			TradingEnabled:     true,
			LastUpdate:         time.Now(),
		},
	}
	return c, &Writer{c: c}
}

// AdjustedThreshold returns the effective profit threshold for a
// strategy with the given base, in percentage points.
func (c *Context) AdjustedThreshold(base float64) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return base + c.s.Congestion.ProfitAdjustment() + c.s.GlobalProfitAdj
}

// ShouldPauseTrading reports whether execution must stop entirely:
// trading disabled, extreme congestion, or volatility above 90.
func (c *Context) ShouldPauseTrading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.s.TradingEnabled {
		return true
	}
	if c.s.Congestion == CongestionExtreme {
		return true
	}
	return c.s.Volatility.Index > 90
}

// PauseReason returns a human readable reason when trading is paused.
func (c *Context) PauseReason() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch {
	case !c.s.TradingEnabled:
		if c.s.Reason != "" {
			return c.s.Reason
		}
		return "trading disabled"
	case c.s.Congestion == CongestionExtreme:
		return "extreme congestion"
	case c.s.Volatility.Index > 90:
		return "volatility above 90"
	default:
		return ""
	}
}

// Congestion returns the current congestion level.
func (c *Context) Congestion() CongestionLevel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s.Congestion
}

// CooldownMultiplier returns the current cooldown stretch factor.
func (c *Context) CooldownMultiplier() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.s.CooldownMultiplier < 1 {
		return 1
	}
	return c.s.CooldownMultiplier
}

// Snapshot returns a deep copy of the current state.
func (c *Context) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.s
	if c.s.Volume.VolumeByVenue != nil {
		s.Volume.VolumeByVenue = make(map[string]float64, len(c.s.Volume.VolumeByVenue))
		for k, v := range c.s.Volume.VolumeByVenue {
			s.Volume.VolumeByVenue[k] = v
		}
	}
	return s
}

// Set replaces the derived state with the writer's freshly computed
// snapshot. UpdateCount and LastUpdate are maintained here so writers
// do not have to.
func (w *Writer) Set(s Snapshot) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	s.UpdateCount = w.c.s.UpdateCount + 1
	s.LastUpdate = time.Now()
	if s.CooldownMultiplier < 1 {
		s.CooldownMultiplier = 1
	}
	w.c.s = s
}

// SetTrading flips the trading kill switch with a reason.
func (w *Writer) SetTrading(enabled bool, reason string) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	w.c.s.TradingEnabled = enabled
	w.c.s.Reason = reason
	w.c.s.UpdateCount++
	w.c.s.LastUpdate = time.Now()
}
