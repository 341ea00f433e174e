package pod

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"solhop/pkg"
	"solhop/pkg/market"
)

const (
	tipHistorySize       = 60
	tipVelocityWindow    = 5
	congestionAlertGap   = 30 * time.Second
	volatilityAlertLevel = 75.0
	volatilityAdjLevel   = 75.0
	volatilityAdjStep    = 0.05
)

// GovernorRunner samples network conditions, rewrites the shared market
// context and raises alert signals. It holds the context's only Writer.
type GovernorRunner struct {
	writer *market.Writer
	read   *market.Context
	source pkg.CongestionSource

	mu         sync.Mutex
	tipHistory []uint64
	lastAlert  time.Time
	prevLevel  market.CongestionLevel
	samples    uint64
	alerts     uint64
	levelFlips uint64
}

func NewGovernorRunner(read *market.Context, w *market.Writer, src pkg.CongestionSource) *GovernorRunner {
	return &GovernorRunner{writer: w, read: read, source: src}
}

func (r *GovernorRunner) Scan(ctx context.Context) ([]Signal, error) {
	sample, err := r.source.Sample(ctx)
	if err != nil {
		return nil, fmt.Errorf("congestion sample: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples++

	r.tipHistory = append(r.tipHistory, sample.TipLamports)
	if len(r.tipHistory) > tipHistorySize {
		r.tipHistory = r.tipHistory[len(r.tipHistory)-tipHistorySize:]
	}

	jito := r.jitoMetricsLocked(sample)
	level := deriveCongestion(jito.CurrentTipLamports, jito.P50TipLamports, jito.P95TipLamports)
	if level != r.prevLevel {
		r.levelFlips++
	}

	volume := volumeMetrics(sample)
	prev := r.read.Snapshot()

	next := prev
	next.Jito = jito
	next.Volume = volume
	next.Volatility = market.VolatilityMetrics{Index: sample.VolatilityIndex, LastUpdate: sample.Timestamp}
	next.Congestion = level
	next.GlobalProfitAdj = 0
	if sample.VolatilityIndex > volatilityAdjLevel {
		next.GlobalProfitAdj = volatilityAdjStep
	}
	next.CooldownMultiplier = cooldownFor(level)
	r.writer.Set(next)

	signals := []Signal{{
		Type:     TypeContextUpdate,
		Priority: 3,
		Data:     r.read.Snapshot(),
	}}

	now := time.Now()
	if level >= market.CongestionHigh && now.Sub(r.lastAlert) > congestionAlertGap {
		r.lastAlert = now
		r.alerts++
		signals = append(signals, Signal{
			Type:     TypeCongestionAlert,
			Priority: 8,
			Data: CongestionAlert{
				Level:          level,
				TipLamports:    jito.CurrentTipLamports,
				P50TipLamports: jito.P50TipLamports,
				P95TipLamports: jito.P95TipLamports,
				ProfitAdj:      level.ProfitAdjustment(),
				TradingEnabled: !r.read.ShouldPauseTrading(),
			},
		})
	}
	if sample.VolatilityIndex > volatilityAlertLevel {
		r.alerts++
		signals = append(signals, Signal{
			Type:     TypeVolatilityAlert,
			Priority: 6,
			Data:     VolatilityAlert{Index: sample.VolatilityIndex},
		})
	}

	r.prevLevel = level
	return signals, nil
}

// jitoMetricsLocked prefers percentiles delivered by the source and
// falls back to percentiles over its own tip history when the source
// only reports the current tip.
func (r *GovernorRunner) jitoMetricsLocked(s *pkg.CongestionSample) market.JitoMetrics {
	m := market.JitoMetrics{
		CurrentTipLamports: s.TipLamports,
		P5TipLamports:      s.P5TipLamports,
		P50TipLamports:     s.P50TipLamports,
		P95TipLamports:     s.P95TipLamports,
		SampleCount:        len(r.tipHistory),
		LastUpdate:         s.Timestamp,
	}
	if m.P95TipLamports == 0 && len(r.tipHistory) > 0 {
		sorted := append([]uint64(nil), r.tipHistory...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		m.P5TipLamports = percentile(sorted, 5)
		m.P50TipLamports = percentile(sorted, 50)
		m.P95TipLamports = percentile(sorted, 95)
	}
	if n := len(r.tipHistory); n >= 2 {
		w := tipVelocityWindow
		if n < w {
			w = n
		}
		recent := r.tipHistory[n-w:]
		first, last := float64(recent[0]), float64(recent[len(recent)-1])
		m.TipVelocity = (last - first) / float64(len(recent))
	}
	return m
}

// deriveCongestion classifies the current tip against the percentile
// ladder: above twice p95 is extreme, above p95 is high, above one and
// a half times p50 is moderate.
func deriveCongestion(current, p50, p95 uint64) market.CongestionLevel {
	switch {
	case p95 > 0 && current > 2*p95:
		return market.CongestionExtreme
	case p95 > 0 && current > p95:
		return market.CongestionHigh
	case p50 > 0 && float64(current) > 1.5*float64(p50):
		return market.CongestionModerate
	default:
		return market.CongestionLow
	}
}

// cooldownFor stretches hop pod cooldowns under load: triple at
// extreme congestion, double at high, unchanged otherwise.
func cooldownFor(level market.CongestionLevel) float64 {
	switch level {
	case market.CongestionExtreme:
		return 3
	case market.CongestionHigh:
		return 2
	default:
		return 1
	}
}

func percentile(sorted []uint64, p int) uint64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (len(sorted) - 1) * p / 100
	return sorted[idx]
}

func volumeMetrics(s *pkg.CongestionSample) market.VolumeMetrics {
	m := market.VolumeMetrics{
		VolumeByVenue: s.VolumeByVenue,
		LastUpdate:    s.Timestamp,
	}
	for venue, v := range s.VolumeByVenue {
		m.TotalVolume += v
		if m.DominantVenue == "" || v > s.VolumeByVenue[m.DominantVenue] {
			m.DominantVenue = venue
		}
	}
	return m
}

func (r *GovernorRunner) Stats() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return map[string]any{
		"samples":       r.samples,
		"alerts":        r.alerts,
		"level_flips":   r.levelFlips,
		"tip_history":   len(r.tipHistory),
		"current_level": r.prevLevel.String(),
	}
}
