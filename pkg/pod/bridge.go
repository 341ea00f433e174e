package pod

import (
	"context"
	"sync"
	"time"

	"solhop/pkg"
)

// BridgeRunner watches venue liquidity deposits. Small inflows are only
// aggregated into a rolling window; a deposit at or above the whale
// threshold is pushed out immediately as a high priority signal rather
// than waiting for the scan cadence.
type BridgeRunner struct {
	thresholdUSD float64
	window       time.Duration

	mu         sync.Mutex
	emit       func(Signal) bool
	events     []pkg.InflowEvent
	whaleCount uint64
	totalSeen  uint64
}

// NewBridgeRunner creates a bridge with the given whale threshold in
// USD. A zero window defaults to one hour.
func NewBridgeRunner(thresholdUSD float64, window time.Duration) *BridgeRunner {
	if window <= 0 {
		window = time.Hour
	}
	return &BridgeRunner{thresholdUSD: thresholdUSD, window: window}
}

// Bind wires the runner to its pod's emit path. Before Bind the runner
// only aggregates.
func (r *BridgeRunner) Bind(p *Pod) {
	r.mu.Lock()
	r.emit = p.Emit
	r.mu.Unlock()
}

// OnInflow records one observed deposit. Whale sized deposits emit a
// LIQUIDITY_INFLOW signal at priority 9 on the spot.
func (r *BridgeRunner) OnInflow(ev pkg.InflowEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	r.mu.Lock()
	r.totalSeen++
	r.pruneLocked(ev.Timestamp)
	r.events = append(r.events, ev)
	total, count := r.windowTotalsLocked()
	emit := r.emit
	whale := ev.AmountUSD >= r.thresholdUSD
	if whale {
		r.whaleCount++
	}
	r.mu.Unlock()

	if whale && emit != nil {
		emit(Signal{
			Type:     TypeLiquidityInflow,
			Priority: 9,
			Data: Inflow{
				AmountUSD:      ev.AmountUSD,
				Venue:          ev.Venue,
				Mint:           ev.Mint,
				WindowTotalUSD: total,
				WindowEvents:   count,
			},
			Timestamp: ev.Timestamp,
		})
	}
}

// Scan only maintains the window; all signaling happens on the push
// path in OnInflow.
func (r *BridgeRunner) Scan(ctx context.Context) ([]Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.pruneLocked(time.Now())
	r.mu.Unlock()
	return nil, nil
}

func (r *BridgeRunner) pruneLocked(now time.Time) {
	cut := now.Add(-r.window)
	i := 0
	for i < len(r.events) && r.events[i].Timestamp.Before(cut) {
		i++
	}
	if i > 0 {
		r.events = append(r.events[:0], r.events[i:]...)
	}
}

func (r *BridgeRunner) windowTotalsLocked() (float64, int) {
	total := 0.0
	for _, e := range r.events {
		total += e.AmountUSD
	}
	return total, len(r.events)
}

func (r *BridgeRunner) Stats() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	total, count := r.windowTotalsLocked()
	return map[string]any{
		"whale_threshold_usd": r.thresholdUSD,
		"window":              r.window.String(),
		"window_total_usd":    total,
		"window_events":       count,
		"whales_seen":         r.whaleCount,
		"inflows_seen":        r.totalSeen,
	}
}
