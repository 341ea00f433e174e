package pod

import (
	"context"
	"sync/atomic"
	"time"

	"cosmossdk.io/math"
	"go.uber.org/zap"

	"solhop/pkg"
)

const (
	// DefaultGhostDelay approximates bundle landing latency.
	DefaultGhostDelay = 450 * time.Millisecond

	ghostStaleAfter  = 2 * time.Second
	ghostProfitFloor = 0.1
	ghostMirage      = -100.0
)

// ValidationResult is the outcome of re-quoting a ghost executed cycle
// after the simulated landing delay.
type ValidationResult struct {
	CycleID           string
	OriginalProfitPct float64
	CurrentProfitPct  float64
	DriftPct          float64
	IsStillProfitable bool
	Timestamp         time.Time
}

// GhostValidator re-prices dry run cycles after a delay to measure how
// fast opportunities decay. Results arrive on a buffered channel; when
// no one drains it, results are dropped rather than blocking.
type GhostValidator struct {
	quotes  pkg.QuoteProvider
	input   math.Int
	delay   time.Duration
	log     *zap.Logger
	results chan ValidationResult

	pending   atomic.Int64
	validated atomic.Uint64
	mirages   atomic.Uint64
}

func NewGhostValidator(quotes pkg.QuoteProvider, referenceInput math.Int, delay time.Duration, log *zap.Logger) *GhostValidator {
	if delay <= 0 {
		delay = DefaultGhostDelay
	}
	return &GhostValidator{
		quotes:  quotes,
		input:   referenceInput,
		delay:   delay,
		log:     log,
		results: make(chan ValidationResult, 64),
	}
}

// Results is the stream of finished validations.
func (v *GhostValidator) Results() <-chan ValidationResult {
	return v.results
}

// Pending returns the number of validations still in flight.
func (v *GhostValidator) Pending() int64 {
	return v.pending.Load()
}

// ValidateLater schedules a re-quote of the cycle after the validator's
// delay. It returns immediately.
func (v *GhostValidator) ValidateLater(ctx context.Context, cycleID string, path []string, originalProfitPct float64) {
	v.pending.Add(1)
	go func() {
		defer v.pending.Add(-1)
		if !sleepCtx(ctx, v.delay) {
			return
		}
		res := v.revalidate(ctx, cycleID, path, originalProfitPct)
		v.validated.Add(1)
		if res.CurrentProfitPct == ghostMirage {
			v.mirages.Add(1)
		}
		select {
		case v.results <- res:
		default:
			v.log.Warn("validation result dropped", zap.String("cycle", cycleID))
		}
	}()
}

func (v *GhostValidator) revalidate(ctx context.Context, cycleID string, path []string, original float64) ValidationResult {
	res := ValidationResult{
		CycleID:           cycleID,
		OriginalProfitPct: original,
		Timestamp:         time.Now(),
	}

	amount := v.input
	var newest time.Time
	for i := 0; i+1 < len(path); i++ {
		q, err := v.quotes.GetQuote(ctx, path[i], path[i+1], amount)
		if err != nil {
			// Any failed leg means the route no longer exists.
			res.CurrentProfitPct = ghostMirage
			res.DriftPct = ghostMirage
			return res
		}
		amount = q.OutAmount
		if q.Timestamp.After(newest) {
			newest = q.Timestamp
		}
	}

	if !newest.IsZero() && time.Since(newest) > ghostStaleAfter {
		// Quotes this old say nothing about the live market.
		return res
	}

	in := math.LegacyNewDecFromInt(v.input)
	out := math.LegacyNewDecFromInt(amount)
	if in.IsZero() {
		return res
	}
	profit, err := out.Quo(in).Float64()
	if err != nil {
		return res
	}
	res.CurrentProfitPct = (profit - 1) * 100
	res.DriftPct = res.CurrentProfitPct - original
	res.IsStillProfitable = res.CurrentProfitPct > ghostProfitFloor
	return res
}

func (v *GhostValidator) Stats() map[string]any {
	return map[string]any{
		"pending":   v.pending.Load(),
		"validated": v.validated.Load(),
		"mirages":   v.mirages.Load(),
		"delay":     v.delay.String(),
	}
}
