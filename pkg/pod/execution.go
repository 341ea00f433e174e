package pod

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"solhop/pkg"
	"solhop/pkg/market"
)

// Mode selects how the execution pod settles opportunities.
type Mode string

const (
	// ModePaper records every accepted opportunity as an instant
	// success without touching the network.
	ModePaper Mode = "paper"
	// ModeGhost runs the full quote and build pipeline but stops
	// short of submission, handing the cycle to the ghost validator.
	ModeGhost Mode = "ghost"
	// ModeLive submits real bundles.
	ModeLive Mode = "live"
	// ModeDisabled rejects everything.
	ModeDisabled Mode = "disabled"
)

// ExecutionResult records one settlement attempt.
type ExecutionResult struct {
	CycleID           string
	Success           bool
	Signature         string
	Error             string
	ExpectedProfitPct float64
	ActualProfitPct   float64
	LegCount          int
	TipLamports       uint64
	Mode              Mode
	Duration          time.Duration
	Timestamp         time.Time
}

// ExecutionConfig sizes the execution pod.
type ExecutionConfig struct {
	Mode         Mode
	MinProfitPct float64
	// MaxPerMinute caps settlements over a rolling 60 second window.
	// Zero means 5.
	MaxPerMinute int
	// IntakeSize bounds the opportunity backlog. Zero means 100.
	IntakeSize int
	// BatchPerScan is how many opportunities one scan settles. Zero
	// means 3.
	BatchPerScan int
	// ReferenceInput is the notional input in base units for quoting.
	// Zero means 1e9 (one SOL in lamports).
	ReferenceInput math.Int
	// BaseTipLamports anchors the tip formula. Zero means 10000.
	BaseTipLamports uint64
	// HistorySize bounds the kept result history. Zero means 100.
	HistorySize int
}

func (c *ExecutionConfig) defaults() {
	if c.Mode == "" {
		c.Mode = ModePaper
	}
	if c.MaxPerMinute <= 0 {
		c.MaxPerMinute = 5
	}
	if c.IntakeSize <= 0 {
		c.IntakeSize = 100
	}
	if c.BatchPerScan <= 0 {
		c.BatchPerScan = 3
	}
	if c.ReferenceInput.IsNil() || c.ReferenceInput.IsZero() {
		c.ReferenceInput = math.NewInt(1_000_000_000)
	}
	if c.BaseTipLamports == 0 {
		c.BaseTipLamports = 10_000
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 100
	}
}

// ExecutionRunner settles routed opportunities through a two stage
// pipeline: fresh quotes along the path first, then leg building and
// bundle submission. Only one exists per engine.
type ExecutionRunner struct {
	cfg    ExecutionConfig
	market *market.Context
	quotes pkg.QuoteProvider
	legs   pkg.LegBuilder
	relay  pkg.BundleSubmitter
	ghost  *GhostValidator
	signer solana.PublicKey
	log    *zap.Logger

	intake chan Opportunity

	mu        sync.Mutex
	execTimes []time.Time
	history   []ExecutionResult
	attempted uint64
	succeeded uint64
	failed    uint64
	skipped   uint64
	rejected  uint64
}

func NewExecutionRunner(
	cfg ExecutionConfig,
	mkt *market.Context,
	quotes pkg.QuoteProvider,
	legs pkg.LegBuilder,
	relay pkg.BundleSubmitter,
	ghost *GhostValidator,
	signer solana.PublicKey,
	log *zap.Logger,
) *ExecutionRunner {
	cfg.defaults()
	return &ExecutionRunner{
		cfg:    cfg,
		market: mkt,
		quotes: quotes,
		legs:   legs,
		relay:  relay,
		ghost:  ghost,
		signer: signer,
		log:    log,
		intake: make(chan Opportunity, cfg.IntakeSize),
	}
}

// Mode returns the configured execution mode.
func (r *ExecutionRunner) Mode() Mode {
	return r.cfg.Mode
}

// Enqueue offers an opportunity to the intake. When the backlog is full
// the new opportunity is rejected, on the theory that a backlog this
// deep is already stale and fresher signals will follow.
func (r *ExecutionRunner) Enqueue(o Opportunity) bool {
	select {
	case r.intake <- o:
		return true
	default:
		r.mu.Lock()
		r.rejected++
		r.mu.Unlock()
		return false
	}
}

// Scan settles up to BatchPerScan queued opportunities and emits one
// EXECUTION_RESULT signal per settlement.
func (r *ExecutionRunner) Scan(ctx context.Context) ([]Signal, error) {
	var signals []Signal
	for i := 0; i < r.cfg.BatchPerScan; i++ {
		select {
		case <-ctx.Done():
			return signals, ctx.Err()
		case o := <-r.intake:
			res := r.execute(ctx, o)
			if res == nil {
				continue
			}
			signals = append(signals, Signal{
				Type:     TypeExecutionResult,
				Priority: 5,
				Data:     *res,
			})
		default:
			return signals, nil
		}
	}
	return signals, nil
}

// execute runs one opportunity through the gates and the settlement
// pipeline. A nil return means the attempt was skipped by the rolling
// rate limit, which is not an outcome worth recording.
func (r *ExecutionRunner) execute(ctx context.Context, o Opportunity) *ExecutionResult {
	if !r.allowExecution() {
		r.mu.Lock()
		r.skipped++
		r.mu.Unlock()
		return nil
	}

	start := time.Now()
	res := &ExecutionResult{
		CycleID:           fmt.Sprintf("exec_%d", start.UnixMilli()),
		ExpectedProfitPct: o.ProfitPct,
		Mode:              r.cfg.Mode,
		Timestamp:         start,
	}
	defer func() {
		res.Duration = time.Since(start)
		r.record(*res)
	}()

	if len(o.Path) < 3 {
		res.Error = fmt.Sprintf("invalid path length %d", len(o.Path))
		return res
	}
	threshold := r.market.AdjustedThreshold(r.cfg.MinProfitPct)
	if o.ProfitPct < threshold {
		res.Error = fmt.Sprintf("profit %.4f%% below adjusted threshold %.4f%%", o.ProfitPct, threshold)
		return res
	}
	if r.market.ShouldPauseTrading() {
		res.Error = fmt.Sprintf("trading paused: %s", r.market.PauseReason())
		return res
	}

	switch r.cfg.Mode {
	case ModeDisabled:
		res.Error = "execution disabled"
	case ModePaper:
		res.Success = true
		res.Signature = "paper_" + res.CycleID
		res.ActualProfitPct = o.ProfitPct
		res.LegCount = o.HopCount
	default:
		r.settle(ctx, o, threshold, res)
	}
	return res
}

// settle is the live and ghost path: re-quote every leg, rebuild the
// profit from real numbers, build instructions and either hand off to
// the validator or submit the bundle.
func (r *ExecutionRunner) settle(ctx context.Context, o Opportunity, threshold float64, res *ExecutionResult) {
	quotes, actualProfit, err := r.quoteCycle(ctx, o.Path)
	if err != nil {
		res.Error = fmt.Sprintf("quote failed: %v", err)
		return
	}
	res.ActualProfitPct = actualProfit
	if actualProfit < threshold {
		res.Error = fmt.Sprintf("re-quoted profit %.4f%% below adjusted threshold %.4f%%", actualProfit, threshold)
		return
	}

	legs := make([][]byte, 0, len(quotes))
	for _, q := range quotes {
		leg, err := r.legs.BuildLegInstructions(ctx, q, r.signer)
		if err != nil {
			res.Error = fmt.Sprintf("leg build failed: %v", err)
			return
		}
		legs = append(legs, leg)
	}
	if len(legs) != o.HopCount {
		res.Error = fmt.Sprintf("incomplete swap legs: got %d, expected %d", len(legs), o.HopCount)
		return
	}
	res.LegCount = len(legs)
	res.TipLamports = r.tipFor(o.HopCount)

	if r.cfg.Mode == ModeGhost {
		res.Success = true
		res.Signature = "ghost_" + res.CycleID
		if r.ghost != nil {
			r.ghost.ValidateLater(ctx, res.CycleID, o.Path, actualProfit)
		}
		return
	}

	sig, err := r.relay.Submit(ctx, legs, res.TipLamports)
	if err != nil {
		res.Error = fmt.Sprintf("bundle submit failed: %v", err)
		return
	}
	res.Success = true
	res.Signature = sig
}

// quoteCycle chains fresh quotes along the path and returns the profit
// implied by real executable amounts.
func (r *ExecutionRunner) quoteCycle(ctx context.Context, path []string) ([]*pkg.Quote, float64, error) {
	amount := r.cfg.ReferenceInput
	quotes := make([]*pkg.Quote, 0, len(path)-1)
	for i := 0; i+1 < len(path); i++ {
		q, err := r.quotes.GetQuote(ctx, path[i], path[i+1], amount)
		if err != nil {
			return nil, 0, fmt.Errorf("leg %d %s->%s: %w", i, path[i], path[i+1], err)
		}
		quotes = append(quotes, q)
		amount = q.OutAmount
	}

	in := math.LegacyNewDecFromInt(r.cfg.ReferenceInput)
	out := math.LegacyNewDecFromInt(amount)
	ratio, err := out.Quo(in).Float64()
	if err != nil {
		return nil, 0, fmt.Errorf("profit ratio: %w", err)
	}
	return quotes, (ratio - 1) * 100, nil
}

// tipFor scales the base tip by path length and current congestion.
// Longer paths burn more compute and need more priority to land.
func (r *ExecutionRunner) tipFor(hopCount int) uint64 {
	hopFactor := 1 + float64(hopCount-2)*0.25
	congestionFactor := r.market.Congestion().ProfitAdjustment()
	return uint64(float64(r.cfg.BaseTipLamports) * hopFactor * (1 + congestionFactor))
}

// allowExecution enforces the rolling 60 second settlement cap.
func (r *ExecutionRunner) allowExecution() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	cut := now.Add(-time.Minute)
	kept := r.execTimes[:0]
	for _, t := range r.execTimes {
		if t.After(cut) {
			kept = append(kept, t)
		}
	}
	r.execTimes = kept
	if len(r.execTimes) >= r.cfg.MaxPerMinute {
		return false
	}
	r.execTimes = append(r.execTimes, now)
	return true
}

func (r *ExecutionRunner) record(res ExecutionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempted++
	if res.Success {
		r.succeeded++
	} else {
		r.failed++
	}
	r.history = append(r.history, res)
	if len(r.history) > r.cfg.HistorySize {
		r.history = append(r.history[:0], r.history[r.cfg.HistorySize/2:]...)
	}

	if res.Success {
		r.log.Info("cycle settled",
			zap.String("cycle", res.CycleID),
			zap.String("mode", string(res.Mode)),
			zap.Float64("profit_pct", res.ActualProfitPct),
			zap.Uint64("tip", res.TipLamports))
	} else {
		r.log.Debug("cycle rejected",
			zap.String("cycle", res.CycleID),
			zap.String("reason", res.Error))
	}
}

// History returns a copy of the recent results, newest last.
func (r *ExecutionRunner) History() []ExecutionResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ExecutionResult(nil), r.history...)
}

func (r *ExecutionRunner) Stats() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	rate := 0.0
	if r.attempted > 0 {
		rate = float64(r.succeeded) / float64(r.attempted)
	}
	return map[string]any{
		"mode":         string(r.cfg.Mode),
		"attempted":    r.attempted,
		"succeeded":    r.succeeded,
		"failed":       r.failed,
		"skipped":      r.skipped,
		"rejected":     r.rejected,
		"success_rate": rate,
		"backlog":      len(r.intake),
	}
}
