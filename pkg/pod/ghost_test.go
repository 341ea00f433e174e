package pod

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"go.uber.org/zap"

	"solhop/pkg"
)

func ghostWith(quotes pkg.QuoteProvider) *GhostValidator {
	return NewGhostValidator(quotes, sdkmath.NewInt(1_000_000_000), time.Millisecond, zap.NewNop())
}

func awaitResult(t *testing.T, v *GhostValidator) ValidationResult {
	t.Helper()
	select {
	case r := <-v.Results():
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("validation result never arrived")
		return ValidationResult{}
	}
}

func TestGhostMeasuresDecay(t *testing.T) {
	// Fresh quotes net about 0.7 percent against an original claim of
	// 1.5, so the drift is about minus 0.8 points.
	quotes := &fakeQuotes{rate: math.Sqrt(1.007)}
	v := ghostWith(quotes)

	v.ValidateLater(context.Background(), "exec_1", []string{pkg.WSOL, pkg.USDC, pkg.WSOL}, 1.5)
	res := awaitResult(t, v)

	if res.CycleID != "exec_1" || res.OriginalProfitPct != 1.5 {
		t.Fatalf("result = %+v", res)
	}
	if math.Abs(res.CurrentProfitPct-0.7) > 0.01 {
		t.Fatalf("current profit = %v, want about 0.7", res.CurrentProfitPct)
	}
	if math.Abs(res.DriftPct-(-0.8)) > 0.01 {
		t.Fatalf("drift = %v, want about -0.8", res.DriftPct)
	}
	if !res.IsStillProfitable {
		t.Fatal("0.7 percent is above the 0.1 floor")
	}
}

func TestGhostFlagsMirages(t *testing.T) {
	quotes := &fakeQuotes{err: errors.New("no route")}
	v := ghostWith(quotes)

	v.ValidateLater(context.Background(), "exec_2", []string{pkg.WSOL, pkg.USDC, pkg.WSOL}, 1.5)
	res := awaitResult(t, v)

	if res.CurrentProfitPct != -100 || res.IsStillProfitable {
		t.Fatalf("mirage result = %+v", res)
	}
	if got := v.Stats()["mirages"]; got != uint64(1) {
		t.Fatalf("mirages = %v, want 1", got)
	}
}

func TestGhostVoidsStaleQuotes(t *testing.T) {
	quotes := &fakeQuotes{rate: 1.01, stamp: time.Now().Add(-10 * time.Second)}
	v := ghostWith(quotes)

	v.ValidateLater(context.Background(), "exec_3", []string{pkg.WSOL, pkg.USDC, pkg.WSOL}, 1.5)
	res := awaitResult(t, v)

	if res.CurrentProfitPct != 0 || res.DriftPct != 0 || res.IsStillProfitable {
		t.Fatalf("stale quotes scored: %+v", res)
	}
}

func TestGhostProfitFloor(t *testing.T) {
	// Net 0.05 percent: still positive but under the 0.1 floor.
	quotes := &fakeQuotes{rate: math.Sqrt(1.0005)}
	v := ghostWith(quotes)

	v.ValidateLater(context.Background(), "exec_4", []string{pkg.WSOL, pkg.USDC, pkg.WSOL}, 0.3)
	res := awaitResult(t, v)

	if res.IsStillProfitable {
		t.Fatalf("%v percent cleared the profit floor", res.CurrentProfitPct)
	}
}

func TestGhostPendingGauge(t *testing.T) {
	block := make(chan struct{})
	quotes := &blockingQuotes{release: block}
	v := NewGhostValidator(quotes, sdkmath.NewInt(1_000_000_000), time.Millisecond, zap.NewNop())

	v.ValidateLater(context.Background(), "exec_5", []string{pkg.WSOL, pkg.USDC, pkg.WSOL}, 1.0)
	deadline := time.Now().Add(time.Second)
	for v.Pending() != 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if v.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", v.Pending())
	}
	close(block)
	awaitResult(t, v)
	waitFor(t, func() bool { return v.Pending() == 0 })
}

type blockingQuotes struct {
	release chan struct{}
}

func (b *blockingQuotes) GetQuote(ctx context.Context, in, out string, amount sdkmath.Int) (*pkg.Quote, error) {
	<-b.release
	return &pkg.Quote{InputMint: in, OutputMint: out, InAmount: amount, OutAmount: amount, Timestamp: time.Now()}, nil
}
