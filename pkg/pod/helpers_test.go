package pod

import (
	"context"
	"sync"
	"time"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"

	"solhop/pkg"
)

// fakeQuotes serves quotes at a fixed rate per leg. rate is the output
// per unit of input; an error, when set, fails every call.
type fakeQuotes struct {
	mu    sync.Mutex
	rate  float64
	err   error
	stamp time.Time
	calls int
}

func (f *fakeQuotes) GetQuote(ctx context.Context, in, out string, amount math.Int) (*pkg.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	outAmt := math.LegacyNewDecFromInt(amount).MulInt64(int64(f.rate * 1e9)).QuoInt64(1e9).TruncateInt()
	stamp := f.stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}
	return &pkg.Quote{
		InputMint:  in,
		OutputMint: out,
		InAmount:   amount,
		OutAmount:  outAmt,
		RouteRef:   "route",
		Timestamp:  stamp,
	}, nil
}

func (f *fakeQuotes) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeLegs struct {
	err error
}

func (f *fakeLegs) BuildLegInstructions(ctx context.Context, q *pkg.Quote, signer solana.PublicKey) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte(q.InputMint + ">" + q.OutputMint), nil
}

type fakeRelay struct {
	mu      sync.Mutex
	err     error
	bundles int
	lastTip uint64
}

func (f *fakeRelay) Submit(ctx context.Context, legs [][]byte, tip uint64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.bundles++
	f.lastTip = tip
	return "bundle_sig", nil
}

// fakeSource replays a scripted sequence of congestion samples,
// repeating the last one when the script runs out.
type fakeSource struct {
	mu      sync.Mutex
	samples []pkg.CongestionSample
	i       int
	err     error
}

func (f *fakeSource) Sample(ctx context.Context) (*pkg.CongestionSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s := f.samples[f.i]
	if f.i < len(f.samples)-1 {
		f.i++
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	return &s, nil
}

func tripleOpportunity(profitPct float64) Opportunity {
	return Opportunity{
		Path:            []string{pkg.WSOL, pkg.USDC, pkg.WSOL},
		Pools:           []string{"P1", "P2"},
		Venues:          []string{"raydium", "orca"},
		HopCount:        2,
		ProfitPct:       profitPct,
		MinLiquidityUSD: 200_000,
	}
}

func cycleOpportunity(profitPct float64) Opportunity {
	return Opportunity{
		Path:            []string{pkg.WSOL, pkg.USDC, "RAY", pkg.WSOL},
		Pools:           []string{"P1", "P2", "P3"},
		Venues:          []string{"raydium", "orca", "meteora"},
		HopCount:        3,
		ProfitPct:       profitPct,
		MinLiquidityUSD: 200_000,
	}
}
