// Package pkg defines the shared contracts between the arbitrage engine
// and its external collaborators: the quote service, the bundle relay and
// the congestion monitor. Concrete implementations live in pkg/quotesvc
// and pkg/sol.
package pkg

import (
	"context"
	"time"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
)

// Well known mints used as cycle anchors.
const (
	WSOL = "So11111111111111111111111111111111111111112"
	USDC = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// Quote is a fresh executable price for a single swap leg.
type Quote struct {
	InputMint      string
	OutputMint     string
	InAmount       math.Int
	OutAmount      math.Int
	PriceImpactPct float64
	// RouteRef carries the provider's opaque route payload so the same
	// route can be turned into instructions without re-quoting.
	RouteRef  string
	Timestamp time.Time
}

// QuoteProvider returns executable quotes for single swap legs.
type QuoteProvider interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amount math.Int) (*Quote, error)
}

// LegBuilder turns a quote into serialized swap instructions for one leg
// of an atomic bundle. The returned bytes are opaque to the engine.
type LegBuilder interface {
	BuildLegInstructions(ctx context.Context, quote *Quote, signer solana.PublicKey) ([]byte, error)
}

// BundleSubmitter submits an ordered set of swap legs for atomic
// execution and returns the bundle signature.
type BundleSubmitter interface {
	Submit(ctx context.Context, legs [][]byte, tipLamports uint64) (string, error)
}

// CongestionSample is one observation of network conditions. Percentile
// fields may be zero when the source only sees the current tip, in which
// case the consumer derives percentiles from its own history.
type CongestionSample struct {
	TipLamports     uint64
	P5TipLamports   uint64
	P50TipLamports  uint64
	P95TipLamports  uint64
	VolumeByVenue   map[string]float64
	VolatilityIndex float64
	Timestamp       time.Time
}

// CongestionSource samples current network conditions on demand.
type CongestionSource interface {
	Sample(ctx context.Context) (*CongestionSample, error)
}

// InflowEvent is a single observed liquidity deposit on a venue.
type InflowEvent struct {
	AmountUSD float64
	Venue     string
	Mint      string
	Timestamp time.Time
}
