// Package pod implements the concurrency cells the engine is built
// from: autonomous scanners that emit prioritized signals onto a shared
// queue, a manager that owns their lifecycle, and the execution cell
// that turns opportunities into bundles.
package pod

import (
	"time"

	"solhop/pkg/market"
)

// Kind identifies a pod flavor. Each kind has its own population
// ceiling in the manager.
type Kind string

const (
	KindHop       Kind = "hop"
	KindBridge    Kind = "bridge"
	KindGovernor  Kind = "governor"
	KindExecution Kind = "execution"
)

// Type tags the payload carried by a Signal.
type Type string

const (
	TypeOpportunity     Type = "OPPORTUNITY"
	TypeExecutionResult Type = "EXECUTION_RESULT"
	TypeContextUpdate   Type = "CONTEXT_UPDATE"
	TypeCongestionAlert Type = "CONGESTION_ALERT"
	TypeVolatilityAlert Type = "VOLATILITY_ALERT"
	TypeLiquidityInflow Type = "LIQUIDITY_INFLOW"
	TypeWarning         Type = "WARNING"
)

// Signal is one message from a pod to the rest of the system. Priority
// runs 1 to 10 with 10 most urgent.
type Signal struct {
	PodID     string
	Kind      Kind
	Type      Type
	Priority  int
	Data      any
	Timestamp time.Time
}

// Opportunity is the payload of an OPPORTUNITY signal.
type Opportunity struct {
	Path            []string
	Pools           []string
	Venues          []string
	HopCount        int
	ProfitPct       float64
	MinLiquidityUSD uint64
	CyclesByHops    map[int]int
	ScanTime        time.Duration
}

// Inflow is the payload of a LIQUIDITY_INFLOW signal.
type Inflow struct {
	AmountUSD      float64
	Venue          string
	Mint           string
	WindowTotalUSD float64
	WindowEvents   int
}

// CongestionAlert is the payload of a CONGESTION_ALERT signal.
type CongestionAlert struct {
	Level          market.CongestionLevel
	TipLamports    uint64
	P50TipLamports uint64
	P95TipLamports uint64
	ProfitAdj      float64
	TradingEnabled bool
}

// VolatilityAlert is the payload of a VOLATILITY_ALERT signal.
type VolatilityAlert struct {
	Index float64
}
