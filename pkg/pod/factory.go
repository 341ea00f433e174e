package pod

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"solhop/pkg"
	"solhop/pkg/graph"
	"solhop/pkg/market"
)

// StrategyMode names a pod cluster preset.
type StrategyMode string

const (
	// ModeNarrowPath is the full cluster: one hop pod per hop depth,
	// the bridge, the governor and the execution pod.
	ModeNarrowPath StrategyMode = "narrow-path"
	// ModeScanOnly spawns the scanning half only; execution runs
	// disabled so signals are produced but never settled.
	ModeScanOnly StrategyMode = "scan-only"
)

// StrategyConfig parametrizes a cluster spawn.
type StrategyConfig struct {
	Anchor            string
	MinHops           int
	MaxHops           int
	MinLiquidityUSD   uint64
	MinProfitPct      float64
	MaxSlotAge        uint64
	WhaleThresholdUSD float64
	InflowWindow      time.Duration

	HopCooldown       time.Duration
	BridgeCooldown    time.Duration
	GovernorCooldown  time.Duration
	ExecutionCooldown time.Duration

	Execution ExecutionConfig
}

func (c *StrategyConfig) defaults() {
	if c.Anchor == "" {
		c.Anchor = pkg.WSOL
	}
	if c.MinHops == 0 {
		c.MinHops = 2
	}
	if c.MaxHops == 0 {
		c.MaxHops = 4
	}
	if c.WhaleThresholdUSD == 0 {
		c.WhaleThresholdUSD = 250_000
	}
	if c.HopCooldown == 0 {
		c.HopCooldown = 2 * time.Second
	}
	if c.BridgeCooldown == 0 {
		c.BridgeCooldown = 5 * time.Second
	}
	if c.GovernorCooldown == 0 {
		c.GovernorCooldown = 3 * time.Second
	}
	if c.ExecutionCooldown == 0 {
		c.ExecutionCooldown = 500 * time.Millisecond
	}
}

// Deps bundles everything a cluster needs that outlives any one pod.
type Deps struct {
	Graph        *graph.Graph
	Market       *market.Context
	MarketWriter *market.Writer
	Quotes       pkg.QuoteProvider
	Legs         pkg.LegBuilder
	Relay        pkg.BundleSubmitter
	Congestion   pkg.CongestionSource
	Signer       solana.PublicKey
	Log          *zap.Logger
}

// Cluster is the set of pods and runners a factory spawn produced.
type Cluster struct {
	Pods      []*Pod
	Bridge    *BridgeRunner
	Execution *ExecutionRunner
	Ghost     *GhostValidator
}

// StrategyFactory spawns preset pod clusters on a manager.
type StrategyFactory struct {
	manager *Manager
	deps    Deps
}

func NewStrategyFactory(m *Manager, deps Deps) *StrategyFactory {
	return &StrategyFactory{manager: m, deps: deps}
}

// Spawn builds the cluster for the given mode. One hop pod is created
// per hop depth in the configured range so depths compete on equal
// time rather than sharing one scan budget.
func (f *StrategyFactory) Spawn(mode StrategyMode, cfg StrategyConfig) (*Cluster, error) {
	cfg.defaults()
	if mode == ModeScanOnly {
		cfg.Execution.Mode = ModeDisabled
	}

	cluster := &Cluster{}

	for hops := cfg.MinHops; hops <= cfg.MaxHops; hops++ {
		runner := NewHopRunner(f.deps.Graph, HopConfig{
			Anchor:          cfg.Anchor,
			MinHops:         hops,
			MaxHops:         hops,
			MinLiquidityUSD: cfg.MinLiquidityUSD,
			MinProfitPct:    cfg.MinProfitPct,
			MaxSlotAge:      cfg.MaxSlotAge,
		})
		boost := 0
		if hops >= 4 {
			boost = 1
		}
		p, err := f.manager.Spawn(Config{
			Kind:          KindHop,
			Name:          fmt.Sprintf("hop-%d", hops),
			PriorityBoost: boost,
			Cooldown:      cfg.HopCooldown,
			CooldownScale: f.deps.Market.CooldownMultiplier,
		}, runner)
		if err != nil {
			return nil, fmt.Errorf("spawn hop-%d: %w", hops, err)
		}
		cluster.Pods = append(cluster.Pods, p)
	}

	bridge := NewBridgeRunner(cfg.WhaleThresholdUSD, cfg.InflowWindow)
	bridgePod, err := f.manager.Spawn(Config{
		Kind:                KindBridge,
		Name:                "bridge",
		MaxSignalsPerMinute: 20,
		Cooldown:            cfg.BridgeCooldown,
	}, bridge)
	if err != nil {
		return nil, fmt.Errorf("spawn bridge: %w", err)
	}
	bridge.Bind(bridgePod)
	cluster.Bridge = bridge
	cluster.Pods = append(cluster.Pods, bridgePod)

	governor := NewGovernorRunner(f.deps.Market, f.deps.MarketWriter, f.deps.Congestion)
	governorPod, err := f.manager.Spawn(Config{
		Kind:                KindGovernor,
		Name:                "governor",
		MaxSignalsPerMinute: 30,
		Cooldown:            cfg.GovernorCooldown,
	}, governor)
	if err != nil {
		return nil, fmt.Errorf("spawn governor: %w", err)
	}
	cluster.Pods = append(cluster.Pods, governorPod)

	cfg.Execution.defaults()
	var ghost *GhostValidator
	if cfg.Execution.Mode == ModeGhost {
		ghost = NewGhostValidator(f.deps.Quotes, cfg.Execution.ReferenceInput, 0, f.deps.Log)
	}
	execution := NewExecutionRunner(cfg.Execution, f.deps.Market, f.deps.Quotes,
		f.deps.Legs, f.deps.Relay, ghost, f.deps.Signer, f.deps.Log)
	executionPod, err := f.manager.Spawn(Config{
		Kind:                KindExecution,
		Name:                "execution",
		MaxSignalsPerMinute: 30,
		Cooldown:            cfg.ExecutionCooldown,
	}, execution)
	if err != nil {
		return nil, fmt.Errorf("spawn execution: %w", err)
	}
	cluster.Execution = execution
	cluster.Ghost = ghost
	cluster.Pods = append(cluster.Pods, executionPod)

	return cluster, nil
}
