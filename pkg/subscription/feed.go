package subscription

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"solhop/pkg/graph"
)

// PoolMeta is the static side of a tracked pool: everything the account
// bytes themselves do not carry. Watchlists of these are loaded from a
// JSON file per deployment.
type PoolMeta struct {
	PoolID    string `json:"poolId"`
	TokenA    string `json:"tokenA"`
	TokenB    string `json:"tokenB"`
	DecimalsA uint8  `json:"decimalsA"`
	DecimalsB uint8  `json:"decimalsB"`
	Venue     string `json:"venue"`
	FeeBps    uint16 `json:"feeBps"`
	Layout    Layout `json:"layout"`
	// DataOffset locates the reserves (amm) or the sqrt price (clmm)
	// inside the account data.
	DataOffset int `json:"dataOffset"`
	// QuoteUSD prices TokenB in USD for liquidity estimation.
	QuoteUSD float64 `json:"quoteUsd"`
	// LiquidityUSD is the fallback depth when reserves cannot be read
	// from the layout.
	LiquidityUSD uint64 `json:"liquidityUsd"`
}

// LoadWatchlist reads a JSON array of pool metas.
func LoadWatchlist(path string) ([]PoolMeta, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watchlist: %w", err)
	}
	var pools []PoolMeta
	if err := json.Unmarshal(raw, &pools); err != nil {
		return nil, fmt.Errorf("parse watchlist %s: %w", path, err)
	}
	for i, p := range pools {
		if p.PoolID == "" || p.TokenA == "" || p.TokenB == "" {
			return nil, fmt.Errorf("watchlist entry %d incomplete", i)
		}
	}
	return pools, nil
}

// Feed subscribes to tracked pool accounts and upserts a graph edge on
// every update.
type Feed struct {
	client *WSClient
	graph  *graph.Graph
	log    *zap.Logger

	mu        sync.Mutex
	tracked   map[string]PoolMeta
	updates   uint64
	badDecode uint64
	lastSlot  uint64
	lastRecv  time.Time
}

// NewFeed dials the websocket endpoint and prepares an empty feed.
func NewFeed(ctx context.Context, wsURL string, g *graph.Graph, log *zap.Logger) (*Feed, error) {
	client, err := NewWSClient(ctx, wsURL, log)
	if err != nil {
		return nil, err
	}
	return &Feed{
		client:  client,
		graph:   g,
		log:     log,
		tracked: make(map[string]PoolMeta),
	}, nil
}

// Track subscribes the pool and starts feeding its edge.
func (f *Feed) Track(meta PoolMeta) error {
	f.mu.Lock()
	if _, dup := f.tracked[meta.PoolID]; dup {
		f.mu.Unlock()
		return nil
	}
	f.tracked[meta.PoolID] = meta
	f.mu.Unlock()

	return f.client.SubscribeAccount(meta.PoolID, func(account string, data []byte, slot uint64) {
		f.onUpdate(meta, data, slot)
	})
}

// TrackAll subscribes a whole watchlist, stopping at the first failure.
func (f *Feed) TrackAll(pools []PoolMeta) error {
	for _, p := range pools {
		if err := f.Track(p); err != nil {
			return fmt.Errorf("track %s: %w", p.PoolID, err)
		}
	}
	return nil
}

func (f *Feed) onUpdate(meta PoolMeta, data []byte, slot uint64) {
	edge, err := f.edgeFrom(meta, data, slot)
	if err != nil {
		f.mu.Lock()
		f.badDecode++
		f.mu.Unlock()
		f.log.Warn("pool decode failed", zap.String("pool", meta.PoolID), zap.Error(err))
		return
	}
	f.graph.Upsert(edge)

	f.mu.Lock()
	f.updates++
	if slot > f.lastSlot {
		f.lastSlot = slot
	}
	f.lastRecv = time.Now()
	f.mu.Unlock()
}

func (f *Feed) edgeFrom(meta PoolMeta, data []byte, slot uint64) (graph.PoolEdge, error) {
	edge := graph.PoolEdge{
		PoolID:       meta.PoolID,
		TokenA:       meta.TokenA,
		TokenB:       meta.TokenB,
		FeeBps:       meta.FeeBps,
		Venue:        meta.Venue,
		Slot:         slot,
		LiquidityUSD: meta.LiquidityUSD,
	}
	switch meta.Layout {
	case LayoutAMM:
		rate, _, quoteReserve, err := decodeAMM(data, meta.DataOffset, meta.DecimalsA, meta.DecimalsB)
		if err != nil {
			return graph.PoolEdge{}, err
		}
		edge.RateAToB = rate
		if meta.QuoteUSD > 0 {
			quoteUI := float64(quoteReserve) / pow10(meta.DecimalsB)
			// Both sides of a balanced pool are worth about the same.
			edge.LiquidityUSD = uint64(2 * quoteUI * meta.QuoteUSD)
		}
	case LayoutCLMM:
		rate, err := decodeCLMM(data, meta.DataOffset, meta.DecimalsA, meta.DecimalsB)
		if err != nil {
			return graph.PoolEdge{}, err
		}
		edge.RateAToB = rate
	default:
		return graph.PoolEdge{}, fmt.Errorf("unknown layout %q", meta.Layout)
	}
	return edge, nil
}

func pow10(n uint8) float64 {
	out := 1.0
	for i := uint8(0); i < n; i++ {
		out *= 10
	}
	return out
}

// Stats summarizes feed health.
func (f *Feed) Stats() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]any{
		"tracked":     len(f.tracked),
		"updates":     f.updates,
		"bad_decodes": f.badDecode,
		"last_slot":   f.lastSlot,
		"connected":   f.client.IsConnected(),
	}
	if !f.lastRecv.IsZero() {
		out["last_update"] = f.lastRecv.Format(time.RFC3339)
	}
	return out
}

// Close shuts the websocket down.
func (f *Feed) Close() error {
	return f.client.Close()
}
