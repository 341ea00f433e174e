package sol

import (
	"context"
	"sort"
	"time"

	"solhop/pkg"
)

// FeeSource derives congestion samples from the node's recent
// prioritization fee window. It implements pkg.CongestionSource.
type FeeSource struct {
	pool *RPCPool
}

func NewFeeSource(pool *RPCPool) *FeeSource {
	return &FeeSource{pool: pool}
}

// Sample reads the recent fee window and condenses it into one
// observation. The node returns fees per slot oldest first, so the last
// entry is the freshest view of what landing currently costs.
func (s *FeeSource) Sample(ctx context.Context) (*pkg.CongestionSample, error) {
	fees, err := s.pool.Next().RecentPrioritizationFees(ctx)
	if err != nil {
		return nil, err
	}

	out := &pkg.CongestionSample{Timestamp: time.Now()}
	if len(fees) == 0 {
		return out, nil
	}
	out.TipLamports = fees[len(fees)-1]

	sorted := append([]uint64(nil), fees...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	out.P5TipLamports = feePercentile(sorted, 5)
	out.P50TipLamports = feePercentile(sorted, 50)
	out.P95TipLamports = feePercentile(sorted, 95)
	out.VolatilityIndex = dispersionIndex(out.P50TipLamports, out.P95TipLamports)
	return out, nil
}

func feePercentile(sorted []uint64, p int) uint64 {
	idx := (len(sorted) - 1) * p / 100
	return sorted[idx]
}

// dispersionIndex maps fee spread onto a 0 to 100 volatility scale. A
// p95 at four times p50 or wider saturates the index.
func dispersionIndex(p50, p95 uint64) float64 {
	if p50 == 0 {
		if p95 == 0 {
			return 0
		}
		return 100
	}
	spread := float64(p95)/float64(p50) - 1
	idx := spread / 3 * 100
	if idx > 100 {
		idx = 100
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}
