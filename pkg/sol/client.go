// Package sol wraps Solana network access: rate limited RPC clients, a
// round robin endpoint pool, the congestion sampler and the Jito bundle
// relay.
package sol

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/time/rate"
)

// Client is one rate limited RPC connection.
type Client struct {
	endpoint string
	rpc      *rpc.Client
	limiter  *rate.Limiter
}

// NewClient connects to an RPC endpoint and verifies it responds.
func NewClient(ctx context.Context, endpoint string, reqLimitPerSecond int) (*Client, error) {
	if reqLimitPerSecond <= 0 {
		reqLimitPerSecond = 10
	}
	c := &Client{
		endpoint: endpoint,
		rpc:      rpc.New(endpoint),
		limiter:  rate.NewLimiter(rate.Limit(reqLimitPerSecond), reqLimitPerSecond),
	}
	if _, err := c.rpc.GetVersion(ctx); err != nil {
		return nil, fmt.Errorf("rpc %s unreachable: %w", endpoint, err)
	}
	return c, nil
}

// Endpoint returns the endpoint URL this client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// RPC returns the underlying connection after taking a rate limit slot.
func (c *Client) RPC(ctx context.Context) (*rpc.Client, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.rpc, nil
}

// LatestBlockhash fetches a recent blockhash for transaction assembly.
func (c *Client) LatestBlockhash(ctx context.Context) (string, error) {
	conn, err := c.RPC(ctx)
	if err != nil {
		return "", err
	}
	out, err := conn.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return "", fmt.Errorf("get latest blockhash: %w", err)
	}
	return out.Value.Blockhash.String(), nil
}

// RecentPrioritizationFees returns the fee observations the node keeps
// for recent slots, oldest first.
func (c *Client) RecentPrioritizationFees(ctx context.Context) ([]uint64, error) {
	conn, err := c.RPC(ctx)
	if err != nil {
		return nil, err
	}
	out, err := conn.GetRecentPrioritizationFees(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("get recent prioritization fees: %w", err)
	}
	fees := make([]uint64, len(out))
	for i, f := range out {
		fees[i] = f.PrioritizationFee
	}
	return fees, nil
}
