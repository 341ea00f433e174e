package sol

import (
	"context"
	"errors"
	"sync/atomic"
)

// RPCPool spreads requests across several RPC endpoints so no single
// provider's rate limit throttles the whole engine.
type RPCPool struct {
	clients []*Client
	index   atomic.Uint64
}

// NewRPCPool connects a client per endpoint. Every endpoint must come
// up; a pool with a dead member would silently skew the round robin.
func NewRPCPool(ctx context.Context, endpoints []string, reqLimitPerSecond int) (*RPCPool, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("no rpc endpoints configured")
	}
	p := &RPCPool{clients: make([]*Client, 0, len(endpoints))}
	for _, endpoint := range endpoints {
		c, err := NewClient(ctx, endpoint, reqLimitPerSecond)
		if err != nil {
			return nil, err
		}
		p.clients = append(p.clients, c)
	}
	return p, nil
}

// Next returns the next client in round robin order.
func (p *RPCPool) Next() *Client {
	if len(p.clients) == 1 {
		return p.clients[0]
	}
	idx := p.index.Add(1) % uint64(len(p.clients))
	return p.clients[idx]
}

// Size returns the number of pooled clients.
func (p *RPCPool) Size() int {
	return len(p.clients)
}
