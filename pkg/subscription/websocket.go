// Package subscription streams pool account updates over the Solana
// websocket API and turns them into slot stamped graph edges.
package subscription

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// AccountHandler receives decoded account bytes with their slot.
type AccountHandler func(accountID string, data []byte, slot uint64)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type notification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Context struct {
				Slot uint64 `json:"slot"`
			} `json:"context"`
			Value struct {
				Data []any `json:"data"` // [base64, encoding]
			} `json:"value"`
		} `json:"result"`
		Subscription uint64 `json:"subscription"`
	} `json:"params"`
}

type accountSub struct {
	reqID   uint64
	account string
	handler AccountHandler
	// remote is the server side subscription id, zero until the
	// subscribe response arrives.
	remote uint64
}

// WSClient is a reconnecting accountSubscribe client. Handlers run on
// the reader goroutine and must not block.
type WSClient struct {
	url string
	log *zap.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	nextID    uint64
	subs      map[uint64]*accountSub

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWSClient dials the websocket endpoint and starts the reader and
// reconnection loops.
func NewWSClient(ctx context.Context, wsURL string, log *zap.Logger) (*WSClient, error) {
	cctx, cancel := context.WithCancel(ctx)
	c := &WSClient{
		url:    wsURL,
		log:    log.With(zap.String("ws", wsURL)),
		nextID: 1,
		subs:   make(map[uint64]*accountSub),
		ctx:    cctx,
		cancel: cancel,
	}
	if err := c.connect(); err != nil {
		cancel()
		return nil, err
	}
	go c.readLoop()
	go c.reconnectLoop()
	return c, nil
}

func (c *WSClient) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.log.Info("websocket connected")
	return nil
}

// SubscribeAccount registers a handler for one account's updates.
func (c *WSClient) SubscribeAccount(account string, handler AccountHandler) error {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = &accountSub{reqID: id, account: account, handler: handler}
	c.mu.Unlock()

	return c.send(subscribeRequest(id, account))
}

func subscribeRequest(id uint64, account string) rpcRequest {
	return rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "accountSubscribe",
		Params: []any{
			account,
			map[string]any{"encoding": "base64", "commitment": "confirmed"},
		},
	}
}

func (c *WSClient) send(req rpcRequest) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *WSClient) readLoop() {
	for {
		if c.ctx.Err() != nil {
			return
		}
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.log.Warn("websocket read failed", zap.Error(err))
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
			time.Sleep(100 * time.Millisecond)
			continue
		}
		c.handle(msg)
	}
}

func (c *WSClient) handle(msg []byte) {
	var note notification
	if err := json.Unmarshal(msg, &note); err == nil && note.Method == "accountNotification" {
		c.dispatch(&note)
		return
	}

	var resp rpcResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		c.log.Warn("unparseable websocket message", zap.Error(err))
		return
	}
	if resp.Error != nil {
		c.log.Warn("subscribe rejected", zap.Uint64("req", resp.ID), zap.String("err", resp.Error.Message))
		return
	}
	var remote uint64
	if err := json.Unmarshal(resp.Result, &remote); err != nil {
		return
	}
	c.mu.Lock()
	if sub, ok := c.subs[resp.ID]; ok {
		sub.remote = remote
	}
	c.mu.Unlock()
}

func (c *WSClient) dispatch(note *notification) {
	c.mu.RLock()
	var sub *accountSub
	for _, s := range c.subs {
		if s.remote == note.Params.Subscription {
			sub = s
			break
		}
	}
	c.mu.RUnlock()
	if sub == nil {
		return
	}

	if len(note.Params.Result.Value.Data) == 0 {
		return
	}
	encoded, ok := note.Params.Result.Value.Data[0].(string)
	if !ok {
		return
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		c.log.Warn("bad account payload", zap.String("account", sub.account), zap.Error(err))
		return
	}
	sub.handler(sub.account, raw, note.Params.Result.Context.Slot)
}

func (c *WSClient) reconnectLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
		}

		c.mu.RLock()
		connected := c.connected
		c.mu.RUnlock()
		if connected {
			continue
		}

		if err := c.connect(); err != nil {
			c.log.Warn("reconnect failed", zap.Error(err))
			continue
		}
		c.resubscribe()
	}
}

func (c *WSClient) resubscribe() {
	c.mu.RLock()
	subs := make([]*accountSub, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.RUnlock()

	for _, s := range subs {
		if err := c.send(subscribeRequest(s.reqID, s.account)); err != nil {
			c.log.Warn("resubscribe failed", zap.String("account", s.account), zap.Error(err))
		}
	}
}

// IsConnected reports whether the socket is currently up.
func (c *WSClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Close tears the client down.
func (c *WSClient) Close() error {
	c.cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
