// Package quotesvc is the HTTP client for the external quote service.
// It implements both sides of the settlement contract: fresh per leg
// quotes and the swap instruction build for a previously returned route.
package quotesvc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"golang.org/x/time/rate"

	"solhop/pkg"
)

type quoteResponse struct {
	InputMint      string          `json:"inputMint"`
	OutputMint     string          `json:"outputMint"`
	InAmount       string          `json:"inAmount"`
	OutAmount      string          `json:"outAmount"`
	PriceImpactPct string          `json:"priceImpactPct,omitempty"`
	RoutePlan      json.RawMessage `json:"routePlan"`
	LastUpdate     time.Time       `json:"lastUpdate"`
}

type quoteError struct {
	Error string `json:"error"`
}

type swapRequest struct {
	UserPublicKey string          `json:"userPublicKey"`
	QuoteResponse json.RawMessage `json:"quoteResponse"`
	WrapUnwrapSol bool            `json:"wrapAndUnwrapSol"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// Client talks to one quote service instance. It is safe for
// concurrent use; a shared limiter keeps the engine inside the
// service's rate budget.
type Client struct {
	baseURL     string
	http        *http.Client
	limiter     *rate.Limiter
	slippageBps int
}

func New(baseURL string, reqPerSecond, slippageBps int) *Client {
	if reqPerSecond <= 0 {
		reqPerSecond = 20
	}
	if slippageBps <= 0 {
		slippageBps = 50
	}
	return &Client{
		baseURL:     baseURL,
		http:        &http.Client{Timeout: 5 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(reqPerSecond), reqPerSecond),
		slippageBps: slippageBps,
	}
}

// GetQuote fetches a fresh quote for one leg. The raw route plan is
// stashed in RouteRef so BuildLegInstructions can reuse it.
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, amount math.Int) (*pkg.Quote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", amount.String())
	q.Set("slippageBps", strconv.Itoa(c.slippageBps))

	body, err := c.get(ctx, "/quote?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}

	inAmt, ok := math.NewIntFromString(resp.InAmount)
	if !ok {
		return nil, fmt.Errorf("bad inAmount %q", resp.InAmount)
	}
	outAmt, ok := math.NewIntFromString(resp.OutAmount)
	if !ok {
		return nil, fmt.Errorf("bad outAmount %q", resp.OutAmount)
	}
	impact := 0.0
	if resp.PriceImpactPct != "" {
		impact, _ = strconv.ParseFloat(resp.PriceImpactPct, 64)
	}
	ts := resp.LastUpdate
	if ts.IsZero() {
		ts = time.Now()
	}

	return &pkg.Quote{
		InputMint:      resp.InputMint,
		OutputMint:     resp.OutputMint,
		InAmount:       inAmt,
		OutAmount:      outAmt,
		PriceImpactPct: impact,
		RouteRef:       string(body),
		Timestamp:      ts,
	}, nil
}

// BuildLegInstructions asks the service to turn a quote's route into a
// serialized swap transaction for the signer.
func (c *Client) BuildLegInstructions(ctx context.Context, quote *pkg.Quote, signer solana.PublicKey) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(swapRequest{
		UserPublicKey: signer.String(),
		QuoteResponse: json.RawMessage(quote.RouteRef),
		WrapUnwrapSol: true,
	})
	if err != nil {
		return nil, fmt.Errorf("encode swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp swapResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode swap response: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(resp.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("decode swap transaction: %w", err)
	}
	return raw, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		var qe quoteError
		if json.Unmarshal(body, &qe) == nil && qe.Error != "" {
			return nil, fmt.Errorf("quote service: %s", qe.Error)
		}
		return nil, fmt.Errorf("quote service: status %d", resp.StatusCode)
	}
	return body, nil
}
