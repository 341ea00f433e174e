package quotesvc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"

	"solhop/pkg"
)

func TestGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quote" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("inputMint") != "MINT_A" || q.Get("amount") != "1000000000" {
			t.Fatalf("query = %v", q)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"inputMint":      "MINT_A",
			"outputMint":     "MINT_B",
			"inAmount":       "1000000000",
			"outAmount":      "1004000000",
			"priceImpactPct": "0.01",
			"routePlan":      []any{},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, 100, 50)
	quote, err := c.GetQuote(context.Background(), "MINT_A", "MINT_B", math.NewInt(1_000_000_000))
	if err != nil {
		t.Fatal(err)
	}
	if quote.OutAmount.String() != "1004000000" {
		t.Fatalf("out amount = %s", quote.OutAmount)
	}
	if quote.PriceImpactPct != 0.01 {
		t.Fatalf("impact = %v", quote.PriceImpactPct)
	}
	if quote.RouteRef == "" {
		t.Fatal("route ref not captured")
	}
	if quote.Timestamp.IsZero() {
		t.Fatal("timestamp not stamped")
	}
}

func TestGetQuoteServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "no route found"})
	}))
	defer srv.Close()

	c := New(srv.URL, 100, 50)
	if _, err := c.GetQuote(context.Background(), "A", "B", math.NewInt(1)); err == nil {
		t.Fatal("service error swallowed")
	}
}

func TestBuildLegInstructions(t *testing.T) {
	rawTx := []byte{1, 2, 3, 4}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/swap" || r.Method != http.MethodPost {
			t.Fatalf("%s %s", r.Method, r.URL.Path)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["userPublicKey"] == "" {
			t.Fatal("signer missing from swap request")
		}
		json.NewEncoder(w).Encode(map[string]string{
			"swapTransaction": base64.StdEncoding.EncodeToString(rawTx),
		})
	}))
	defer srv.Close()

	c := New(srv.URL, 100, 50)
	quote := &pkg.Quote{
		InputMint:  "MINT_A",
		OutputMint: "MINT_B",
		InAmount:   math.NewInt(1),
		OutAmount:  math.NewInt(1),
		RouteRef:   `{"routePlan":[]}`,
	}
	legs, err := c.BuildLegInstructions(context.Background(), quote, solana.PublicKey{})
	if err != nil {
		t.Fatal(err)
	}
	if string(legs) != string(rawTx) {
		t.Fatalf("legs = %v", legs)
	}
}
