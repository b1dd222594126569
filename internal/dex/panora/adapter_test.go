package panora

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ggonzalez94/aptos-agent-cli/internal/dex"
	"github.com/ggonzalez94/aptos-agent-cli/internal/httpx"
	"github.com/ggonzalez94/aptos-agent-cli/internal/id"
)

var (
	aptAsset  = id.Asset{Symbol: "APT", CoinType: id.NativeCoinType, FAAddress: "0xa", Decimals: 8}
	usdcAsset = id.Asset{Symbol: "USDC", FAAddress: "0xbae207659db88bea0cbead6da0ed00aac12edcdda169e591cd41c94180b46f3b", Decimals: 6}
)

func newAdapter(baseURL, apiKey string) *Adapter {
	return New(httpx.New(5*time.Second, 0), baseURL, apiKey, zerolog.Nop())
}

func TestFindPoolsPicksHighestOutputPath(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/swap/quote":
			gotKey = r.Header.Get("x-api-key")
			json.NewEncoder(w).Encode(quoteResponse{Quotes: []quotePath{
				{ToAmount: "4900000", Hops: []quoteHop{{Venue: "cellana"}}},
				{ToAmount: "5100000", Hops: []quoteHop{{Venue: "thala", ToSymbol: "USDT"}, {Venue: "cellana"}}},
			}})
		case "/fees/thala", "/fees/cellana":
			json.NewEncoder(w).Encode(feeResponse{FeePct: 0.25})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	a := newAdapter(server.URL, "secret")
	pools, err := a.FindPools(context.Background(), dex.PairRequest{AssetIn: aptAsset, AssetOut: usdcAsset, AmountIn: "100000000", SlippagePct: 0.5})
	if err != nil {
		t.Fatalf("FindPools failed: %v", err)
	}
	if len(pools) != 1 {
		t.Fatalf("expected one pool, got %d", len(pools))
	}
	pool := pools[0]
	if pool.EstimatedOut != "5100000" {
		t.Fatalf("should keep the highest-output path: %s", pool.EstimatedOut)
	}
	if pool.Route.Type != dex.RouteDoubleHop || pool.Route.Label() != "APT > USDT > USDC" {
		t.Fatalf("unexpected route: %+v", pool.Route)
	}
	if pool.FeePct != 0.5 {
		t.Fatalf("expected summed per-hop fees, got %v", pool.FeePct)
	}
	if gotKey != "secret" {
		t.Fatalf("api key header not sent, got %q", gotKey)
	}
}

func TestFindPoolsEmptyQuoteListIsUnsupported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(quoteResponse{})
	}))
	defer server.Close()

	a := newAdapter(server.URL, "")
	pools, err := a.FindPools(context.Background(), dex.PairRequest{AssetIn: aptAsset, AssetOut: usdcAsset, AmountIn: "1"})
	if err != nil || len(pools) != 0 {
		t.Fatalf("empty quote list should mean unsupported pair: %v %v", pools, err)
	}
}

func TestHopFeeDefaultsWhenLookupFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/swap/quote":
			json.NewEncoder(w).Encode(quoteResponse{Quotes: []quotePath{
				{ToAmount: "100", Hops: []quoteHop{{Venue: "mystery"}}},
			}})
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	a := newAdapter(server.URL, "")
	pools, err := a.FindPools(context.Background(), dex.PairRequest{AssetIn: aptAsset, AssetOut: usdcAsset, AmountIn: "1"})
	if err != nil || len(pools) != 1 {
		t.Fatalf("FindPools failed: %v %v", pools, err)
	}
	if pools[0].FeePct != defaultHopFeePct {
		t.Fatalf("failed fee lookup should use the default, got %v", pools[0].FeePct)
	}
}

func TestQuoteFallsBackWhenServiceDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	a := newAdapter(server.URL, "")
	pool := dex.Pool{Adapter: a.Name(), AssetIn: aptAsset, AssetOut: usdcAsset}
	if got := a.Quote(context.Background(), pool, "1000"); got != "900" {
		t.Fatalf("expected deterministic fallback quote, got %s", got)
	}
}

func TestValidatePoolRequiresAddressing(t *testing.T) {
	a := newAdapter("http://unused", "")
	pool := dex.Pool{Adapter: a.Name(), AssetIn: aptAsset, AssetOut: usdcAsset}
	if err := a.ValidatePool(context.Background(), pool, dex.PairRequest{}); err != nil {
		t.Fatalf("well-formed pool should validate: %v", err)
	}
	bad := dex.Pool{Adapter: a.Name(), AssetIn: id.Asset{Symbol: "X"}, AssetOut: usdcAsset}
	if err := a.ValidatePool(context.Background(), bad, dex.PairRequest{}); err == nil {
		t.Fatal("pool without addressing must fail validation")
	}
}

func TestBuildSwapParsesRouterPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/swap/transaction" {
			http.NotFound(w, r)
			return
		}
		var req buildRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.MinToAmount != "995000" {
			http.Error(w, "missing min amount", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(buildResponse{
			Function:      "0xrouter::aggregator::swap",
			TypeArguments: []string{},
			Arguments:     []any{"1000000", "995000"},
		})
	}))
	defer server.Close()

	a := newAdapter(server.URL, "")
	pool := dex.Pool{Adapter: a.Name(), AssetIn: aptAsset, AssetOut: usdcAsset}
	entry, err := a.BuildSwap(context.Background(), dex.SwapParams{
		Sender:       "0x1",
		Recipient:    "0x2",
		AmountIn:     "1000000",
		MinAmountOut: "995000",
	}, pool)
	if err != nil {
		t.Fatalf("BuildSwap failed: %v", err)
	}
	if entry.Function != "0xrouter::aggregator::swap" {
		t.Fatalf("unexpected function: %s", entry.Function)
	}
}

func TestBuildSwapRejectsEmptyPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(buildResponse{})
	}))
	defer server.Close()

	a := newAdapter(server.URL, "")
	pool := dex.Pool{Adapter: a.Name(), AssetIn: aptAsset, AssetOut: usdcAsset}
	if _, err := a.BuildSwap(context.Background(), dex.SwapParams{AmountIn: "1", MinAmountOut: "1"}, pool); err == nil {
		t.Fatal("empty router payload must be rejected")
	}
}
