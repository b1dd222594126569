package liquidswap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ggonzalez94/aptos-agent-cli/internal/catalog"
	"github.com/ggonzalez94/aptos-agent-cli/internal/dex"
	clierr "github.com/ggonzalez94/aptos-agent-cli/internal/errors"
	"github.com/ggonzalez94/aptos-agent-cli/internal/httpx"
	"github.com/ggonzalez94/aptos-agent-cli/internal/id"
	"github.com/ggonzalez94/aptos-agent-cli/internal/ledger"
	"github.com/ggonzalez94/aptos-agent-cli/internal/registry"
)

var (
	aptAsset = id.Asset{Symbol: "APT", CoinType: id.NativeCoinType, FAAddress: "0xa", Decimals: 8}
	zusdc    = id.Asset{Symbol: "ZUSDC", CoinType: "0xf22bede237a07e121b56d91a491eb7bcdfd1f5907926a9e58338f964a01b17fa::asset::USDC", Decimals: 6}
	zusdt    = id.Asset{Symbol: "ZUSDT", CoinType: "0xf22bede237a07e121b56d91a491eb7bcdfd1f5907926a9e58338f964a01b17fa::asset::USDT", Decimals: 6}
	faOnly   = id.Asset{Symbol: "USDC", FAAddress: "0xbae207659db88bea0cbead6da0ed00aac12edcdda169e591cd41c94180b46f3b", Decimals: 6}
)

type viewCall struct {
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
}

type fakeVenue struct {
	pairs    map[string]bool
	reserves map[string][2]string
	views    int
}

func pairKey(typeArgs []string) string {
	return strings.Join(typeArgs[:2], "|")
}

func (v *fakeVenue) server(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/view" {
			http.NotFound(w, r)
			return
		}
		var call viewCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		v.views++
		switch {
		case strings.HasSuffix(call.Function, "::is_swap_exists"):
			json.NewEncoder(w).Encode([]bool{v.pairs[pairKey(call.TypeArguments)]})
		case strings.HasSuffix(call.Function, "::get_reserves_size"):
			pair, ok := v.reserves[pairKey(call.TypeArguments)]
			if !ok {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"message":"no pool"}`))
				return
			}
			json.NewEncoder(w).Encode([]string{pair[0], pair[1]})
		default:
			http.NotFound(w, r)
		}
	}))
}

func newAdapter(t *testing.T, nodeURL string) *Adapter {
	t.Helper()
	httpClient := httpx.New(5*time.Second, 0)
	client := ledger.New(httpClient, nodeURL, zerolog.Nop())
	cat := catalog.New(httpClient, "", nil, zerolog.Nop())
	return New(client, cat, dex.NewReserveCache(dex.ReserveTTL), registry.LiquidswapRouter, zerolog.Nop())
}

func TestFindPoolsDirect(t *testing.T) {
	venue := &fakeVenue{pairs: map[string]bool{
		pairKey([]string{aptAsset.CoinType, zusdc.CoinType}): true,
	}}
	server := venue.server(t)
	defer server.Close()

	a := newAdapter(t, server.URL)
	pools, err := a.FindPools(context.Background(), dex.PairRequest{AssetIn: aptAsset, AssetOut: zusdc, AmountIn: "100000000"})
	if err != nil {
		t.Fatalf("FindPools failed: %v", err)
	}
	if len(pools) != 1 || pools[0].Route.Type != dex.RouteDirect {
		t.Fatalf("expected one direct pool, got %+v", pools)
	}
	if pools[0].FeePct != 0.25 {
		t.Fatalf("unexpected fee: %v", pools[0].FeePct)
	}
}

func TestFindPoolsDoubleHopViaIntermediate(t *testing.T) {
	venue := &fakeVenue{pairs: map[string]bool{
		pairKey([]string{zusdc.CoinType, aptAsset.CoinType}): true,
		pairKey([]string{aptAsset.CoinType, zusdt.CoinType}): true,
	}}
	server := venue.server(t)
	defer server.Close()

	a := newAdapter(t, server.URL)
	pools, err := a.FindPools(context.Background(), dex.PairRequest{AssetIn: zusdc, AssetOut: zusdt, AmountIn: "1000000"})
	if err != nil {
		t.Fatalf("FindPools failed: %v", err)
	}
	if len(pools) != 1 || pools[0].Route.Type != dex.RouteDoubleHop {
		t.Fatalf("expected one double-hop pool, got %+v", pools)
	}
	if pools[0].Meta["mid_coin"] != aptAsset.CoinType {
		t.Fatalf("unexpected intermediate: %s", pools[0].Meta["mid_coin"])
	}
	if got := pools[0].Route.Label(); got != "ZUSDC > APT > ZUSDT" {
		t.Fatalf("unexpected route label: %s", got)
	}
}

func TestFindPoolsRequiresCoinTypes(t *testing.T) {
	a := newAdapter(t, "http://unused")
	pools, err := a.FindPools(context.Background(), dex.PairRequest{AssetIn: aptAsset, AssetOut: faOnly, AmountIn: "1"})
	if err != nil || len(pools) != 0 {
		t.Fatalf("fungible-asset-only tokens must yield no pools: %v %v", pools, err)
	}
}

func TestQuoteConstantProduct(t *testing.T) {
	venue := &fakeVenue{reserves: map[string][2]string{
		pairKey([]string{aptAsset.CoinType, zusdc.CoinType}): {"1000000000", "5000000000"},
	}}
	server := venue.server(t)
	defer server.Close()

	a := newAdapter(t, server.URL)
	pool := dex.Pool{
		Adapter:  a.Name(),
		AssetIn:  aptAsset,
		AssetOut: zusdc,
		Route:    dex.Route{Type: dex.RouteDirect, Path: []string{"APT", "ZUSDC"}},
	}
	// in 100000000, fee-adjusted 99750000; out = 99750000*5e9/(1e9+99750000).
	if got := a.Quote(context.Background(), pool, "100000000"); got != "453512161" {
		t.Fatalf("unexpected constant-product quote: %s", got)
	}
}

func TestQuoteUsesReserveCache(t *testing.T) {
	venue := &fakeVenue{reserves: map[string][2]string{
		pairKey([]string{aptAsset.CoinType, zusdc.CoinType}): {"1000000000", "5000000000"},
	}}
	server := venue.server(t)
	defer server.Close()

	a := newAdapter(t, server.URL)
	pool := dex.Pool{
		Adapter:  a.Name(),
		AssetIn:  aptAsset,
		AssetOut: zusdc,
		Route:    dex.Route{Type: dex.RouteDirect, Path: []string{"APT", "ZUSDC"}},
	}
	a.Quote(context.Background(), pool, "100000000")
	a.Quote(context.Background(), pool, "200000000")
	if venue.views != 1 {
		t.Fatalf("second quote should hit the reserve cache, saw %d view calls", venue.views)
	}
}

func TestQuoteFallsBackWhenReservesUnavailable(t *testing.T) {
	venue := &fakeVenue{}
	server := venue.server(t)
	defer server.Close()

	a := newAdapter(t, server.URL)
	pool := dex.Pool{
		Adapter:  a.Name(),
		AssetIn:  aptAsset,
		AssetOut: zusdc,
		Route:    dex.Route{Type: dex.RouteDirect, Path: []string{"APT", "ZUSDC"}},
	}
	if got := a.Quote(context.Background(), pool, "1000"); got != "900" {
		t.Fatalf("expected deterministic fallback quote, got %s", got)
	}
}

func TestValidatePoolChecksPairStillExists(t *testing.T) {
	venue := &fakeVenue{pairs: map[string]bool{
		pairKey([]string{aptAsset.CoinType, zusdc.CoinType}): true,
	}}
	server := venue.server(t)
	defer server.Close()

	a := newAdapter(t, server.URL)
	alive := dex.Pool{
		Adapter:  a.Name(),
		AssetIn:  aptAsset,
		AssetOut: zusdc,
		Route:    dex.Route{Type: dex.RouteDirect, Path: []string{"APT", "ZUSDC"}},
	}
	if err := a.ValidatePool(context.Background(), alive, dex.PairRequest{AssetIn: aptAsset, AssetOut: zusdc, AmountIn: "1"}); err != nil {
		t.Fatalf("existing pair should validate: %v", err)
	}

	gone := dex.Pool{
		Adapter:  a.Name(),
		AssetIn:  zusdc,
		AssetOut: zusdt,
		Route:    dex.Route{Type: dex.RouteDirect, Path: []string{"ZUSDC", "ZUSDT"}},
	}
	err := a.ValidatePool(context.Background(), gone, dex.PairRequest{AssetIn: zusdc, AssetOut: zusdt, AmountIn: "1"})
	cErr, ok := clierr.As(err)
	if !ok || cErr.Code != clierr.CodeNoLiquidity {
		t.Fatalf("missing pair must fail validation: %v", err)
	}
}

func TestBuildSwapDirectAndMultihop(t *testing.T) {
	a := newAdapter(t, "http://unused")
	direct := dex.Pool{
		AssetIn:  aptAsset,
		AssetOut: zusdc,
		Route:    dex.Route{Type: dex.RouteDirect, Path: []string{"APT", "ZUSDC"}},
	}
	entry, err := a.BuildSwap(context.Background(), dex.SwapParams{AmountIn: "100", MinAmountOut: "95"}, direct)
	if err != nil {
		t.Fatalf("BuildSwap failed: %v", err)
	}
	if entry.Function != registry.LiquidswapRouter+"::scripts_v2::swap" {
		t.Fatalf("unexpected function: %s", entry.Function)
	}
	if len(entry.TypeArguments) != 3 {
		t.Fatalf("direct swap needs in, out, curve type args: %v", entry.TypeArguments)
	}

	double := dex.Pool{
		AssetIn:  zusdc,
		AssetOut: zusdt,
		Route:    dex.Route{Type: dex.RouteDoubleHop, Path: []string{"ZUSDC", "APT", "ZUSDT"}},
		Meta:     map[string]string{"mid_coin": aptAsset.CoinType},
	}
	entry, err = a.BuildSwap(context.Background(), dex.SwapParams{AmountIn: "100", MinAmountOut: "95"}, double)
	if err != nil {
		t.Fatalf("BuildSwap failed: %v", err)
	}
	if entry.Function != registry.LiquidswapRouter+"::scripts_v3::swap_multihop" {
		t.Fatalf("unexpected function: %s", entry.Function)
	}
	if len(entry.TypeArguments) != 5 {
		t.Fatalf("multihop swap needs in, mid, out and two curves: %v", entry.TypeArguments)
	}
}
