package liquidswap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"

	"github.com/ggonzalez94/aptos-agent-cli/internal/catalog"
	"github.com/ggonzalez94/aptos-agent-cli/internal/dex"
	clierr "github.com/ggonzalez94/aptos-agent-cli/internal/errors"
	"github.com/ggonzalez94/aptos-agent-cli/internal/id"
	"github.com/ggonzalez94/aptos-agent-cli/internal/ledger"
	"github.com/ggonzalez94/aptos-agent-cli/internal/model"
)

// Constant-product fee: 0.25% taken from the input side.
const (
	feeNumerator   = 9975
	feeDenominator = 10000
	feePct         = 0.25
)

// Adapter searches liquidswap pairs on-ledger. Only coin-type assets are
// routable here; fungible-asset-only tokens yield no pools. Pair existence
// and reserves are read through views and cached, and quotes are computed
// locally from the constant-product formula.
type Adapter struct {
	ledger   *ledger.Client
	catalog  *catalog.Service
	reserves *dex.ReserveCache
	router   string
	log      zerolog.Logger
}

func New(ledgerClient *ledger.Client, cat *catalog.Service, reserves *dex.ReserveCache, router string, log zerolog.Logger) *Adapter {
	return &Adapter{
		ledger:   ledgerClient,
		catalog:  cat,
		reserves: reserves,
		router:   router,
		log:      log,
	}
}

func (a *Adapter) Name() string { return "liquidswap" }

func (a *Adapter) Info() model.AdapterInfo {
	return model.AdapterInfo{
		Name:         "liquidswap",
		Type:         "path_router",
		Capabilities: []string{"swap.quote", "swap.execute", "routing.double_hop"},
	}
}

func (a *Adapter) curve() string {
	return a.router + "::curves::Uncorrelated"
}

func (a *Adapter) FindPools(ctx context.Context, req dex.PairRequest) ([]dex.Pool, error) {
	if req.AssetIn.CoinType == "" || req.AssetOut.CoinType == "" {
		return nil, nil
	}

	if a.pairExists(ctx, req.AssetIn.CoinType, req.AssetOut.CoinType) {
		pool := dex.Pool{
			Adapter:  a.Name(),
			AssetIn:  req.AssetIn,
			AssetOut: req.AssetOut,
			Route:    dex.Route{Type: dex.RouteDirect, Path: []string{req.AssetIn.Symbol, req.AssetOut.Symbol}},
			FeePct:   feePct,
		}
		return []dex.Pool{pool}, nil
	}

	// No direct pair: breadth-1 search through catalog tokens for a
	// double-hop path.
	tokens, err := a.catalog.Tokens(ctx)
	if err != nil {
		return nil, err
	}
	pools := make([]dex.Pool, 0, 2)
	for _, mid := range tokens {
		if mid.CoinType == "" || id.Same(mid, req.AssetIn) || id.Same(mid, req.AssetOut) {
			continue
		}
		if !a.pairExists(ctx, req.AssetIn.CoinType, mid.CoinType) {
			continue
		}
		if !a.pairExists(ctx, mid.CoinType, req.AssetOut.CoinType) {
			continue
		}
		pools = append(pools, dex.Pool{
			Adapter:  a.Name(),
			AssetIn:  req.AssetIn,
			AssetOut: req.AssetOut,
			Route:    dex.Route{Type: dex.RouteDoubleHop, Path: []string{req.AssetIn.Symbol, mid.Symbol, req.AssetOut.Symbol}},
			FeePct:   2 * feePct,
			Meta:     map[string]string{"mid_coin": mid.CoinType, "mid_symbol": mid.Symbol},
		})
	}
	return pools, nil
}

func (a *Adapter) Quote(ctx context.Context, pool dex.Pool, amountIn string) string {
	in, ok := new(big.Int).SetString(amountIn, 10)
	if !ok || in.Sign() <= 0 {
		return id.FallbackQuote(amountIn)
	}

	out, err := a.quoteHop(ctx, pool.AssetIn.CoinType, a.hopTarget(pool), in)
	if err == nil && pool.Route.Type == dex.RouteDoubleHop {
		out, err = a.quoteHop(ctx, pool.Meta["mid_coin"], pool.AssetOut.CoinType, out)
	}
	if err != nil {
		a.log.Debug().Err(err).Str("route", pool.Route.Label()).Msg("liquidswap reserves unavailable, using fallback")
		return id.FallbackQuote(amountIn)
	}
	return out.String()
}

func (a *Adapter) hopTarget(pool dex.Pool) string {
	if pool.Route.Type == dex.RouteDoubleHop {
		return pool.Meta["mid_coin"]
	}
	return pool.AssetOut.CoinType
}

// ValidatePool re-checks a persisted pool before execution: coin types must
// still be present and every hop's pair must still exist on-ledger.
func (a *Adapter) ValidatePool(ctx context.Context, pool dex.Pool, req dex.PairRequest) error {
	if pool.AssetIn.CoinType == "" || pool.AssetOut.CoinType == "" {
		return clierr.New(clierr.CodeUsage, "liquidswap pools require coin-type assets")
	}
	hops := [][2]string{{pool.AssetIn.CoinType, pool.AssetOut.CoinType}}
	if pool.Route.Type == dex.RouteDoubleHop {
		mid := pool.Meta["mid_coin"]
		if mid == "" {
			return clierr.New(clierr.CodeInternal, "double-hop pool missing intermediate coin")
		}
		hops = [][2]string{{pool.AssetIn.CoinType, mid}, {mid, pool.AssetOut.CoinType}}
	}
	for _, hop := range hops {
		if !a.pairExists(ctx, hop[0], hop[1]) {
			return clierr.New(clierr.CodeNoLiquidity, fmt.Sprintf("liquidswap pair %s -> %s no longer exists", hop[0], hop[1]))
		}
	}
	return nil
}

func (a *Adapter) BuildSwap(ctx context.Context, params dex.SwapParams, pool dex.Pool) (ledger.EntryFunction, error) {
	switch pool.Route.Type {
	case dex.RouteDirect:
		return ledger.EntryFunction{
			Function:      a.router + "::scripts_v2::swap",
			TypeArguments: []string{pool.AssetIn.CoinType, pool.AssetOut.CoinType, a.curve()},
			Arguments:     []any{params.AmountIn, params.MinAmountOut},
		}, nil
	case dex.RouteDoubleHop:
		mid := pool.Meta["mid_coin"]
		if mid == "" {
			return ledger.EntryFunction{}, clierr.New(clierr.CodeInternal, "double-hop pool missing intermediate coin")
		}
		return ledger.EntryFunction{
			Function:      a.router + "::scripts_v3::swap_multihop",
			TypeArguments: []string{pool.AssetIn.CoinType, mid, pool.AssetOut.CoinType, a.curve(), a.curve()},
			Arguments:     []any{params.AmountIn, params.MinAmountOut},
		}, nil
	default:
		return ledger.EntryFunction{}, clierr.New(clierr.CodeUnsupported, fmt.Sprintf("route type %s not supported by liquidswap", pool.Route.Type))
	}
}

// quoteHop prices one hop from cached or freshly read reserves:
// out = in*fee*ry / (rx + in*fee).
func (a *Adapter) quoteHop(ctx context.Context, coinIn, coinOut string, amountIn *big.Int) (*big.Int, error) {
	rx, ry, err := a.reservesFor(ctx, coinIn, coinOut)
	if err != nil {
		return nil, err
	}
	if rx.Sign() <= 0 || ry.Sign() <= 0 {
		return nil, clierr.New(clierr.CodeNoLiquidity, "empty reserves")
	}
	inWithFee := new(big.Int).Mul(amountIn, big.NewInt(feeNumerator))
	inWithFee.Div(inWithFee, big.NewInt(feeDenominator))
	num := new(big.Int).Mul(inWithFee, ry)
	den := new(big.Int).Add(rx, inWithFee)
	return num.Div(num, den), nil
}

func (a *Adapter) pairExists(ctx context.Context, coinX, coinY string) bool {
	key := "exists|" + coinX + "|" + coinY
	if cached, ok := a.reserves.Get(key); ok {
		return cached.(bool)
	}
	values, err := a.ledger.View(ctx, a.router+"::router_v2::is_swap_exists", []string{coinX, coinY, a.curve()}, nil)
	exists := false
	if err != nil {
		a.log.Debug().Err(err).Str("x", coinX).Str("y", coinY).Msg("liquidswap pair probe failed")
	} else if len(values) > 0 {
		exists = string(values[0]) == "true"
	}
	a.reserves.Set(key, exists)
	return exists
}

// reservesFor reads the pair's reserve sizes, oriented so the first value is
// the input side.
func (a *Adapter) reservesFor(ctx context.Context, coinIn, coinOut string) (*big.Int, *big.Int, error) {
	key := "reserves|" + coinIn + "|" + coinOut
	if cached, ok := a.reserves.Get(key); ok {
		pair := cached.([2]string)
		return mustBig(pair[0]), mustBig(pair[1]), nil
	}
	values, err := a.ledger.View(ctx, a.router+"::router_v2::get_reserves_size", []string{coinIn, coinOut, a.curve()}, nil)
	if err != nil {
		return nil, nil, err
	}
	if len(values) < 2 {
		return nil, nil, clierr.New(clierr.CodeUnavailable, "reserve view returned too few values")
	}
	rx, err := decodeReserve(values[0])
	if err != nil {
		return nil, nil, err
	}
	ry, err := decodeReserve(values[1])
	if err != nil {
		return nil, nil, err
	}
	a.reserves.Set(key, [2]string{rx.String(), ry.String()})
	return rx, ry, nil
}

func decodeReserve(raw []byte) (*big.Int, error) {
	s := string(raw)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, clierr.New(clierr.CodeUnavailable, fmt.Sprintf("invalid reserve value: %s", s))
	}
	return v, nil
}

func mustBig(s string) *big.Int {
	v, _ := new(big.Int).SetString(s, 10)
	if v == nil {
		v = big.NewInt(0)
	}
	return v
}
