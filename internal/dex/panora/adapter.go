package panora

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ggonzalez94/aptos-agent-cli/internal/dex"
	clierr "github.com/ggonzalez94/aptos-agent-cli/internal/errors"
	"github.com/ggonzalez94/aptos-agent-cli/internal/httpx"
	"github.com/ggonzalez94/aptos-agent-cli/internal/id"
	"github.com/ggonzalez94/aptos-agent-cli/internal/ledger"
	"github.com/ggonzalez94/aptos-agent-cli/internal/model"
)

// defaultHopFeePct stands in when the per-venue fee lookup fails.
const defaultHopFeePct = 0.3

// Adapter delegates routing to the Panora aggregation service over HTTP. The
// service owns path search across venues; this adapter only picks the best
// returned path and asks the service to assemble the final entry function.
type Adapter struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
	log     zerolog.Logger
}

func New(httpClient *httpx.Client, baseURL, apiKey string, log zerolog.Logger) *Adapter {
	return &Adapter{
		http:    httpClient,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  apiKey,
		log:     log,
	}
}

func (a *Adapter) Name() string { return "panora" }

func (a *Adapter) Info() model.AdapterInfo {
	return model.AdapterInfo{
		Name:         "panora",
		Type:         "external_router",
		Capabilities: []string{"swap.quote", "swap.execute", "routing.multi_hop"},
	}
}

type quoteRequest struct {
	FromToken   string  `json:"fromTokenAddress"`
	ToToken     string  `json:"toTokenAddress"`
	FromAmount  string  `json:"fromTokenAmount"`
	SlippagePct float64 `json:"slippagePercentage"`
}

type quoteHop struct {
	Venue      string `json:"dex"`
	FromSymbol string `json:"fromSymbol"`
	ToSymbol   string `json:"toSymbol"`
}

type quotePath struct {
	ToAmount string     `json:"toTokenAmount"`
	Hops     []quoteHop `json:"route"`
}

type quoteResponse struct {
	Quotes []quotePath `json:"quotes"`
}

type feeResponse struct {
	FeePct float64 `json:"feeRate"`
}

func (a *Adapter) FindPools(ctx context.Context, req dex.PairRequest) ([]dex.Pool, error) {
	best, err := a.bestPath(ctx, req.AssetIn, req.AssetOut, req.AmountIn, req.SlippagePct)
	if err != nil {
		return nil, err
	}
	if best == nil {
		return nil, nil
	}

	pool := dex.Pool{
		Adapter:      a.Name(),
		AssetIn:      req.AssetIn,
		AssetOut:     req.AssetOut,
		Route:        pathRoute(*best, req.AssetIn, req.AssetOut),
		FeePct:       a.pathFee(ctx, best.Hops),
		EstimatedOut: best.ToAmount,
		Meta:         map[string]string{"hops": fmt.Sprintf("%d", len(best.Hops))},
	}
	return []dex.Pool{pool}, nil
}

func (a *Adapter) Quote(ctx context.Context, pool dex.Pool, amountIn string) string {
	best, err := a.bestPath(ctx, pool.AssetIn, pool.AssetOut, amountIn, 0)
	if err != nil || best == nil {
		a.log.Debug().Err(err).Msg("panora quote unavailable, using fallback")
		return id.FallbackQuote(amountIn)
	}
	return best.ToAmount
}

// ValidatePool checks the persisted pool still carries everything the router
// request will be built from. The router re-resolves the path itself, so
// well-formed addressing is the whole contract here.
func (a *Adapter) ValidatePool(ctx context.Context, pool dex.Pool, req dex.PairRequest) error {
	if dex.AssetArg(pool.AssetIn) == "" || dex.AssetArg(pool.AssetOut) == "" {
		return clierr.New(clierr.CodeUsage, "pool assets carry no addressing convention")
	}
	return nil
}

type buildRequest struct {
	FromToken   string `json:"fromTokenAddress"`
	ToToken     string `json:"toTokenAddress"`
	FromAmount  string `json:"fromTokenAmount"`
	MinToAmount string `json:"minToTokenAmount"`
	Sender      string `json:"walletAddress"`
	Recipient   string `json:"receiverAddress,omitempty"`
}

type buildResponse struct {
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

func (a *Adapter) BuildSwap(ctx context.Context, params dex.SwapParams, pool dex.Pool) (ledger.EntryFunction, error) {
	req := buildRequest{
		FromToken:   dex.AssetArg(pool.AssetIn),
		ToToken:     dex.AssetArg(pool.AssetOut),
		FromAmount:  params.AmountIn,
		MinToAmount: params.MinAmountOut,
		Sender:      params.Sender,
		Recipient:   params.Recipient,
	}
	var resp buildResponse
	if _, err := httpx.PostJSON(ctx, a.http, a.baseURL+"/swap/transaction", req, a.headers(), &resp); err != nil {
		return ledger.EntryFunction{}, err
	}
	if resp.Function == "" {
		return ledger.EntryFunction{}, clierr.New(clierr.CodeUnavailable, "router returned no transaction payload")
	}
	return ledger.EntryFunction{
		Function:      resp.Function,
		TypeArguments: resp.TypeArguments,
		Arguments:     resp.Arguments,
	}, nil
}

// bestPath asks the routing service for quotes and keeps the path with the
// highest output. An empty quote list is an unsupported pair, not an error.
func (a *Adapter) bestPath(ctx context.Context, in, out id.Asset, amountIn string, slippagePct float64) (*quotePath, error) {
	req := quoteRequest{
		FromToken:   dex.AssetArg(in),
		ToToken:     dex.AssetArg(out),
		FromAmount:  amountIn,
		SlippagePct: slippagePct,
	}
	var resp quoteResponse
	if _, err := httpx.PostJSON(ctx, a.http, a.baseURL+"/swap/quote", req, a.headers(), &resp); err != nil {
		return nil, err
	}

	var best *quotePath
	bestOut := new(big.Int)
	for i := range resp.Quotes {
		v, ok := new(big.Int).SetString(resp.Quotes[i].ToAmount, 10)
		if !ok || v.Sign() <= 0 {
			continue
		}
		if best == nil || v.Cmp(bestOut) > 0 {
			best = &resp.Quotes[i]
			bestOut = v
		}
	}
	return best, nil
}

// pathFee sums per-hop venue fees, substituting the default rate for any
// venue the fee endpoint cannot price.
func (a *Adapter) pathFee(ctx context.Context, hops []quoteHop) float64 {
	if len(hops) == 0 {
		return defaultHopFeePct
	}
	total := 0.0
	for _, hop := range hops {
		total += a.venueFee(ctx, hop.Venue)
	}
	return total
}

func (a *Adapter) venueFee(ctx context.Context, venue string) float64 {
	if venue == "" {
		return defaultHopFeePct
	}
	var resp feeResponse
	if _, err := httpx.GetJSON(ctx, a.http, a.baseURL+"/fees/"+venue, a.headers(), &resp); err != nil || resp.FeePct <= 0 {
		a.log.Debug().Err(err).Str("venue", venue).Msg("venue fee unavailable, using default")
		return defaultHopFeePct
	}
	return resp.FeePct
}

func (a *Adapter) headers() map[string]string {
	if a.apiKey == "" {
		return nil
	}
	return map[string]string{"x-api-key": a.apiKey}
}

func pathRoute(path quotePath, in, out id.Asset) dex.Route {
	symbols := []string{in.Symbol}
	for _, hop := range path.Hops {
		if hop.ToSymbol != "" && hop.ToSymbol != out.Symbol {
			symbols = append(symbols, hop.ToSymbol)
		}
	}
	symbols = append(symbols, out.Symbol)

	routeType := dex.RouteDirect
	switch {
	case len(symbols) == 3:
		routeType = dex.RouteDoubleHop
	case len(symbols) > 3:
		routeType = dex.RouteTripleHop
	}
	return dex.Route{Type: routeType, Path: symbols}
}
