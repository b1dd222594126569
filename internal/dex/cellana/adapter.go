package cellana

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ggonzalez94/aptos-agent-cli/internal/dex"
	clierr "github.com/ggonzalez94/aptos-agent-cli/internal/errors"
	"github.com/ggonzalez94/aptos-agent-cli/internal/id"
	"github.com/ggonzalez94/aptos-agent-cli/internal/ledger"
	"github.com/ggonzalez94/aptos-agent-cli/internal/model"
)

// Adapter routes through the Cellana router: one pool per pair and curve,
// no multi-hop. Pair support is probed with the router's quote view; a pair
// the router cannot price is simply not offered.
type Adapter struct {
	ledger *ledger.Client
	router string
	log    zerolog.Logger
}

func New(ledgerClient *ledger.Client, router string, log zerolog.Logger) *Adapter {
	return &Adapter{ledger: ledgerClient, router: router, log: log}
}

func (a *Adapter) Name() string { return "cellana" }

func (a *Adapter) Info() model.AdapterInfo {
	return model.AdapterInfo{
		Name:         "cellana",
		Type:         "single_pool",
		Capabilities: []string{"swap.quote", "swap.execute"},
	}
}

func (a *Adapter) FindPools(ctx context.Context, req dex.PairRequest) ([]dex.Pool, error) {
	pools := make([]dex.Pool, 0, 2)
	for _, stable := range []bool{false, true} {
		est, err := a.quoteView(ctx, req.AssetIn, req.AssetOut, req.AmountIn, stable)
		if err != nil {
			a.log.Debug().Err(err).Bool("stable", stable).Msg("cellana pair not quotable")
			continue
		}
		if est == "0" {
			continue
		}
		pools = append(pools, dex.Pool{
			Adapter:      a.Name(),
			AssetIn:      req.AssetIn,
			AssetOut:     req.AssetOut,
			Route:        dex.Route{Type: dex.RouteDirect, Path: []string{req.AssetIn.Symbol, req.AssetOut.Symbol}},
			FeePct:       feePct(stable),
			EstimatedOut: est,
			Meta:         map[string]string{"stable": strconv.FormatBool(stable)},
		})
	}
	return pools, nil
}

func (a *Adapter) Quote(ctx context.Context, pool dex.Pool, amountIn string) string {
	stable := pool.Meta["stable"] == "true"
	est, err := a.quoteView(ctx, pool.AssetIn, pool.AssetOut, amountIn, stable)
	if err != nil {
		a.log.Debug().Err(err).Msg("cellana quote unavailable, using fallback")
		return id.FallbackQuote(amountIn)
	}
	return est
}

// ValidatePool confirms the pool is still quotable for the requested amount,
// so a delisted pair surfaces before submission rather than as an on-ledger
// abort.
func (a *Adapter) ValidatePool(ctx context.Context, pool dex.Pool, req dex.PairRequest) error {
	stable := pool.Meta["stable"] == "true"
	est, err := a.quoteView(ctx, pool.AssetIn, pool.AssetOut, req.AmountIn, stable)
	if err != nil {
		return clierr.Wrap(clierr.CodeNoLiquidity, "cellana pool is no longer quotable", err)
	}
	if est == "0" {
		return clierr.New(clierr.CodeNoLiquidity, "cellana pool has no output for the requested amount")
	}
	return nil
}

func (a *Adapter) BuildSwap(ctx context.Context, params dex.SwapParams, pool dex.Pool) (ledger.EntryFunction, error) {
	stable := pool.Meta["stable"] == "true"
	return ledger.EntryFunction{
		Function:      a.router + "::router::swap_route_entry",
		TypeArguments: []string{},
		Arguments: []any{
			params.AmountIn,
			params.MinAmountOut,
			[]any{dex.AssetArg(pool.AssetIn), dex.AssetArg(pool.AssetOut)},
			[]any{stable},
			params.Recipient,
		},
	}, nil
}

func (a *Adapter) quoteView(ctx context.Context, in, out id.Asset, amountIn string, stable bool) (string, error) {
	est, err := a.ledger.ViewUint(ctx, a.router+"::router::get_amount_out", nil, []any{
		amountIn,
		dex.AssetArg(in),
		dex.AssetArg(out),
		stable,
	})
	if err != nil {
		return "", err
	}
	return est.String(), nil
}

func feePct(stable bool) float64 {
	if stable {
		return 0.1
	}
	return 0.3
}
