package dex

import (
	"context"
	"fmt"
	"strings"

	"github.com/ggonzalez94/aptos-agent-cli/internal/id"
	"github.com/ggonzalez94/aptos-agent-cli/internal/ledger"
	"github.com/ggonzalez94/aptos-agent-cli/internal/model"
)

type RouteType string

const (
	RouteDirect    RouteType = "direct"
	RouteDoubleHop RouteType = "double_hop"
	// RouteTripleHop only shows up on externally routed paths; the
	// on-ledger adapters never search that deep.
	RouteTripleHop RouteType = "triple_hop"
)

const (
	MatchExact   = "exact"
	MatchPartial = "partial"
)

type Route struct {
	Type RouteType `json:"type"`
	// Path is the ordered asset symbols the swap passes through,
	// including endpoints.
	Path []string `json:"path"`
}

func (r Route) Label() string {
	return strings.Join(r.Path, " > ")
}

// PairRequest asks for liquidity between two resolved assets.
type PairRequest struct {
	AssetIn     id.Asset
	AssetOut    id.Asset
	AmountIn    string
	SlippagePct float64
}

// Pool is one candidate venue for a pair, quoted for the request amount.
type Pool struct {
	Adapter      string            `json:"adapter"`
	AssetIn      id.Asset          `json:"asset_in"`
	AssetOut     id.Asset          `json:"asset_out"`
	Route        Route             `json:"route"`
	FeePct       float64           `json:"fee_pct"`
	EstimatedOut string            `json:"estimated_out"`
	MinOut       string            `json:"min_out"`
	Match        string            `json:"match"`
	Meta         map[string]string `json:"meta,omitempty"`
}

// Key identifies a pool across adapters for dedup: venue, route shape, and
// the canonical pair.
func (p Pool) Key() string {
	in := firstKey(p.AssetIn)
	out := firstKey(p.AssetOut)
	return fmt.Sprintf("%s|%s|%s|%s|%s", p.Adapter, p.Route.Type, strings.Join(p.Route.Path, ">"), in, out)
}

func firstKey(a id.Asset) string {
	keys := a.Keys()
	if len(keys) == 0 {
		return a.Symbol
	}
	return keys[0]
}

// SwapParams carries everything an adapter needs to build the on-ledger
// swap payload for a selected pool.
type SwapParams struct {
	Sender       string
	Recipient    string
	AmountIn     string
	MinAmountOut string
}

// Adapter is one swap venue. FindPools and Quote are total for recoverable
// conditions: an unsupported pair yields an empty list and a venue that
// cannot be queried yields the deterministic fallback quote, never an error.
// ValidatePool re-checks a persisted candidate against the request before it
// is executed; candidates can outlive the liquidity they were discovered with.
type Adapter interface {
	Name() string
	Info() model.AdapterInfo
	FindPools(ctx context.Context, req PairRequest) ([]Pool, error)
	Quote(ctx context.Context, pool Pool, amountIn string) string
	ValidatePool(ctx context.Context, pool Pool, req PairRequest) error
	BuildSwap(ctx context.Context, params SwapParams, pool Pool) (ledger.EntryFunction, error)
}

// AssetArg renders an asset the way Move entry functions reference it: the
// FA metadata address when available, else the coin type.
func AssetArg(a id.Asset) string {
	if a.FAAddress != "" {
		norm, err := id.NormalizeAddress(a.FAAddress)
		if err == nil {
			return norm
		}
		return a.FAAddress
	}
	return a.CoinType
}
