package dex

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	clierr "github.com/ggonzalez94/aptos-agent-cli/internal/errors"
	"github.com/ggonzalez94/aptos-agent-cli/internal/id"
	"github.com/ggonzalez94/aptos-agent-cli/internal/model"
)

// MaxCandidates bounds the ranked list offered for human selection.
const MaxCandidates = 5

// Aggregator fans a pair request out to every adapter, filters and re-quotes
// the returned pools, and ranks them by estimated output. A failing adapter
// is logged and skipped; the aggregate fails only when no pool survives.
type Aggregator struct {
	adapters []Adapter
	byName   map[string]Adapter
	log      zerolog.Logger
}

func NewAggregator(log zerolog.Logger, adapters ...Adapter) *Aggregator {
	byName := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name()] = a
	}
	return &Aggregator{adapters: adapters, byName: byName, log: log}
}

func (a *Aggregator) Adapter(name string) (Adapter, bool) {
	adapter, ok := a.byName[name]
	return adapter, ok
}

func (a *Aggregator) Infos() []model.AdapterInfo {
	infos := make([]model.AdapterInfo, 0, len(a.adapters))
	for _, adapter := range a.adapters {
		infos = append(infos, adapter.Info())
	}
	return infos
}

type findResult struct {
	adapter string
	pools   []Pool
	err     error
	latency time.Duration
}

// FindBest returns the top candidates for the request, ranked by estimated
// output descending, together with per-adapter statuses and any warnings.
func (a *Aggregator) FindBest(ctx context.Context, req PairRequest) ([]Pool, []model.AdapterStatus, []string, error) {
	if _, err := id.ParseBaseUnits(req.AmountIn); err != nil {
		return nil, nil, nil, err
	}
	if err := id.ValidateSlippage(req.SlippagePct); err != nil {
		return nil, nil, nil, err
	}
	if len(a.adapters) == 0 {
		return nil, nil, nil, clierr.New(clierr.CodeInternal, "no swap adapters configured")
	}

	results := make([]findResult, len(a.adapters))
	var wg sync.WaitGroup
	for i, adapter := range a.adapters {
		wg.Add(1)
		go func(i int, adapter Adapter) {
			defer wg.Done()
			start := time.Now()
			pools, err := adapter.FindPools(ctx, req)
			results[i] = findResult{adapter: adapter.Name(), pools: pools, err: err, latency: time.Since(start)}
		}(i, adapter)
	}
	wg.Wait()

	warnings := []string{}
	statuses := make([]model.AdapterStatus, 0, len(results))
	pools := make([]Pool, 0)
	for _, res := range results {
		status := "ok"
		if res.err != nil {
			status = "error"
			a.log.Warn().Err(res.err).Str("adapter", res.adapter).Msg("adapter pool discovery failed")
			warnings = append(warnings, fmt.Sprintf("adapter %s failed: %v", res.adapter, res.err))
		}
		statuses = append(statuses, model.AdapterStatus{Name: res.adapter, Status: status, LatencyMS: res.latency.Milliseconds()})
		pools = append(pools, res.pools...)
	}

	pools = dedupe(pools)

	strict := make([]Pool, 0, len(pools))
	for _, pool := range pools {
		if id.SamePair(pool.AssetIn, pool.AssetOut, req.AssetIn, req.AssetOut) {
			pool.Match = MatchExact
			strict = append(strict, pool)
		}
	}
	matched := strict
	if len(matched) == 0 {
		// Last-resort tier: substring containment across both legs. Every
		// surviving candidate is labelled so the upstream agent can warn
		// the user before offering it.
		partial := make([]Pool, 0)
		for _, pool := range pools {
			if partialPairMatch(pool, req) {
				pool.Match = MatchPartial
				partial = append(partial, pool)
			}
		}
		if len(partial) > 0 {
			warnings = append(warnings, "no exact pair match; offering partial matches, verify assets before executing")
		}
		matched = partial
	}

	quoted := a.requote(ctx, matched, req)
	if len(quoted) == 0 {
		return nil, statuses, warnings, clierr.New(clierr.CodeNoLiquidity, fmt.Sprintf("no liquidity available for %s -> %s", req.AssetIn.Symbol, req.AssetOut.Symbol))
	}

	rank(quoted)
	if len(quoted) > MaxCandidates {
		quoted = quoted[:MaxCandidates]
	}
	return quoted, statuses, warnings, nil
}

// requote re-prices every pool at the requested amount so rankings compare
// like for like regardless of what amount the adapter discovered with.
func (a *Aggregator) requote(ctx context.Context, pools []Pool, req PairRequest) []Pool {
	var wg sync.WaitGroup
	out := make([]Pool, len(pools))
	for i, pool := range pools {
		wg.Add(1)
		go func(i int, pool Pool) {
			defer wg.Done()
			adapter, ok := a.byName[pool.Adapter]
			if !ok {
				return
			}
			pool.EstimatedOut = adapter.Quote(ctx, pool, req.AmountIn)
			if minOut, err := id.MinOut(pool.EstimatedOut, req.SlippagePct); err == nil {
				pool.MinOut = minOut
			}
			out[i] = pool
		}(i, pool)
	}
	wg.Wait()

	kept := make([]Pool, 0, len(out))
	for _, pool := range out {
		est, ok := new(big.Int).SetString(pool.EstimatedOut, 10)
		if pool.Adapter == "" || !ok || est.Sign() <= 0 {
			continue
		}
		kept = append(kept, pool)
	}
	return kept
}

func dedupe(pools []Pool) []Pool {
	seen := make(map[string]struct{}, len(pools))
	out := make([]Pool, 0, len(pools))
	for _, pool := range pools {
		key := pool.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, pool)
	}
	return out
}

// rank orders by estimated output descending with deterministic tie-breaks,
// so the ranking does not depend on adapter completion order.
func rank(pools []Pool) {
	sort.Slice(pools, func(i, j int) bool {
		a, _ := new(big.Int).SetString(pools[i].EstimatedOut, 10)
		b, _ := new(big.Int).SetString(pools[j].EstimatedOut, 10)
		if cmp := a.Cmp(b); cmp != 0 {
			return cmp > 0
		}
		if pools[i].Adapter != pools[j].Adapter {
			return pools[i].Adapter < pools[j].Adapter
		}
		return pools[i].Route.Label() < pools[j].Route.Label()
	})
}

func partialPairMatch(pool Pool, req PairRequest) bool {
	forward := partialAssetMatch(pool.AssetIn, req.AssetIn) && partialAssetMatch(pool.AssetOut, req.AssetOut)
	reverse := partialAssetMatch(pool.AssetIn, req.AssetOut) && partialAssetMatch(pool.AssetOut, req.AssetIn)
	return forward || reverse
}

func partialAssetMatch(a, b id.Asset) bool {
	if id.Same(a, b) {
		return true
	}
	as := strings.ToLower(strings.TrimSpace(a.Symbol))
	bs := strings.ToLower(strings.TrimSpace(b.Symbol))
	if as == "" || bs == "" {
		return false
	}
	return strings.Contains(as, bs) || strings.Contains(bs, as)
}
