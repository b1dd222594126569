package app

import (
	"fmt"
	"time"

	"github.com/ggonzalez94/aptos-agent-cli/internal/dex"
	"github.com/ggonzalez94/aptos-agent-cli/internal/id"
	"github.com/ggonzalez94/aptos-agent-cli/internal/model"
	"github.com/ggonzalez94/aptos-agent-cli/internal/workflow"
)

func assetView(a id.Asset) model.AssetView {
	return model.AssetView{
		Symbol:    a.Symbol,
		Name:      a.Name,
		CoinType:  a.CoinType,
		FAAddress: a.FAAddress,
		Decimals:  a.Decimals,
		Native:    a.IsNative(),
	}
}

func amountInfo(baseUnits string, decimals int) model.AmountInfo {
	return model.AmountInfo{
		AmountBaseUnits: baseUnits,
		AmountDecimal:   id.FromBaseUnits(baseUnits, decimals),
		Decimals:        decimals,
	}
}

func poolCandidates(pools []dex.Pool) []model.PoolCandidate {
	candidates := make([]model.PoolCandidate, 0, len(pools))
	for i, pool := range pools {
		candidates = append(candidates, model.PoolCandidate{
			Index:        i,
			Adapter:      pool.Adapter,
			Route:        pool.Route.Label(),
			RouteType:    string(pool.Route.Type),
			FeePct:       pool.FeePct,
			EstimatedOut: amountInfo(pool.EstimatedOut, pool.AssetOut.Decimals),
			MinOut:       amountInfo(pool.MinOut, pool.AssetOut.Decimals),
			Match:        pool.Match,
			Summary:      candidateSummary(i, pool),
		})
	}
	return candidates
}

func candidateSummary(index int, pool dex.Pool) string {
	est := id.FromBaseUnits(pool.EstimatedOut, pool.AssetOut.Decimals)
	minOut := id.FromBaseUnits(pool.MinOut, pool.AssetOut.Decimals)
	summary := fmt.Sprintf("[%d] %s %s %s: est %s %s (min %s), fee %.2f%%",
		index, pool.Adapter, pool.Route.Type, pool.Route.Label(), est, pool.AssetOut.Symbol, minOut, pool.FeePct)
	if pool.Match == dex.MatchPartial {
		summary += " [partial match]"
	}
	return summary
}

// workflowView flattens engine state plus an optional suspension into the
// envelope payload the agent reads.
func workflowView(state *workflow.State, susp *workflow.Suspension) model.WorkflowView {
	view := model.WorkflowView{
		WorkflowID: state.ID,
		Kind:       state.Kind,
		Phase:      state.Phase,
		Result:     state.Result,
		Error:      state.Failure,
		CreatedAt:  state.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  state.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if len(state.Candidates) > 0 {
		view.Candidates = poolCandidates(state.Candidates)
	}
	if susp != nil {
		view.Awaiting = susp.Action
		view.Prompt = susp.Prompt
		view.Options = susp.Options
		view.Transfer = susp.Transfer
		view.GasNative = susp.GasNative
		if len(susp.Candidates) > 0 {
			view.Candidates = poolCandidates(susp.Candidates)
		}
	}
	return view
}
