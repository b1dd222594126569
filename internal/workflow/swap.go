package workflow

import (
	"context"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ggonzalez94/aptos-agent-cli/internal/dex"
	clierr "github.com/ggonzalez94/aptos-agent-cli/internal/errors"
	"github.com/ggonzalez94/aptos-agent-cli/internal/id"
	"github.com/ggonzalez94/aptos-agent-cli/internal/ledger"
	"github.com/ggonzalez94/aptos-agent-cli/internal/model"
	"github.com/ggonzalez94/aptos-agent-cli/internal/registry"
	"github.com/ggonzalez94/aptos-agent-cli/internal/wallet"
)

// SwapEngine drives the swap workflow: prepare, discover pools, suspend for
// human pool selection, then execute the chosen route. Every phase boundary
// is persisted so the workflow resumes cleanly in a later invocation.
type SwapEngine struct {
	store    *Store
	agg      *dex.Aggregator
	ledger   *ledger.Client
	gas      *ledger.Estimator
	wallets  *wallet.Client
	explorer string
	log      zerolog.Logger
	newID    func() string
}

func NewSwapEngine(store *Store, agg *dex.Aggregator, ledgerClient *ledger.Client, gas *ledger.Estimator, wallets *wallet.Client, explorerBase string, log zerolog.Logger) *SwapEngine {
	return &SwapEngine{
		store:    store,
		agg:      agg,
		ledger:   ledgerClient,
		gas:      gas,
		wallets:  wallets,
		explorer: explorerBase,
		log:      log,
		newID:    uuid.NewString,
	}
}

func (e *SwapEngine) Start(ctx context.Context, req SwapRequest) (*State, *Suspension, error) {
	state := &State{
		ID:       e.newID(),
		Kind:     model.WorkflowKindSwap,
		Phase:    PhasePreparing,
		Swap:     &req,
		Selected: -1,
	}
	return e.run(ctx, state, Answer{})
}

func (e *SwapEngine) Resume(ctx context.Context, workflowID string, ans Answer) (*State, *Suspension, error) {
	state, err := e.store.Get(workflowID)
	if err != nil {
		return nil, nil, err
	}
	if state.Kind != model.WorkflowKindSwap {
		return nil, nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("workflow %s is a %s workflow", workflowID, state.Kind))
	}
	if state.Terminal() {
		return state, nil, nil
	}
	return e.run(ctx, state, ans)
}

func (e *SwapEngine) run(ctx context.Context, state *State, ans Answer) (*State, *Suspension, error) {
	for {
		switch state.Phase {
		case PhasePreparing:
			if err := e.prepare(ctx, state); err != nil {
				return e.abort(state, err)
			}
			state.Phase = PhaseFindPool

		case PhaseFindPool:
			if len(state.Candidates) == 0 {
				pools, statuses, warnings, err := e.agg.FindBest(ctx, pairRequest(state.Swap))
				for _, st := range statuses {
					e.log.Debug().Str("adapter", st.Name).Str("status", st.Status).Int64("latency_ms", st.LatencyMS).Msg("pool discovery")
				}
				if err != nil {
					return e.abort(state, err)
				}
				state.Candidates = pools
				state.Warnings = append(state.Warnings, warnings...)
			}

			switch ans.Kind {
			case AnswerCancel:
				return e.abort(state, clierr.New(clierr.CodeCancelled, "user cancelled"))
			case AnswerSelect:
				if ans.Index < 0 || ans.Index >= len(state.Candidates) {
					// Never picks a default on a bad index.
					return e.abort(state, clierr.New(clierr.CodeSelection,
						fmt.Sprintf("selection %d out of range, choose 0-%d", ans.Index, len(state.Candidates)-1)))
				}
				pool := state.Candidates[ans.Index]
				adapter, ok := e.agg.Adapter(pool.Adapter)
				if !ok {
					return e.abort(state, clierr.New(clierr.CodeInternal, fmt.Sprintf("adapter %s no longer configured", pool.Adapter)))
				}
				// The candidate may have been persisted long before the
				// answer arrived; re-validate it before spending.
				if err := adapter.ValidatePool(ctx, pool, pairRequest(state.Swap)); err != nil {
					return e.abort(state, err)
				}
				state.Selected = ans.Index
				state.Phase = PhaseExecuting
				ans = Answer{}
			default:
				if err := e.store.Save(state); err != nil {
					return nil, nil, clierr.Wrap(clierr.CodeInternal, "persist workflow", err)
				}
				return state, e.poolSuspension(state), nil
			}

		case PhaseExecuting:
			result, err := e.execute(ctx, state)
			if err != nil {
				return e.abort(state, err)
			}
			state.Result = result
			state.Phase = PhaseCompleted
			if err := e.store.Save(state); err != nil {
				return nil, nil, clierr.Wrap(clierr.CodeInternal, "persist workflow", err)
			}
			return state, nil, nil

		default:
			return e.abort(state, clierr.New(clierr.CodeInternal, fmt.Sprintf("swap workflow in unexpected phase %s", state.Phase)))
		}
	}
}

func (e *SwapEngine) prepare(ctx context.Context, state *State) error {
	req := state.Swap
	amount, err := id.ParseBaseUnits(req.AmountBaseUnits)
	if err != nil {
		return err
	}
	if amount.Sign() <= 0 {
		return clierr.New(clierr.CodeUsage, "swap amount must be positive")
	}
	if err := id.ValidateSlippage(req.SlippagePct); err != nil {
		return err
	}
	if id.Same(req.AssetIn, req.AssetOut) {
		return clierr.New(clierr.CodeUsage, "cannot swap an asset for itself")
	}
	if req.Recipient != "" {
		norm, err := id.NormalizeAddress(req.Recipient)
		if err != nil {
			return err
		}
		req.Recipient = norm
	}

	signer, err := wallet.SignerForUser(ctx, e.wallets, req.User)
	if err != nil {
		return err
	}
	if err := ensureFunds(ctx, e.ledger, signer.Address(), req.AssetIn, req.AmountBaseUnits, 0); err != nil {
		return err
	}

	// Baseline fee measurement. A minimal self-transfer stands in for the
	// not-yet-chosen pool: the selection prompt gets a fee figure and the
	// executing phase gets a measured fallback.
	baseline := e.gas.EstimateEntryFunction(ctx, signer, ledger.EntryFunction{
		Function:      "0x1::aptos_account::transfer_coins",
		TypeArguments: []string{id.NativeCoinType},
		Arguments:     []any{signer.Address(), "1"},
	})
	state.Baseline = &baseline
	return nil
}

func pairRequest(req *SwapRequest) dex.PairRequest {
	return dex.PairRequest{
		AssetIn:     req.AssetIn,
		AssetOut:    req.AssetOut,
		AmountIn:    req.AmountBaseUnits,
		SlippagePct: req.SlippagePct,
	}
}

func (e *SwapEngine) execute(ctx context.Context, state *State) (*model.ExecutionResult, error) {
	req := state.Swap
	if state.Selected < 0 || state.Selected >= len(state.Candidates) {
		return nil, clierr.New(clierr.CodeInternal, "executing without a selected pool")
	}
	pool := state.Candidates[state.Selected]

	signer, err := wallet.SignerForUser(ctx, e.wallets, req.User)
	if err != nil {
		return nil, err
	}
	recipient := req.Recipient
	if recipient == "" {
		recipient = signer.Address()
	}

	adapter, ok := e.agg.Adapter(pool.Adapter)
	if !ok {
		return nil, clierr.New(clierr.CodeInternal, fmt.Sprintf("adapter %s no longer configured", pool.Adapter))
	}
	entry, err := adapter.BuildSwap(ctx, dex.SwapParams{
		Sender:       signer.Address(),
		Recipient:    recipient,
		AmountIn:     req.AmountBaseUnits,
		MinAmountOut: pool.MinOut,
	}, pool)
	if err != nil {
		return nil, err
	}

	est := e.gas.EstimateEntryFunction(ctx, signer, entry)
	if !est.Simulated && state.Baseline != nil && state.Baseline.Simulated {
		// The measured self-transfer baseline beats fixed defaults when the
		// pool itself cannot be simulated.
		est = *state.Baseline
		est.Simulated = false
	}
	state.Gas = &est

	// Balances may have moved since preparation; revalidate with the fee
	// ceiling included before spending.
	if err := ensureFunds(ctx, e.ledger, signer.Address(), req.AssetIn, req.AmountBaseUnits, est.MaxOcta); err != nil {
		return nil, err
	}

	txn, err := e.ledger.Execute(ctx, signer, entry, est.MaxGasUnits, est.UnitPrice)
	if err != nil {
		return nil, err
	}

	out := amountInfo(pool.EstimatedOut, req.AssetOut.Decimals)
	return &model.ExecutionResult{
		Success:     true,
		TxHash:      txn.Hash,
		Sender:      signer.Address(),
		Recipient:   recipient,
		AmountIn:    amountInfo(req.AmountBaseUnits, req.AssetIn.Decimals),
		AmountOut:   &out,
		GasUsed:     txn.GasUsed,
		ExplorerURL: registry.ExplorerTxURL(e.explorer, txn.Hash),
		Summary: fmt.Sprintf("Swapped %s %s for an estimated %s %s via %s.",
			req.AmountDecimal, req.AssetIn.Symbol, out.AmountDecimal, req.AssetOut.Symbol, pool.Adapter),
	}, nil
}

func (e *SwapEngine) poolSuspension(state *State) *Suspension {
	options := make([]string, 0, len(state.Candidates))
	for i, pool := range state.Candidates {
		options = append(options, candidateSummary(i, pool))
	}
	gasNative := ""
	if state.Baseline != nil {
		gasNative = state.Baseline.TotalNative
	}
	prompt := fmt.Sprintf("Select a pool by index (0-%d), or cancel.", len(state.Candidates)-1)
	if gasNative != "" {
		prompt += fmt.Sprintf(" Estimated network fee %s %s.", gasNative, id.NativeSymbol)
	}
	return &Suspension{
		WorkflowID: state.ID,
		Action:     ActionSelectPool,
		Prompt:     prompt,
		Options:    options,
		Candidates: state.Candidates,
		GasNative:  gasNative,
	}
}

func (e *SwapEngine) abort(state *State, err error) (*State, *Suspension, error) {
	cliErr := fail(state, err)
	if saveErr := e.store.Save(state); saveErr != nil {
		e.log.Error().Err(saveErr).Str("workflow", state.ID).Msg("failed to persist workflow failure")
	}
	return state, nil, cliErr
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

func amountInfo(baseUnits string, decimals int) model.AmountInfo {
	return model.AmountInfo{
		AmountBaseUnits: baseUnits,
		AmountDecimal:   id.FromBaseUnits(baseUnits, decimals),
		Decimals:        decimals,
	}
}

// ensureFunds verifies the sender holds amount plus, for the native asset,
// the fee ceiling gasOcta.
func ensureFunds(ctx context.Context, client *ledger.Client, address string, asset id.Asset, amount string, gasOcta uint64) error {
	need, err := id.ParseBaseUnits(amount)
	if err != nil {
		return err
	}
	if asset.IsNative() && gasOcta > 0 {
		need = new(big.Int).Add(need, new(big.Int).SetUint64(gasOcta))
	}
	balance, err := client.Balance(ctx, address, asset)
	if err != nil {
		return err
	}
	if balance.Cmp(need) < 0 {
		return clierr.New(clierr.CodeInsufficientFunds, fmt.Sprintf(
			"insufficient %s balance: have %s, need %s",
			asset.Symbol,
			id.FromBaseUnits(balance.String(), asset.Decimals),
			id.FromBaseUnits(need.String(), asset.Decimals)))
	}
	return nil
}
