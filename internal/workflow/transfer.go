package workflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	clierr "github.com/ggonzalez94/aptos-agent-cli/internal/errors"
	"github.com/ggonzalez94/aptos-agent-cli/internal/id"
	"github.com/ggonzalez94/aptos-agent-cli/internal/ledger"
	"github.com/ggonzalez94/aptos-agent-cli/internal/model"
	"github.com/ggonzalez94/aptos-agent-cli/internal/registry"
	"github.com/ggonzalez94/aptos-agent-cli/internal/wallet"
)

// TransferEngine drives the transfer workflow. Unlike swaps there is no
// venue to choose, but execution still requires an explicit human
// confirmation: the workflow always suspends at confirming first.
type TransferEngine struct {
	store    *Store
	ledger   *ledger.Client
	gas      *ledger.Estimator
	wallets  *wallet.Client
	explorer string
	log      zerolog.Logger
	newID    func() string
}

func NewTransferEngine(store *Store, ledgerClient *ledger.Client, gas *ledger.Estimator, wallets *wallet.Client, explorerBase string, log zerolog.Logger) *TransferEngine {
	return &TransferEngine{
		store:    store,
		ledger:   ledgerClient,
		gas:      gas,
		wallets:  wallets,
		explorer: explorerBase,
		log:      log,
		newID:    uuid.NewString,
	}
}

func (e *TransferEngine) Start(ctx context.Context, req TransferRequest) (*State, *Suspension, error) {
	state := &State{
		ID:       e.newID(),
		Kind:     model.WorkflowKindTransfer,
		Phase:    PhasePreparing,
		Transfer: &req,
		Selected: -1,
	}
	return e.run(ctx, state, Answer{})
}

func (e *TransferEngine) Resume(ctx context.Context, workflowID string, ans Answer) (*State, *Suspension, error) {
	state, err := e.store.Get(workflowID)
	if err != nil {
		return nil, nil, err
	}
	if state.Kind != model.WorkflowKindTransfer {
		return nil, nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("workflow %s is a %s workflow", workflowID, state.Kind))
	}
	if state.Terminal() {
		return state, nil, nil
	}
	return e.run(ctx, state, ans)
}

func (e *TransferEngine) run(ctx context.Context, state *State, ans Answer) (*State, *Suspension, error) {
	for {
		switch state.Phase {
		case PhasePreparing:
			if err := e.prepare(ctx, state); err != nil {
				return e.abort(state, err)
			}
			state.Phase = PhaseConfirming

		case PhaseConfirming:
			switch ans.Kind {
			case AnswerCancel:
				return e.abort(state, clierr.New(clierr.CodeCancelled, "user cancelled"))
			case AnswerAccept:
				state.Phase = PhaseExecuting
				ans = Answer{}
			default:
				if err := e.store.Save(state); err != nil {
					return nil, nil, clierr.Wrap(clierr.CodeInternal, "persist workflow", err)
				}
				suspension, err := e.confirmSuspension(ctx, state)
				if err != nil {
					return e.abort(state, err)
				}
				return state, suspension, nil
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
			return e.abort(state, clierr.New(clierr.CodeInternal, fmt.Sprintf("transfer workflow in unexpected phase %s", state.Phase)))
		}
	}
}

func (e *TransferEngine) prepare(ctx context.Context, state *State) error {
	req := state.Transfer
	amount, err := id.ParseBaseUnits(req.AmountBaseUnits)
	if err != nil {
		return err
	}
	if amount.Sign() <= 0 {
		return clierr.New(clierr.CodeUsage, "transfer amount must be positive")
	}
	recipient, err := id.NormalizeAddress(req.Recipient)
	if err != nil {
		return err
	}
	req.Recipient = recipient

	signer, err := wallet.SignerForUser(ctx, e.wallets, req.User)
	if err != nil {
		return err
	}
	if signer.Address() == recipient {
		return clierr.New(clierr.CodeUsage, "transfer recipient is the sender")
	}

	entry, err := transferEntry(*req)
	if err != nil {
		return err
	}
	est := e.gas.EstimateEntryFunction(ctx, signer, entry)
	state.Gas = &est

	return ensureFunds(ctx, e.ledger, signer.Address(), req.Asset, req.AmountBaseUnits, est.MaxOcta)
}

// execute rebuilds the payload from the persisted request rather than
// trusting anything held in memory across the suspension.
func (e *TransferEngine) execute(ctx context.Context, state *State) (*model.ExecutionResult, error) {
	req := state.Transfer
	signer, err := wallet.SignerForUser(ctx, e.wallets, req.User)
	if err != nil {
		return nil, err
	}

	entry, err := transferEntry(*req)
	if err != nil {
		return nil, err
	}
	est := e.gas.EstimateEntryFunction(ctx, signer, entry)
	state.Gas = &est

	if err := ensureFunds(ctx, e.ledger, signer.Address(), req.Asset, req.AmountBaseUnits, est.MaxOcta); err != nil {
		return nil, err
	}

	txn, err := e.ledger.Execute(ctx, signer, entry, est.MaxGasUnits, est.UnitPrice)
	if err != nil {
		return nil, err
	}

	return &model.ExecutionResult{
		Success:     true,
		TxHash:      txn.Hash,
		Sender:      signer.Address(),
		Recipient:   req.Recipient,
		AmountIn:    amountInfo(req.AmountBaseUnits, req.Asset.Decimals),
		GasUsed:     txn.GasUsed,
		ExplorerURL: registry.ExplorerTxURL(e.explorer, txn.Hash),
		Summary: fmt.Sprintf("Sent %s %s to %s.",
			req.AmountDecimal, req.Asset.Symbol, id.ShortAddress(req.Recipient)),
	}, nil
}

func (e *TransferEngine) confirmSuspension(ctx context.Context, state *State) (*Suspension, error) {
	req := state.Transfer
	signer, err := wallet.SignerForUser(ctx, e.wallets, req.User)
	if err != nil {
		return nil, err
	}

	gasNative := ""
	if state.Gas != nil {
		gasNative = state.Gas.TotalNative
	}
	prompt := &model.TransferPrompt{
		From:      signer.Address(),
		To:        req.Recipient,
		Asset:     assetView(req.Asset),
		Amount:    amountInfo(req.AmountBaseUnits, req.Asset.Decimals),
		GasNative: gasNative,
		Summary: fmt.Sprintf("Send %s %s from %s to %s (est. gas %s %s)? Confirm or cancel.",
			req.AmountDecimal, req.Asset.Symbol, id.ShortAddress(signer.Address()), id.ShortAddress(req.Recipient), gasNative, id.NativeSymbol),
	}
	return &Suspension{
		WorkflowID: state.ID,
		Action:     ActionConfirmTransfer,
		Prompt:     prompt.Summary,
		Options:    []string{"confirm", "cancel"},
		Transfer:   prompt,
		GasNative:  gasNative,
	}, nil
}

func (e *TransferEngine) abort(state *State, err error) (*State, *Suspension, error) {
	cliErr := fail(state, err)
	if saveErr := e.store.Save(state); saveErr != nil {
		e.log.Error().Err(saveErr).Str("workflow", state.ID).Msg("failed to persist workflow failure")
	}
	return state, nil, cliErr
}

// transferEntry builds the on-ledger payload for the request's addressing
// convention: the coin-type entry when one exists, else the
// fungible-asset store transfer.
func transferEntry(req TransferRequest) (ledger.EntryFunction, error) {
	if req.Asset.CoinType != "" {
		return ledger.EntryFunction{
			Function:      "0x1::aptos_account::transfer_coins",
			TypeArguments: []string{req.Asset.CoinType},
			Arguments:     []any{req.Recipient, req.AmountBaseUnits},
		}, nil
	}
	if req.Asset.FAAddress != "" {
		fa, err := id.NormalizeAddress(req.Asset.FAAddress)
		if err != nil {
			return ledger.EntryFunction{}, err
		}
		return ledger.EntryFunction{
			Function:      "0x1::primary_fungible_store::transfer",
			TypeArguments: []string{"0x1::fungible_asset::Metadata"},
			Arguments:     []any{fa, req.Recipient, req.AmountBaseUnits},
		}, nil
	}
	return ledger.EntryFunction{}, clierr.New(clierr.CodeUsage, "asset has no addressing convention")
}

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
