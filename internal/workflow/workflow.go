package workflow

import (
	"time"

	"github.com/ggonzalez94/aptos-agent-cli/internal/dex"
	clierr "github.com/ggonzalez94/aptos-agent-cli/internal/errors"
	"github.com/ggonzalez94/aptos-agent-cli/internal/id"
	"github.com/ggonzalez94/aptos-agent-cli/internal/ledger"
	"github.com/ggonzalez94/aptos-agent-cli/internal/model"
)

// Workflow phases. A workflow either finishes in completed with a result or
// in error with a recorded failure, never both.
const (
	PhasePreparing  = "preparing"
	PhaseFindPool   = "find_pool"
	PhaseConfirming = "confirming"
	PhaseExecuting  = "executing"
	PhaseCompleted  = "completed"
	PhaseError      = "error"
)

// Actions a suspended workflow awaits from the human.
const (
	ActionSelectPool      = "select_pool"
	ActionConfirmTransfer = "confirm_transfer"
)

// SwapRequest is the validated input a swap workflow is started with.
type SwapRequest struct {
	User            string   `json:"user,omitempty"`
	AssetIn         id.Asset `json:"asset_in"`
	AssetOut        id.Asset `json:"asset_out"`
	AmountBaseUnits string   `json:"amount_base_units"`
	AmountDecimal   string   `json:"amount_decimal"`
	Recipient       string   `json:"recipient,omitempty"`
	SlippagePct     float64  `json:"slippage_pct"`
}

// TransferRequest is the validated input a transfer workflow is started with.
type TransferRequest struct {
	User            string   `json:"user,omitempty"`
	Recipient       string   `json:"recipient"`
	Asset           id.Asset `json:"asset"`
	AmountBaseUnits string   `json:"amount_base_units"`
	AmountDecimal   string   `json:"amount_decimal"`
}

// State is the full persisted workflow record. It round-trips through the
// store between invocations, so everything the later phases need must live
// here, not in process memory.
type State struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Phase     string    `json:"phase"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Swap     *SwapRequest     `json:"swap,omitempty"`
	Transfer *TransferRequest `json:"transfer,omitempty"`

	Candidates []dex.Pool       `json:"candidates,omitempty"`
	Selected   int              `json:"selected"`
	Gas        *ledger.Estimate `json:"gas,omitempty"`
	Baseline   *ledger.Estimate `json:"baseline_gas,omitempty"`
	Warnings   []string         `json:"warnings,omitempty"`

	Result  *model.ExecutionResult `json:"result,omitempty"`
	Failure *model.ErrorBody       `json:"failure,omitempty"`
}

// Terminal reports whether the workflow can no longer advance.
func (s *State) Terminal() bool {
	return s.Phase == PhaseCompleted || s.Phase == PhaseError
}

// Suspension is the typed pause value an engine returns when it needs human
// input. It is not an error: the workflow is healthy and waiting.
type Suspension struct {
	WorkflowID string
	Action     string
	Prompt     string
	Options    []string
	Candidates []dex.Pool
	Transfer   *model.TransferPrompt
	GasNative  string
}

// fail moves the state to the error phase, recording the failure so later
// reads of the workflow reproduce it.
func fail(state *State, err error) error {
	cliErr, ok := clierr.As(err)
	if !ok {
		cliErr = clierr.Wrap(clierr.CodeInternal, "workflow failed", err)
	}
	state.Phase = PhaseError
	state.Failure = &model.ErrorBody{
		Code:    int(cliErr.Code),
		Type:    clierr.Type(cliErr),
		Message: cliErr.Error(),
	}
	return cliErr
}
