package app

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ggonzalez94/aptos-agent-cli/internal/dex"
	clierr "github.com/ggonzalez94/aptos-agent-cli/internal/errors"
	"github.com/ggonzalez94/aptos-agent-cli/internal/id"
	"github.com/ggonzalez94/aptos-agent-cli/internal/model"
	"github.com/ggonzalez94/aptos-agent-cli/internal/workflow"
)

const quoteTTL = 15 * time.Second

func (s *runtimeState) newSwapCommand() *cobra.Command {
	root := &cobra.Command{Use: "swap", Short: "Swap one asset for another through the best available venue"}
	root.AddCommand(s.newSwapStartCommand())
	root.AddCommand(s.newSwapResumeCommand())
	root.AddCommand(s.newSwapQuoteCommand())
	return root
}

func (s *runtimeState) newSwapStartCommand() *cobra.Command {
	var (
		fromAsset     string
		toAsset       string
		amountDecimal string
		amountBase    string
		recipient     string
		user          string
		slippage      float64
		selectArg     string
		cancelFlag    bool
		answerArg     string
		transcript    string
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a swap workflow; suspends for pool selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.commandContext()
			defer cancel()

			ans, err := workflow.Resolve(workflow.ActionSelectPool,
				workflow.FlagSource{Select: selectArg, Cancel: cancelFlag},
				workflow.JSONSource{Raw: answerArg},
				workflow.TranscriptSource{Raw: transcript},
			)
			if err != nil {
				return err
			}
			req, err := s.buildSwapRequest(ctx, fromAsset, toAsset, amountDecimal, amountBase, recipient, user, slippage)
			if err != nil {
				return err
			}
			store, err := s.openWorkflows()
			if err != nil {
				return err
			}
			engine := s.newSwapEngine(store)
			state, susp, err := engine.Start(ctx, req)
			if err != nil {
				return err
			}
			// An answer supplied up front carries the workflow straight
			// through the selection point.
			if susp != nil && ans.Kind != workflow.AnswerNone {
				state, susp, err = engine.Resume(ctx, state.ID, ans)
				if err != nil {
					return err
				}
			}
			s.captureCommandDiagnostics(state.Warnings, nil, false)
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), workflowView(state, susp), state.Warnings, cacheMetaBypass(), nil, false)
		},
	}
	cmd.Flags().StringVar(&fromAsset, "from-asset", "", "Asset to sell (symbol, coin type, or metadata address)")
	cmd.Flags().StringVar(&toAsset, "to-asset", "", "Asset to buy (symbol, coin type, or metadata address)")
	cmd.Flags().StringVar(&amountDecimal, "amount-decimal", "", "Amount to sell in decimal form")
	cmd.Flags().StringVar(&amountBase, "amount", "", "Amount to sell in base units")
	cmd.Flags().StringVar(&recipient, "recipient", "", "Recipient address (defaults to the sender)")
	cmd.Flags().StringVar(&user, "user", "", "Wallet user identifier")
	cmd.Flags().Float64Var(&slippage, "slippage-pct", 0, "Slippage tolerance percent")
	cmd.Flags().StringVar(&selectArg, "select-pool", "", "Pre-supplied zero-based pool index")
	cmd.Flags().BoolVar(&cancelFlag, "cancel", false, "Cancel at the first suspension point")
	cmd.Flags().StringVar(&answerArg, "answer", "", "Pre-supplied structured answer document (JSON)")
	cmd.Flags().StringVar(&transcript, "transcript", "", "Conversation text or JSON message array to decode an answer from")
	_ = cmd.MarkFlagRequired("from-asset")
	_ = cmd.MarkFlagRequired("to-asset")
	return cmd
}

func (s *runtimeState) newSwapResumeCommand() *cobra.Command {
	var (
		workflowID string
		selectArg  string
		cancelFlag bool
		answerArg  string
		transcript string
	)
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a suspended swap with a pool selection or cancellation",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.commandContext()
			defer cancel()

			ans, err := workflow.Resolve(workflow.ActionSelectPool,
				workflow.FlagSource{Select: selectArg, Cancel: cancelFlag},
				workflow.JSONSource{Raw: answerArg},
				workflow.TranscriptSource{Raw: transcript},
			)
			if err != nil {
				return err
			}
			store, err := s.openWorkflows()
			if err != nil {
				return err
			}
			engine := s.newSwapEngine(store)
			state, susp, err := engine.Resume(ctx, workflowID, ans)
			if err != nil {
				return err
			}
			warnings := []string(nil)
			if state != nil {
				warnings = state.Warnings
			}
			s.captureCommandDiagnostics(warnings, nil, false)
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), workflowView(state, susp), warnings, cacheMetaBypass(), nil, false)
		},
	}
	cmd.Flags().StringVar(&workflowID, "workflow", "", "Workflow identifier to resume")
	cmd.Flags().StringVar(&selectArg, "select-pool", "", "Zero-based index of the pool to execute")
	cmd.Flags().BoolVar(&cancelFlag, "cancel", false, "Cancel the workflow")
	cmd.Flags().StringVar(&answerArg, "answer", "", "Structured answer document (JSON)")
	cmd.Flags().StringVar(&transcript, "transcript", "", "Conversation text or JSON message array to decode an answer from")
	_ = cmd.MarkFlagRequired("workflow")
	return cmd
}

func (s *runtimeState) newSwapQuoteCommand() *cobra.Command {
	var (
		fromAsset     string
		toAsset       string
		amountDecimal string
		amountBase    string
		slippage      float64
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Rank pool candidates for a pair without starting a workflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolveCtx, cancel := s.commandContext()
			req, err := s.buildSwapRequest(resolveCtx, fromAsset, toAsset, amountDecimal, amountBase, "", "", slippage)
			cancel()
			if err != nil {
				return err
			}

			pair := dex.PairRequest{
				AssetIn:     req.AssetIn,
				AssetOut:    req.AssetOut,
				AmountIn:    req.AmountBaseUnits,
				SlippagePct: req.SlippagePct,
			}
			key := cacheKey("swap quote", pair)
			return s.runCachedCommand(trimRootPath(cmd.CommandPath()), key, quoteTTL, func(ctx context.Context) (any, []model.AdapterStatus, []string, bool, error) {
				pools, statuses, warnings, err := s.agg.FindBest(ctx, pair)
				if err != nil {
					return nil, statuses, warnings, false, err
				}
				partial := len(warnings) > 0
				return poolCandidates(pools), statuses, warnings, partial, nil
			})
		},
	}
	cmd.Flags().StringVar(&fromAsset, "from-asset", "", "Asset to sell (symbol, coin type, or metadata address)")
	cmd.Flags().StringVar(&toAsset, "to-asset", "", "Asset to buy (symbol, coin type, or metadata address)")
	cmd.Flags().StringVar(&amountDecimal, "amount-decimal", "", "Amount to sell in decimal form")
	cmd.Flags().StringVar(&amountBase, "amount", "", "Amount to sell in base units")
	cmd.Flags().Float64Var(&slippage, "slippage-pct", 0, "Slippage tolerance percent")
	_ = cmd.MarkFlagRequired("from-asset")
	_ = cmd.MarkFlagRequired("to-asset")
	return cmd
}

func (s *runtimeState) buildSwapRequest(ctx context.Context, fromAsset, toAsset, amountDecimal, amountBase, recipient, user string, slippage float64) (workflow.SwapRequest, error) {
	assetIn, err := s.catalog.ResolveAsset(ctx, fromAsset)
	if err != nil {
		return workflow.SwapRequest{}, err
	}
	assetOut, err := s.catalog.ResolveAsset(ctx, toAsset)
	if err != nil {
		return workflow.SwapRequest{}, err
	}

	base, dec, err := resolveAmount(amountDecimal, amountBase, assetIn.Decimals)
	if err != nil {
		return workflow.SwapRequest{}, err
	}

	if slippage == 0 {
		slippage = s.settings.DefaultSlippagePct
	}
	if user == "" {
		user = s.settings.DefaultUser
	}

	return workflow.SwapRequest{
		User:            user,
		AssetIn:         assetIn,
		AssetOut:        assetOut,
		AmountBaseUnits: base,
		AmountDecimal:   dec,
		Recipient:       recipient,
		SlippagePct:     slippage,
	}, nil
}

// resolveAmount accepts either decimal or base-unit input and returns both
// renderings.
func resolveAmount(amountDecimal, amountBase string, decimals int) (base, dec string, err error) {
	amountDecimal = strings.TrimSpace(amountDecimal)
	amountBase = strings.TrimSpace(amountBase)
	switch {
	case amountDecimal != "" && amountBase != "":
		return "", "", clierr.New(clierr.CodeUsage, "use either --amount-decimal or --amount, not both")
	case amountDecimal != "":
		base, err = id.ToBaseUnits(amountDecimal, decimals)
		if err != nil {
			return "", "", err
		}
		return base, amountDecimal, nil
	case amountBase != "":
		if _, err := id.ParseBaseUnits(amountBase); err != nil {
			return "", "", err
		}
		return amountBase, id.FromBaseUnits(amountBase, decimals), nil
	default:
		return "", "", clierr.New(clierr.CodeUsage, "amount is required")
	}
}
