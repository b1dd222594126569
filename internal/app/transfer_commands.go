package app

import (
	"github.com/spf13/cobra"

	"github.com/ggonzalez94/aptos-agent-cli/internal/workflow"
)

func (s *runtimeState) newTransferCommand() *cobra.Command {
	root := &cobra.Command{Use: "transfer", Short: "Send an asset to another account with explicit confirmation"}
	root.AddCommand(s.newTransferStartCommand())
	root.AddCommand(s.newTransferResumeCommand())
	return root
}

func (s *runtimeState) newTransferStartCommand() *cobra.Command {
	var (
		to            string
		asset         string
		amountDecimal string
		amountBase    string
		user          string
		acceptFlag    bool
		cancelFlag    bool
		answerArg     string
		transcript    string
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a transfer workflow; suspends for confirmation",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.commandContext()
			defer cancel()

			ans, err := workflow.Resolve(workflow.ActionConfirmTransfer,
				workflow.FlagSource{Accept: acceptFlag, Cancel: cancelFlag},
				workflow.JSONSource{Raw: answerArg},
				workflow.TranscriptSource{Raw: transcript},
			)
			if err != nil {
				return err
			}
			resolved, err := s.catalog.ResolveAsset(ctx, asset)
			if err != nil {
				return err
			}
			base, dec, err := resolveAmount(amountDecimal, amountBase, resolved.Decimals)
			if err != nil {
				return err
			}
			if user == "" {
				user = s.settings.DefaultUser
			}

			store, err := s.openWorkflows()
			if err != nil {
				return err
			}
			engine := s.newTransferEngine(store)
			state, susp, err := engine.Start(ctx, workflow.TransferRequest{
				User:            user,
				Recipient:       to,
				Asset:           resolved,
				AmountBaseUnits: base,
				AmountDecimal:   dec,
			})
			if err != nil {
				return err
			}
			// Pre-supplied confirmation skips the suspension round-trip.
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
	cmd.Flags().StringVar(&to, "to", "", "Recipient address")
	cmd.Flags().StringVar(&asset, "asset", "", "Asset to send (symbol, coin type, or metadata address)")
	cmd.Flags().StringVar(&amountDecimal, "amount-decimal", "", "Amount to send in decimal form")
	cmd.Flags().StringVar(&amountBase, "amount", "", "Amount to send in base units")
	cmd.Flags().StringVar(&user, "user", "", "Wallet user identifier")
	cmd.Flags().BoolVar(&acceptFlag, "confirm", false, "Pre-supplied confirmation")
	cmd.Flags().BoolVar(&cancelFlag, "cancel", false, "Cancel at the confirmation point")
	cmd.Flags().StringVar(&answerArg, "answer", "", "Pre-supplied structured answer document (JSON)")
	cmd.Flags().StringVar(&transcript, "transcript", "", "Conversation text or JSON message array to decode an answer from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("asset")
	return cmd
}

func (s *runtimeState) newTransferResumeCommand() *cobra.Command {
	var (
		workflowID string
		acceptFlag bool
		cancelFlag bool
		answerArg  string
		transcript string
	)
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a suspended transfer with a confirmation or cancellation",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.commandContext()
			defer cancel()

			ans, err := workflow.Resolve(workflow.ActionConfirmTransfer,
				workflow.FlagSource{Accept: acceptFlag, Cancel: cancelFlag},
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
			engine := s.newTransferEngine(store)
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
	cmd.Flags().BoolVar(&acceptFlag, "confirm", false, "Confirm and execute the transfer")
	cmd.Flags().BoolVar(&cancelFlag, "cancel", false, "Cancel the workflow")
	cmd.Flags().StringVar(&answerArg, "answer", "", "Structured answer document (JSON)")
	cmd.Flags().StringVar(&transcript, "transcript", "", "Conversation text or JSON message array to decode an answer from")
	_ = cmd.MarkFlagRequired("workflow")
	return cmd
}
