package app

import (
	"github.com/spf13/cobra"

	"github.com/ggonzalez94/aptos-agent-cli/internal/model"
)

func (s *runtimeState) newWorkflowsCommand() *cobra.Command {
	root := &cobra.Command{Use: "workflows", Short: "Inspect persisted workflows"}
	root.AddCommand(s.newWorkflowsListCommand())
	root.AddCommand(s.newWorkflowsShowCommand())
	return root
}

func (s *runtimeState) newWorkflowsListCommand() *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := s.openWorkflows()
			if err != nil {
				return err
			}
			states, err := store.List(status, limit)
			if err != nil {
				return err
			}
			views := make([]model.WorkflowView, 0, len(states))
			for _, state := range states {
				views = append(views, workflowView(state, nil))
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), views, nil, cacheMetaBypass(), nil, false)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by phase (preparing, find_pool, confirming, executing, completed, error)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum workflows to return")
	return cmd
}

func (s *runtimeState) newWorkflowsShowCommand() *cobra.Command {
	var workflowID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one workflow in full",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := s.openWorkflows()
			if err != nil {
				return err
			}
			state, err := store.Get(workflowID)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), workflowView(state, nil), state.Warnings, cacheMetaBypass(), nil, false)
		},
	}
	cmd.Flags().StringVar(&workflowID, "workflow", "", "Workflow identifier")
	_ = cmd.MarkFlagRequired("workflow")
	return cmd
}
