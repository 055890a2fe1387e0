package cli

import (
	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/threatprotection/pkg/tpsdk"
)

func newWorkflowsCommand(ctx *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "List and run manual workflows",
	}

	cmd.AddCommand(newWorkflowsListCommand(ctx))
	cmd.AddCommand(newWorkflowsRunCommand(ctx))
	cmd.AddCommand(newWorkflowsStatusCommand(ctx))

	return cmd
}

func newWorkflowsListCommand(ctx *cliContext) *cobra.Command {
	var (
		enabled      bool
		workflowType string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := tpsdk.WorkflowQuery{Type: tpsdk.WorkflowType(workflowType)}
			if cmd.Flags().Changed("enabled") {
				q.Enabled = tpsdk.Bool(enabled)
			}

			workflows, err := ctx.client().GetWorkflows(cmd.Context(), q)
			if err != nil {
				return err
			}
			return ctx.writeJSON(cmd, workflows)
		},
	}

	cmd.Flags().BoolVar(&enabled, "enabled", false, "Only enabled (true) or disabled (false) workflows")
	cmd.Flags().StringVar(&workflowType, "type", "", "Workflow type (message, incident)")

	return cmd
}

func newWorkflowsRunCommand(ctx *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run <workflow-id> <target-id>...",
		Short: "Run a workflow against incidents or messages",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := ctx.client().RunWorkflow(cmd.Context(), args[0], args[1:])
			if err != nil {
				return err
			}
			return ctx.writeJSON(cmd, run)
		},
	}
}

func newWorkflowsStatusCommand(ctx *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show the state of a workflow run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.client().GetWorkflowRunStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return ctx.writeJSON(cmd, status)
		},
	}
}
