package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/vaultsync/internal/secret"
)

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what a run would change without writing",
		Long: `Take the pre-flight snapshot, compare versions and print the planned
action for every source secret. Secret values are never read and nothing is
written to the sink.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(rootOpts, cmd)
		},
	}
	return cmd
}

func runPlan(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return outputConfigError(formatter, err)
	}

	logger := opts.newLogger(cmd.ErrOrStderr())
	ctx := commandContext(cmd)

	b, err := opts.openBackend(ctx, cfg, logger)
	if err != nil {
		return outputBackendError(formatter, err)
	}
	defer closeBackend(b, logger)

	plan, err := opts.newEngine(b, cfg, logger).Plan(ctx, cfg.SecretsPrefix)
	if err != nil {
		_ = formatter.Error(string(secret.CodeOf(err)), err.Error(), nil)
		return WrapExitError(ExitFailure, "pre-flight listing failed", err)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(plan); err != nil {
			return err
		}
	} else {
		renderPlan(formatter.Writer, plan)
	}

	if len(plan.Failed) > 0 {
		return NewExitError(ExitFailure, "planning failed for some secrets")
	}
	return nil
}
