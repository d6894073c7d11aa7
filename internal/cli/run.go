package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/vaultsync/internal/engine"
	"github.com/roach88/vaultsync/internal/secret"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one reconciliation",
		Long: `Run one reconciliation of the configured prefix.

Lists the source vault and the sink registry, creates sink entries for new
secrets and updates entries whose version tag differs from the source.
Exits 1 if any secret failed.

Example:
  vaultsync run --config ./vaultsync.yaml
  VAULTSYNC_BACKEND=local VAULTSYNC_SOURCE_CONNECTION=./vaultsync.db vaultsync run`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(rootOpts, cmd)
		},
	}
	return cmd
}

func runOnce(opts *RootOptions, cmd *cobra.Command) error {
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

	summary := opts.newEngine(b, cfg, logger).Run(ctx, cfg.SecretsPrefix)
	return outputSummary(formatter, summary)
}

// outputSummary prints a run summary and maps its status to an exit code.
func outputSummary(formatter *OutputFormatter, s *engine.Summary) error {
	formatter.RunID = s.RunID
	if s.Status == secret.StatusOK {
		if formatter.Format == "json" {
			return formatter.Success(s)
		}
		renderSummary(formatter.Writer, s)
		return nil
	}

	if formatter.Format == "json" {
		_ = formatter.Error(summaryCode(s), s.String(), s)
	} else {
		renderSummary(formatter.Writer, s)
	}
	return NewExitError(ExitFailure, s.String())
}

func outputConfigError(formatter *OutputFormatter, err error) error {
	_ = formatter.Error(string(secret.ErrCodeConfigurationInvalid), err.Error(), nil)
	return WrapExitError(ExitCommandError, "invalid configuration", err)
}

func outputBackendError(formatter *OutputFormatter, err error) error {
	_ = formatter.Error(ErrCodeBackendUnavailable, err.Error(), nil)
	return WrapExitError(ExitCommandError, "failed to open backend", err)
}

func closeBackend(b *backend, logger *slog.Logger) {
	if err := b.close(); err != nil {
		logger.Error("error closing backend", "error", err)
	}
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute (tests).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
