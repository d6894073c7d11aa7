package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/vaultsync/internal/schedule"
	"github.com/roach88/vaultsync/internal/secret"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	MaxRuns int
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reconcile repeatedly on the configured rate schedule",
		Long: `Run a reconciliation immediately and then once per interval of the
configured rate(...) schedule until interrupted. Cron schedules are left to
the external trigger.

Example:
  VAULTSYNC_TRIGGER_SCHEDULE="rate(5 minutes)" vaultsync watch -c vaultsync.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.MaxRuns, "max-runs", 0, "stop after this many runs (0 = until interrupted)")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return outputConfigError(formatter, err)
	}
	sched, err := cfg.Schedule()
	if err != nil {
		return outputConfigError(formatter, err)
	}
	if sched.Kind != schedule.KindRate {
		msg := fmt.Sprintf("watch needs a rate(...) schedule, got %s", sched.Expression)
		_ = formatter.Error(ErrCodeInvalidArgument, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	if opts.MaxRuns < 0 {
		_ = formatter.Error(ErrCodeInvalidArgument, "--max-runs must not be negative", nil)
		return NewExitError(ExitCommandError, "--max-runs must not be negative")
	}

	logger := opts.newLogger(cmd.ErrOrStderr())

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	b, err := opts.openBackend(ctx, cfg, logger)
	if err != nil {
		return outputBackendError(formatter, err)
	}
	defer closeBackend(b, logger)

	eng := opts.newEngine(b, cfg, logger)
	ticker := time.NewTicker(sched.Interval)
	defer ticker.Stop()

	logger.Info("watch starting", "prefix", cfg.SecretsPrefix, "interval", sched.Interval)

	var (
		runs    int
		lastErr error
	)
loop:
	for {
		summary := eng.Run(ctx, cfg.SecretsPrefix)
		runs++
		lastErr = outputSummary(formatter, summary)
		if summary.Status != secret.StatusOK {
			logger.Warn("run finished with errors, retrying next interval", "run_id", summary.RunID)
		}

		if opts.MaxRuns > 0 && runs >= opts.MaxRuns {
			break
		}
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
		}
	}

	logger.Info("watch stopped", "runs", runs)
	if ctx.Err() != nil {
		return nil
	}
	return lastErr
}
