package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/vaultsync/internal/config"
	"github.com/roach88/vaultsync/internal/schedule"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool           `json:"valid"`
	Config   *config.Config `json:"config,omitempty"`
	Schedule string         `json:"schedule_kind,omitempty"`
	Interval string         `json:"interval,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration without contacting any backend",
		Long: `Load the configuration file and environment overrides, check them against
the configuration schema and parse the trigger schedule.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return outputConfigError(formatter, err)
	}
	formatter.VerboseLog("configuration loaded (backend %s, prefix %q)", cfg.Backend, cfg.SecretsPrefix)

	sched, err := cfg.Schedule()
	if err != nil {
		return outputConfigError(formatter, err)
	}

	result := ValidationResult{Valid: true, Config: cfg, Schedule: string(sched.Kind)}
	if sched.Kind == schedule.KindRate {
		result.Interval = sched.Interval.String()
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintln(formatter.Writer, "✓ Configuration valid")
	fmt.Fprintf(formatter.Writer, "  prefix:   %s\n", cfg.SecretsPrefix)
	fmt.Fprintf(formatter.Writer, "  backend:  %s\n", cfg.Backend)
	fmt.Fprintf(formatter.Writer, "  schedule: %s%s\n", sched.Expression, describeInterval(sched.Interval))
	fmt.Fprintf(formatter.Writer, "  notify:   %s\n", describeNotify(cfg))
	return nil
}

func describeInterval(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return fmt.Sprintf(" (every %s)", d)
}

func describeNotify(cfg *config.Config) string {
	switch {
	case !cfg.NotifyOnFailure:
		return "off"
	case cfg.Backend == config.BackendLocal:
		return "log"
	default:
		return cfg.NotificationChannelLocator
	}
}
