package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/vaultsync/internal/config"
	"github.com/roach88/vaultsync/internal/secret"
	"github.com/roach88/vaultsync/internal/store"
)

// PutResult is the output of local put.
type PutResult struct {
	Identifier string `json:"identifier"`
	Version    string `json:"version"`
}

// NewLocalCommand creates the local command group for the SQLite backend.
func NewLocalCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "local",
		Short: "Inspect and seed the local SQLite backend",
	}
	cmd.AddCommand(newLocalPutCommand(rootOpts))
	cmd.AddCommand(newLocalGetCommand(rootOpts))
	return cmd
}

func newLocalPutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "put <identifier> [key=value...]",
		Short: "Publish a new version of a secret in the local source vault",
		Long: `Publish a new version of a secret under the configured prefix. Each put
allocates the next version number, like a KV v2 write.

Example:
  vaultsync local put db-pass password=hunter2 user=app`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocalPut(rootOpts, cmd, args[0], args[1:])
		},
	}
}

func newLocalGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <identifier>",
		Short:         "Show the local sink entry replicated for an identifier",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocalGet(rootOpts, cmd, args[0])
		},
	}
}

func runLocalPut(opts *RootOptions, cmd *cobra.Command, identifier string, pairs []string) error {
	formatter := opts.formatter(cmd)

	payload, err := parsePairs(pairs)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalidArgument, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid secret payload", err)
	}

	cfg, st, err := openLocalStore(opts, formatter)
	if err != nil {
		return err
	}
	defer st.Close()

	version, err := st.PutSecret(commandContext(cmd), cfg.SecretsPrefix, identifier, payload)
	if err != nil {
		_ = formatter.Error(ErrCodeBackendUnavailable, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to publish secret", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(PutResult{Identifier: identifier, Version: version})
	}
	fmt.Fprintf(formatter.Writer, "Published %s version %s\n", secret.SinkName(cfg.SecretsPrefix, identifier), version)
	return nil
}

func runLocalGet(opts *RootOptions, cmd *cobra.Command, identifier string) error {
	formatter := opts.formatter(cmd)

	cfg, st, err := openLocalStore(opts, formatter)
	if err != nil {
		return err
	}
	defer st.Close()

	entry, err := st.Entry(commandContext(cmd), secret.SinkName(cfg.SecretsPrefix, identifier))
	if err != nil {
		_ = formatter.Error(ErrCodeInvalidArgument, err.Error(), nil)
		return WrapExitError(ExitFailure, "no sink entry", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(entry)
	}
	fmt.Fprintf(formatter.Writer, "%s version=%s\n%s\n", entry.Name, displayTag(entry.VersionTag), entry.Value)
	return nil
}

func openLocalStore(opts *RootOptions, formatter *OutputFormatter) (*config.Config, *store.Store, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, nil, outputConfigError(formatter, err)
	}
	if cfg.Backend != config.BackendLocal {
		msg := fmt.Sprintf("local commands need backend %q, configured backend is %q", config.BackendLocal, cfg.Backend)
		_ = formatter.Error(ErrCodeInvalidArgument, msg, nil)
		return nil, nil, NewExitError(ExitCommandError, msg)
	}
	st, err := store.Open(cfg.SourceConnectionLocator)
	if err != nil {
		return nil, nil, outputBackendError(formatter, err)
	}
	return cfg, st, nil
}

// parsePairs turns key=value arguments into a payload. Values may contain
// '='; keys may not be empty or repeated.
func parsePairs(pairs []string) (map[string]string, error) {
	payload := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		if _, dup := payload[k]; dup {
			return nil, fmt.Errorf("key %q given twice", k)
		}
		payload[k] = v
	}
	return payload, nil
}

func displayTag(tag string) string {
	if tag == "" {
		return "untagged"
	}
	return tag
}
