package cli

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vaultsync/internal/config"
	"github.com/roach88/vaultsync/internal/engine"
	"github.com/roach88/vaultsync/internal/store"
)

// localEnv returns environment overrides selecting a fresh local backend
// under prefix "kv".
func localEnv(t *testing.T) map[string]string {
	t.Helper()
	return map[string]string{
		config.EnvBackend:          "local",
		config.EnvSecretsPrefix:    "kv",
		config.EnvSourceConnection: filepath.Join(t.TempDir(), "vaultsync.db"),
	}
}

// execute runs the root command with args and returns stdout, stderr and
// the command error.
func execute(t *testing.T, env map[string]string, runIDs []string, args ...string) (string, string, error) {
	t.Helper()
	opts := &RootOptions{
		Getenv: func(k string) string { return env[k] },
		RunIDs: engine.NewFixedGenerator(runIDs...),
	}
	cmd := newRootCommand(opts)
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// seedStore opens the local database named in env and applies fn.
func seedStore(t *testing.T, env map[string]string, fn func(ctx context.Context, s *store.Store)) {
	t.Helper()
	s, err := store.Open(env[config.EnvSourceConnection])
	require.NoError(t, err)
	defer s.Close()
	fn(context.Background(), s)
}

// seedExample publishes db-pass at version 2 (synced at 1), api-key at
// version 1 (not synced) and stable at version 1 (synced).
func seedExample(t *testing.T, env map[string]string) {
	t.Helper()
	seedStore(t, env, func(ctx context.Context, s *store.Store) {
		put := func(id string, payload map[string]string) {
			_, err := s.PutSecret(ctx, "kv", id, payload)
			require.NoError(t, err)
		}
		put("db-pass", map[string]string{"password": "one"})
		put("db-pass", map[string]string{"password": "two"})
		put("api-key", map[string]string{"key": "abc"})
		put("stable", map[string]string{"k": "v"})

		_, err := s.Create(ctx, "kv/db-pass", `{"password":"one"}`, "1")
		require.NoError(t, err)
		_, err = s.Create(ctx, "kv/stable", `{"k":"v"}`, "1")
		require.NoError(t, err)
	})
}

// corruptSource inserts a source version whose payload is not JSON.
func corruptSource(t *testing.T, env map[string]string, identifier string) {
	t.Helper()
	seedStore(t, env, func(context.Context, *store.Store) {}) // ensure schema
	db, err := sql.Open("sqlite3", env[config.EnvSourceConnection])
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`INSERT INTO source_versions (prefix, identifier, version, payload) VALUES ('kv', ?, 1, 'not json')`, identifier)
	require.NoError(t, err)
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func findCommand(t *testing.T, path ...string) *cobra.Command {
	t.Helper()
	cmd, _, err := NewRootCommand().Find(path)
	require.NoError(t, err)
	return cmd
}
