package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vaultsync/internal/config"
)

func TestWatch_RejectsCron(t *testing.T) {
	env := localEnv(t)

	out, _, err := execute(t, env, nil, "watch")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "watch needs a rate(...) schedule")
}

func TestWatch_MaxRuns(t *testing.T) {
	env := localEnv(t)
	env[config.EnvTriggerSchedule] = "rate(1 hour)"
	seedExample(t, env)

	out, errOut, err := execute(t, env, []string{"run-1"}, "watch", "--max-runs", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Run run-1: OK\nSecrets created: 1, Secrets updated: 1\n")
	assert.Contains(t, errOut, "watch stopped")
}

func TestWatch_FailedRunSetsExitCode(t *testing.T) {
	env := localEnv(t)
	env[config.EnvTriggerSchedule] = "rate(1 hour)"
	corruptSource(t, env, "broken")

	_, _, err := execute(t, env, []string{"run-1"}, "watch", "--max-runs", "1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestWatch_NegativeMaxRuns(t *testing.T) {
	env := localEnv(t)
	env[config.EnvTriggerSchedule] = "rate(1 hour)"

	_, _, err := execute(t, env, nil, "watch", "--max-runs", "-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
