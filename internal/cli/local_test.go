package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vaultsync/internal/config"
)

func TestLocalPutRunGet(t *testing.T) {
	env := localEnv(t)

	out, _, err := execute(t, env, nil, "local", "put", "db-pass", "password=one")
	require.NoError(t, err)
	assert.Equal(t, "Published kv/db-pass version 1\n", out)

	out, _, err = execute(t, env, nil, "local", "put", "db-pass", "password=two=2", "user=app")
	require.NoError(t, err)
	assert.Equal(t, "Published kv/db-pass version 2\n", out)

	_, _, err = execute(t, env, []string{"run-1"}, "run")
	require.NoError(t, err)

	out, _, err = execute(t, env, nil, "local", "get", "db-pass")
	require.NoError(t, err)
	assert.Equal(t, "kv/db-pass version=2\n{\"password\":\"two=2\",\"user\":\"app\"}\n", out)
}

func TestLocalPut_JSON(t *testing.T) {
	env := localEnv(t)

	out, _, err := execute(t, env, nil, "local", "put", "api-key", "key=abc", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data PutResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, PutResult{Identifier: "api-key", Version: "1"}, resp.Data)
}

func TestLocalPut_InvalidPair(t *testing.T) {
	env := localEnv(t)

	for _, args := range [][]string{{"a", "novalue"}, {"a", "=x"}, {"a", "k=1", "k=2"}} {
		_, _, err := execute(t, env, nil, append([]string{"local", "put"}, args...)...)
		require.Error(t, err, "args %v", args)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	}
}

func TestLocalGet_NotReplicated(t *testing.T) {
	env := localEnv(t)

	out, _, err := execute(t, env, nil, "local", "get", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "not found")
}

func TestLocal_RequiresLocalBackend(t *testing.T) {
	env := localEnv(t)
	env[config.EnvBackend] = "aws"

	out, _, err := execute(t, env, nil, "local", "put", "a", "k=v")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `local commands need backend "local"`)
}

func TestParsePairs(t *testing.T) {
	got, err := parsePairs([]string{"a=1", "b=", "c=x=y"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "", "c": "x=y"}, got)

	got, err = parsePairs(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
