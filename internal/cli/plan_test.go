package cli

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vaultsync/internal/secret"
	"github.com/roach88/vaultsync/internal/store"
)

func TestPlan_Text(t *testing.T) {
	env := localEnv(t)
	seedExample(t, env)

	out, _, err := execute(t, env, nil, "plan")
	require.NoError(t, err)
	newGoldie(t).Assert(t, "plan", []byte(out))

	// Planning never writes
	seedStore(t, env, func(ctx context.Context, s *store.Store) {
		_, err := s.Entry(ctx, "kv/api-key")
		assert.True(t, errors.Is(err, store.ErrNotFound))
		e, err := s.Entry(ctx, "kv/db-pass")
		require.NoError(t, err)
		assert.Equal(t, "1", e.VersionTag)
	})
}

func TestPlan_JSON(t *testing.T) {
	env := localEnv(t)
	seedExample(t, env)

	out, _, err := execute(t, env, nil, "plan", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   secret.Plan `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "kv", resp.Data.Prefix)
	require.Len(t, resp.Data.Entries, 3)
	assert.Equal(t, secret.ActionCreate, resp.Data.Entries[0].Action)
	assert.Equal(t, secret.ActionUpdate, resp.Data.Entries[1].Action)
	assert.Equal(t, "2", resp.Data.Entries[1].SourceVersion)
	assert.Equal(t, secret.ActionSkip, resp.Data.Entries[2].Action)
}

func TestPlan_EmptyPrefix(t *testing.T) {
	env := localEnv(t)

	out, _, err := execute(t, env, nil, "plan")
	require.NoError(t, err)
	assert.Equal(t, "Plan for \"kv\": 0 to create, 0 to update, 0 unchanged, 0 failed\n", out)
}
