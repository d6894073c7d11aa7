package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vaultsync/internal/secret"
	"github.com/roach88/vaultsync/internal/testutil"
)

func TestReconcile_ExampleScenario(t *testing.T) {
	f := newFixture(t)
	f.src.Put("kv", "db-pass", map[string]string{"password": "old"})
	f.src.Put("kv", "db-pass", map[string]string{"password": "new"})
	f.src.Put("kv", "api-key", map[string]string{"key": "abc"})
	f.snk.Seed("kv/db-pass", `{"password":"old"}`, "1")

	plan := f.plan(t, "kv")

	require.Len(t, plan.Entries, 2)
	assert.Empty(t, plan.Failed)
	assert.Equal(t, map[string]secret.Action{
		"api-key": secret.ActionCreate,
		"db-pass": secret.ActionUpdate,
	}, actions(plan))

	// Source order is preserved (memory source lists in byte order)
	assert.Equal(t, "api-key", plan.Entries[0].Identifier)
	assert.Equal(t, "db-pass", plan.Entries[1].Identifier)

	upd := plan.Entries[1]
	assert.Equal(t, "kv/db-pass", upd.Name)
	assert.Equal(t, testutil.HandleFor("kv/db-pass"), upd.Handle)
	assert.Equal(t, "2", upd.SourceVersion)
	assert.Equal(t, "1", upd.SyncedVersion)
}

func TestReconcile_SkipWhenVersionsMatch(t *testing.T) {
	f := newFixture(t)
	f.src.Put("kv", "a", map[string]string{"k": "v"})
	f.snk.Seed("kv/a", `{"k":"v"}`, "1")

	plan := f.plan(t, "kv")

	require.Len(t, plan.Entries, 1)
	assert.Equal(t, secret.ActionSkip, plan.Entries[0].Action)
}

func TestReconcile_CreateDoesNotReadMetadata(t *testing.T) {
	f := newFixture(t)
	f.src.Put("kv", "a", nil)
	f.src.Put("kv", "b", nil)

	plan := f.plan(t, "kv")

	assert.Equal(t, 2, plan.Count(secret.ActionCreate))
	assert.Equal(t, 0, f.src.Recorder.Count(testutil.OpVersion))
	assert.Equal(t, 0, f.src.Recorder.Count(testutil.OpFetch))
}

func TestReconcile_StringComparison(t *testing.T) {
	// "10" vs "9" only needs inequality, which string comparison gives
	f := newFixture(t)
	f.src.PutAt("kv", "a", 10, map[string]string{"k": "v"})
	f.snk.Seed("kv/a", "{}", "9")

	plan := f.plan(t, "kv")
	assert.Equal(t, secret.ActionUpdate, plan.Entries[0].Action)
}

func TestReconcile_NumericLookalikeTagIsUpdate(t *testing.T) {
	// "01" and "1" are different strings: the tag is rewritten to "1"
	f := newFixture(t)
	f.src.Put("kv", "a", nil)
	f.snk.Seed("kv/a", "{}", "01")

	plan := f.plan(t, "kv")
	assert.Equal(t, secret.ActionUpdate, plan.Entries[0].Action)
}

func TestReconcile_MissingTagIsUpdate(t *testing.T) {
	f := newFixture(t)
	f.src.Put("kv", "a", nil)
	f.snk.Seed("kv/a", "{}", "")

	plan := f.plan(t, "kv")
	assert.Equal(t, secret.ActionUpdate, plan.Entries[0].Action)
}

func TestReconcile_SinkOnlyEntriesGetNoAction(t *testing.T) {
	f := newFixture(t)
	f.src.Put("kv", "a", nil)
	f.snk.Seed("kv/orphan", "{}", "7")

	plan := f.plan(t, "kv")

	require.Len(t, plan.Entries, 1)
	assert.Equal(t, "a", plan.Entries[0].Identifier)
	_, planned := actions(plan)["orphan"]
	assert.False(t, planned)
}

func TestReconcile_MetadataFailureIsPerIdentifier(t *testing.T) {
	f := newFixture(t)
	f.src.Put("kv", "a", nil)
	f.src.Put("kv", "b", nil)
	f.snk.Seed("kv/a", "{}", "0")
	f.snk.Seed("kv/b", "{}", "0")
	f.src.Faults.Fail(testutil.OpVersion, "a", errors.New("permission denied"))

	plan := f.plan(t, "kv")

	require.Len(t, plan.Failed, 1)
	assert.Equal(t, "a", plan.Failed[0].Identifier)
	assert.Contains(t, plan.Failed[0].Message, "SECRET_READ_FAILED")
	assert.Contains(t, plan.Failed[0].Message, "permission denied")
	require.Len(t, plan.Entries, 1)
	assert.Equal(t, "b", plan.Entries[0].Identifier)
}

func TestReconcile_DropsDuplicatesAndDirectories(t *testing.T) {
	f := newFixture(t)
	plan := f.eng.Reconcile(context.Background(), "kv",
		[]string{"a", "nested/", "a", "", "b"}, nil)

	require.Len(t, plan.Entries, 2)
	assert.Equal(t, "a", plan.Entries[0].Identifier)
	assert.Equal(t, "b", plan.Entries[1].Identifier)
}

func TestReconcile_LookalikeIdentifiersKeepSeparateNames(t *testing.T) {
	var logs bytes.Buffer
	f := newFixture(t, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	composed, decomposed := "caf\u00e9", "cafe\u0301"
	f.src.Put("kv", composed, map[string]string{"k": "v"})
	rec := f.snk.Seed(secret.SinkName("kv", composed), `{"k":"v"}`, "1")

	plan := f.eng.Reconcile(context.Background(), "kv", []string{composed, decomposed}, []secret.SinkRecord{rec})

	require.Len(t, plan.Entries, 2)
	assert.Equal(t, "kv/"+composed, plan.Entries[0].Name)
	assert.Equal(t, secret.ActionSkip, plan.Entries[0].Action)
	assert.Equal(t, "kv/"+decomposed, plan.Entries[1].Name)
	assert.Equal(t, secret.ActionCreate, plan.Entries[1].Action)
	assert.Contains(t, logs.String(), "identifiers differ only in Unicode composition")
}

func TestReconcile_OrderStableUnderConcurrency(t *testing.T) {
	f := newFixture(t, WithConcurrency(8))
	ids := []string{"s01", "s02", "s03", "s04", "s05", "s06", "s07", "s08", "s09", "s10"}
	for _, id := range ids {
		f.src.Put("kv", id, nil)
		f.snk.Seed("kv/"+id, "{}", "0")
	}

	plan := f.plan(t, "kv")

	require.Len(t, plan.Entries, len(ids))
	for i, id := range ids {
		assert.Equal(t, id, plan.Entries[i].Identifier)
		assert.Equal(t, secret.ActionUpdate, plan.Entries[i].Action)
	}
}

func TestSnapshot_SourceUnavailable(t *testing.T) {
	f := newFixture(t)
	f.src.Faults.Fail(testutil.OpListIdentifiers, "kv", errors.New("connection refused"))

	_, _, err := f.eng.Snapshot(context.Background(), "kv")

	require.Error(t, err)
	assert.True(t, secret.IsSourceUnavailable(err))
}

func TestSnapshot_SinkUnavailable(t *testing.T) {
	f := newFixture(t)
	f.snk.Faults.Fail(testutil.OpListByPrefix, "kv", errors.New("access denied"))

	_, _, err := f.eng.Snapshot(context.Background(), "kv")

	require.Error(t, err)
	assert.True(t, secret.IsSinkUnavailable(err))
}

func TestWithConcurrency_ClampsToOne(t *testing.T) {
	e := New(nil, nil, WithConcurrency(0))
	assert.Equal(t, 1, e.concurrency)

	e = New(nil, nil)
	assert.Equal(t, DefaultConcurrency, e.concurrency)
}

func TestPlan_WritesNothing(t *testing.T) {
	f := newFixture(t)
	f.src.Put("kv", "a", nil)
	f.src.Put("kv", "b", nil)
	f.snk.Seed("kv/b", "{}", "0")
	f.snk.Recorder.Reset()

	plan, err := f.eng.Plan(context.Background(), "kv")

	require.NoError(t, err)
	assert.Equal(t, 1, plan.Count(secret.ActionCreate))
	assert.Equal(t, 1, plan.Count(secret.ActionUpdate))
	assert.Equal(t, []testutil.Call{{Op: testutil.OpListByPrefix, Target: "kv"}}, f.snk.Recorder.Calls())
	assert.Equal(t, 0, f.src.Recorder.Count(testutil.OpFetch))
}

func TestPlan_PreflightFailure(t *testing.T) {
	f := newFixture(t)
	f.src.Faults.Fail(testutil.OpListIdentifiers, "kv", errors.New("sealed"))

	plan, err := f.eng.Plan(context.Background(), "kv")

	assert.Nil(t, plan)
	assert.True(t, secret.IsSourceUnavailable(err))
}
