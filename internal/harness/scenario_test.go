package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	path := writeScenario(t, `
name: valid
description: "A valid scenario"
prefix: kv
run_id: run-1
source:
  - identifier: a
    start_version: 3
    versions:
      - { k: v }
sink:
  - name: kv/a
    value: "{}"
    version_tag: "2"
faults:
  - op: fetch
    target: a
    error: boom
    until_run: 1
runs:
  - expect: { status: ERROR, failed: [a] }
  - publish:
      - identifier: b
        versions: [{}]
assertions:
  - type: trace_contains
    call: "fetch a"
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "valid", s.Name)
	assert.Equal(t, "kv", s.Prefix)
	assert.Equal(t, "run-1", s.RunID)
	require.Len(t, s.Source, 1)
	assert.Equal(t, 3, s.Source[0].StartVersion)
	assert.Equal(t, map[string]string{"k": "v"}, s.Source[0].Versions[0])
	assert.Equal(t, SinkSeed{Name: "kv/a", Value: "{}", VersionTag: "2"}, s.Sink[0])
	assert.Equal(t, FaultSpec{Op: "fetch", Target: "a", Error: "boom", UntilRun: 1}, s.Faults[0])
	require.Len(t, s.Runs, 2)
	assert.Equal(t, "ERROR", s.Runs[0].Expect.Status)
	assert.Nil(t, s.Runs[0].Expect.Created)
	assert.Equal(t, []string{"a"}, s.Runs[0].Expect.Failed)
	assert.Nil(t, s.Runs[1].Expect)
	assert.Equal(t, "b", s.Runs[1].Publish[0].Identifier)
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "Typo in field name"
prefix: kv
runs: [{}]
assertion:
  - type: trace_contains
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\nprefix: kv\nruns: [{}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\nprefix: kv\nruns: [{}]\n",
			wantErr: "description is required",
		},
		{
			name:    "missing prefix",
			content: "name: n\ndescription: d\nruns: [{}]\n",
			wantErr: "prefix is required",
		},
		{
			name:    "no runs",
			content: "name: n\ndescription: d\nprefix: kv\n",
			wantErr: "runs list is required",
		},
		{
			name:    "source without versions",
			content: "name: n\ndescription: d\nprefix: kv\nsource: [{identifier: a}]\nruns: [{}]\n",
			wantErr: "source[0]: versions list is required",
		},
		{
			name:    "unknown fault op",
			content: "name: n\ndescription: d\nprefix: kv\nfaults: [{op: delete, target: a, error: x}]\nruns: [{}]\n",
			wantErr: `faults[0]: unknown op "delete"`,
		},
		{
			name:    "fault without error",
			content: "name: n\ndescription: d\nprefix: kv\nfaults: [{op: fetch, target: a}]\nruns: [{}]\n",
			wantErr: "faults[0]: error is required",
		},
		{
			name:    "expect without status",
			content: "name: n\ndescription: d\nprefix: kv\nruns: [{expect: {created: 1}}]\n",
			wantErr: "runs[0].expect: status is required",
		},
		{
			name:    "publish without identifier",
			content: "name: n\ndescription: d\nprefix: kv\nruns: [{publish: [{versions: [{}]}]}]\n",
			wantErr: "runs[0].publish[0]: identifier is required",
		},
		{
			name:    "unknown assertion type",
			content: "name: n\ndescription: d\nprefix: kv\nruns: [{}]\nassertions: [{type: final_count}]\n",
			wantErr: `unknown assertion type "final_count"`,
		},
		{
			name:    "trace_contains without call",
			content: "name: n\ndescription: d\nprefix: kv\nruns: [{}]\nassertions: [{type: trace_contains}]\n",
			wantErr: "call is required for trace_contains",
		},
		{
			name:    "trace_count without op",
			content: "name: n\ndescription: d\nprefix: kv\nruns: [{}]\nassertions: [{type: trace_count, count: 1}]\n",
			wantErr: "op is required for trace_count",
		},
		{
			name:    "final_state without expect",
			content: "name: n\ndescription: d\nprefix: kv\nruns: [{}]\nassertions: [{type: final_state, name: kv/a}]\n",
			wantErr: "expect or absent is required",
		},
		{
			name:    "final_state unknown field",
			content: "name: n\ndescription: d\nprefix: kv\nruns: [{}]\nassertions: [{type: final_state, name: kv/a, expect: {tag: x}}]\n",
			wantErr: `unknown final_state field "tag"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenarios_Testdata(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	seen := map[string]bool{}
	for _, s := range scenarios {
		assert.False(t, seen[s.Name], "duplicate scenario name %s", s.Name)
		seen[s.Name] = true
	}
	assert.True(t, seen["example_sync"])
}

func TestFaultSpec_Active(t *testing.T) {
	always := FaultSpec{}
	assert.True(t, always.active(1))
	assert.True(t, always.active(10))

	first := FaultSpec{UntilRun: 1}
	assert.True(t, first.active(1))
	assert.False(t, first.active(2))
}
