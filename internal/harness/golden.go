package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot captures the run outcomes and calls of a scenario execution.
type TraceSnapshot struct {
	ScenarioName string        `json:"scenario_name"`
	Runs         []RunSnapshot `json:"runs"`
}

// RunSnapshot is one run of a TraceSnapshot.
type RunSnapshot struct {
	RunOutcome
	Calls []string `json:"calls"`
}

// NewTraceSnapshot builds the snapshot of result.
func NewTraceSnapshot(scenarioName string, result *Result) TraceSnapshot {
	s := TraceSnapshot{ScenarioName: scenarioName, Runs: make([]RunSnapshot, len(result.Runs))}
	for i, o := range result.Runs {
		s.Runs[i] = RunSnapshot{RunOutcome: o, Calls: result.RunTrace(i + 1)}
	}
	return s
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
func (s TraceSnapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass, or an error if the
// scenario is invalid.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewTraceSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
