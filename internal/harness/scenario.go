package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/vaultsync/internal/testutil"
)

// Scenario defines a reconciliation scenario: initial source and sink
// contents, injected faults, a sequence of runs and the assertions that must
// hold afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Prefix is the secrets prefix every run reconciles.
	Prefix string `yaml:"prefix"`

	// RunID is the fixed run ID of every run.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// Concurrency is the engine concurrency. Defaults to 1, the only value
	// that gives a stable trace.
	Concurrency int `yaml:"concurrency,omitempty"`

	// Source holds the secrets published before the first run.
	Source []SourceSecret `yaml:"source,omitempty"`

	// Sink holds the entries present before the first run.
	Sink []SinkSeed `yaml:"sink,omitempty"`

	// Faults are injected backend failures.
	Faults []FaultSpec `yaml:"faults,omitempty"`

	// Runs are executed in order.
	Runs []RunStep `yaml:"runs"`

	// Assertions validate the trace and the final sink.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SourceSecret publishes one or more versions of an identifier.
type SourceSecret struct {
	Identifier string `yaml:"identifier"`

	// StartVersion is the version number of the first payload. Later
	// payloads follow it. Defaults to the next version of the identifier.
	StartVersion int `yaml:"start_version,omitempty"`

	Versions []map[string]string `yaml:"versions"`
}

// SinkSeed is a sink entry present before the first run.
type SinkSeed struct {
	Name       string `yaml:"name"`
	Value      string `yaml:"value"`
	VersionTag string `yaml:"version_tag"`
}

// FaultSpec makes one backend operation fail for one target.
type FaultSpec struct {
	Op     string `yaml:"op"`
	Target string `yaml:"target"`
	Error  string `yaml:"error"`

	// UntilRun is the last run the fault is active in. Zero means every run.
	UntilRun int `yaml:"until_run,omitempty"`
}

// active reports whether the fault applies to the 1-based run.
func (f FaultSpec) active(run int) bool {
	return f.UntilRun == 0 || run <= f.UntilRun
}

// RunStep is one engine run.
type RunStep struct {
	// Publish adds source versions before this run.
	Publish []SourceSecret `yaml:"publish,omitempty"`

	// Expect is checked against the run summary. If nil, the run is not
	// validated.
	Expect *RunExpect `yaml:"expect,omitempty"`
}

// RunExpect is the expected summary of a run. Nil counts are not checked.
type RunExpect struct {
	Status  string `yaml:"status"`
	Created *int   `yaml:"created,omitempty"`
	Updated *int   `yaml:"updated,omitempty"`
	Skipped *int   `yaml:"skipped,omitempty"`

	// Failed lists the identifiers expected in the run's errors, in order.
	Failed []string `yaml:"failed,omitempty"`
}

// Assertion validates the trace or the final sink.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Call appears in the trace
	// - "trace_order": Calls appear in order
	// - "trace_count": Op (on Target, if set) appears exactly Count times
	// - "final_state": sink entry Name matches Expect, or is Absent
	Type string `yaml:"type"`

	Call  string   `yaml:"call,omitempty"`
	Calls []string `yaml:"calls,omitempty"`

	Op     string `yaml:"op,omitempty"`
	Target string `yaml:"target,omitempty"`
	Count  int    `yaml:"count,omitempty"`

	Name string `yaml:"name,omitempty"`
	// Expect holds expected entry fields: value, version_tag, handle.
	Expect map[string]string `yaml:"expect,omitempty"`
	Absent bool              `yaml:"absent,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

var sourceOps = map[string]bool{
	testutil.OpListIdentifiers: true,
	testutil.OpVersion:         true,
	testutil.OpFetch:           true,
}

var sinkOps = map[string]bool{
	testutil.OpListByPrefix: true,
	testutil.OpCreate:       true,
	testutil.OpUpdateValue:  true,
	testutil.OpTagVersion:   true,
}

var finalStateFields = map[string]bool{
	"value":       true,
	"version_tag": true,
	"handle":      true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Prefix == "" {
		return fmt.Errorf("prefix is required")
	}
	if s.Concurrency < 0 {
		return fmt.Errorf("concurrency must be non-negative")
	}
	if len(s.Runs) == 0 {
		return fmt.Errorf("runs list is required and must be non-empty")
	}

	for i, src := range s.Source {
		if err := validateSourceSecret(fmt.Sprintf("source[%d]", i), src); err != nil {
			return err
		}
	}
	for i, seed := range s.Sink {
		if seed.Name == "" {
			return fmt.Errorf("sink[%d]: name is required", i)
		}
	}
	for i, f := range s.Faults {
		if !sourceOps[f.Op] && !sinkOps[f.Op] {
			return fmt.Errorf("faults[%d]: unknown op %q", i, f.Op)
		}
		if f.Target == "" {
			return fmt.Errorf("faults[%d]: target is required", i)
		}
		if f.Error == "" {
			return fmt.Errorf("faults[%d]: error is required", i)
		}
		if f.UntilRun < 0 {
			return fmt.Errorf("faults[%d]: until_run must be non-negative", i)
		}
	}
	for i, run := range s.Runs {
		for j, src := range run.Publish {
			if err := validateSourceSecret(fmt.Sprintf("runs[%d].publish[%d]", i, j), src); err != nil {
				return err
			}
		}
		if run.Expect != nil && run.Expect.Status == "" {
			return fmt.Errorf("runs[%d].expect: status is required", i)
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateSourceSecret(where string, src SourceSecret) error {
	if src.Identifier == "" {
		return fmt.Errorf("%s: identifier is required", where)
	}
	if len(src.Versions) == 0 {
		return fmt.Errorf("%s: versions list is required and must be non-empty", where)
	}
	if src.StartVersion < 0 {
		return fmt.Errorf("%s: start_version must be positive", where)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Calls) == 0 {
			return fmt.Errorf("assertions[%d]: calls list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for final_state", index)
		}
		if a.Absent && len(a.Expect) > 0 {
			return fmt.Errorf("assertions[%d]: final_state cannot combine absent and expect", index)
		}
		if !a.Absent && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect or absent is required for final_state", index)
		}
		for field := range a.Expect {
			if !finalStateFields[field] {
				return fmt.Errorf("assertions[%d]: unknown final_state field %q", index, field)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
