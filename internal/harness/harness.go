package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/vaultsync/internal/engine"
	"github.com/roach88/vaultsync/internal/testutil"
)

// Harness holds the backends and engine of one scenario execution.
type Harness struct {
	source   *testutil.MemorySource
	sink     *testutil.MemorySink
	recorder *testutil.Recorder
	engine   *engine.Engine
	scenario *Scenario
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against fresh in-memory backends. The returned error
// covers invalid scenarios only; failed expectations and assertions are
// reported in Result.Errors.
//
// Execution flow:
//  1. Seed source and sink
//  2. For each run: publish, arm faults, run the engine, check expect
//  3. Evaluate assertions against the trace and the final sink
func Run(scenario *Scenario) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	h := newHarness(scenario)
	for _, src := range scenario.Source {
		h.publish(src)
	}
	for _, seed := range scenario.Sink {
		h.sink.Seed(seed.Name, seed.Value, seed.VersionTag)
	}

	ctx := context.Background()
	result := NewResult()
	result.Sink = h.sink

	for i, step := range scenario.Runs {
		run := i + 1
		for _, src := range step.Publish {
			h.publish(src)
		}
		h.armFaults(run)
		h.recorder.Reset()

		outcome := outcomeOf(h.engine.Run(ctx, scenario.Prefix))
		result.Runs = append(result.Runs, outcome)
		result.AddCalls(run, h.recorder.Calls())

		if step.Expect != nil {
			for _, msg := range checkExpect(run, step.Expect, outcome) {
				result.AddError(msg)
			}
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(scenario *Scenario) *Harness {
	src := testutil.NewMemorySource()
	snk := testutil.NewMemorySink()

	// One recorder keeps source and sink calls in a single order
	rec := testutil.NewRecorder()
	src.Recorder = rec
	snk.Recorder = rec

	concurrency := scenario.Concurrency
	if concurrency == 0 {
		concurrency = 1
	}
	eng := engine.New(src, snk,
		engine.WithConcurrency(concurrency),
		engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(scenario.RunID)),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in tests
	)

	return &Harness{
		source:   src,
		sink:     snk,
		recorder: rec,
		engine:   eng,
		scenario: scenario,
	}
}

func (h *Harness) publish(src SourceSecret) {
	for i, payload := range src.Versions {
		if i == 0 && src.StartVersion > 0 {
			h.source.PutAt(h.scenario.Prefix, src.Identifier, src.StartVersion, payload)
			continue
		}
		h.source.Put(h.scenario.Prefix, src.Identifier, payload)
	}
}

// armFaults installs the faults active in run and clears the rest.
func (h *Harness) armFaults(run int) {
	h.source.Faults.Clear()
	h.sink.Faults.Clear()
	for _, f := range h.scenario.Faults {
		if !f.active(run) {
			continue
		}
		if sourceOps[f.Op] {
			h.source.Faults.Fail(f.Op, f.Target, errors.New(f.Error))
		} else {
			h.sink.Faults.Fail(f.Op, f.Target, errors.New(f.Error))
		}
	}
}

// checkExpect compares a run outcome with its expectation.
func checkExpect(run int, want *RunExpect, got RunOutcome) []string {
	var errs []string
	if want.Status != string(got.Status) {
		errs = append(errs, fmt.Sprintf("run %d: expected status %s, got %s", run, want.Status, got.Status))
	}
	counts := []struct {
		name string
		want *int
		got  int
	}{
		{"created", want.Created, got.Created},
		{"updated", want.Updated, got.Updated},
		{"skipped", want.Skipped, got.Skipped},
	}
	for _, c := range counts {
		if c.want != nil && *c.want != c.got {
			errs = append(errs, fmt.Sprintf("run %d: expected %s %d, got %d", run, c.name, *c.want, c.got))
		}
	}

	failed := make([]string, 0, len(got.Errors))
	for _, e := range got.Errors {
		failed = append(failed, e.Identifier)
	}
	if want.Failed != nil && !slices.Equal(want.Failed, failed) {
		errs = append(errs, fmt.Sprintf("run %d: expected failed %v, got %v", run, want.Failed, failed))
	}
	return errs
}
