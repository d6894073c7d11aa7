package harness

import (
	"github.com/roach88/vaultsync/internal/engine"
	"github.com/roach88/vaultsync/internal/secret"
	"github.com/roach88/vaultsync/internal/testutil"
)

// TraceEvent is one backend call made during a scenario.
type TraceEvent struct {
	Run    int    `json:"run"`
	Seq    int    `json:"seq"`
	Op     string `json:"op"`
	Target string `json:"target"`
}

// Call renders the event the way assertions name it: "op target".
func (e TraceEvent) Call() string {
	return e.Op + " " + e.Target
}

// RunOutcome is the summary of one engine run within a scenario.
type RunOutcome struct {
	RunID     string             `json:"run_id"`
	Status    secret.Status      `json:"status"`
	Created   int                `json:"created"`
	Updated   int                `json:"updated"`
	Skipped   int                `json:"skipped"`
	Preflight string             `json:"preflight,omitempty"`
	Errors    []secret.ItemError `json:"errors,omitempty"`
}

func outcomeOf(s *engine.Summary) RunOutcome {
	o := RunOutcome{
		RunID:   s.RunID,
		Status:  s.Status,
		Created: s.CreatedCount,
		Updated: s.UpdatedCount,
		Skipped: s.SkippedCount,
		Errors:  s.Errors,
	}
	if s.PreflightFailed() {
		o.Preflight = s.Message
	}
	return o
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every run expectation and assertion held.
	Pass bool `json:"pass"`

	Runs []RunOutcome `json:"runs"`

	// Trace holds every non-listing backend call across all runs, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Sink is the sink after the last run, for final_state assertions.
	Sink *testutil.MemorySink `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Runs:   []RunOutcome{},
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddCalls appends the calls of run to the trace. Listing calls are dropped
// because the engine issues them concurrently.
func (r *Result) AddCalls(run int, calls []testutil.Call) {
	for _, c := range calls {
		if c.Op == testutil.OpListIdentifiers || c.Op == testutil.OpListByPrefix {
			continue
		}
		r.Trace = append(r.Trace, TraceEvent{
			Run:    run,
			Seq:    len(r.Trace) + 1,
			Op:     c.Op,
			Target: c.Target,
		})
	}
}

// RunTrace returns the calls made during run, as "op target" strings.
func (r *Result) RunTrace(run int) []string {
	calls := []string{}
	for _, e := range r.Trace {
		if e.Run == run {
			calls = append(calls, e.Call())
		}
	}
	return calls
}
