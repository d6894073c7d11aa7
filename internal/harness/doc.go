// Package harness runs reconciliation scenarios against the engine with
// in-memory backends.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: example_sync
//	description: "What this scenario validates"
//	prefix: kv
//	source:
//	  - identifier: db-pass
//	    versions:
//	      - { password: one }
//	      - { password: two }
//	sink:
//	  - name: kv/db-pass
//	    value: '{"password":"one"}'
//	    version_tag: "1"
//	faults:
//	  - op: fetch
//	    target: db-pass
//	    error: "vault sealed"
//	    until_run: 1
//	runs:
//	  - expect: { status: OK, created: 0, updated: 1 }
//	assertions:
//	  - type: trace_order
//	    calls: ["update_value kv/db-pass", "tag_version kv/db-pass"]
//	  - type: final_state
//	    name: kv/db-pass
//	    expect: { version_tag: "2" }
//
// # Assertion Types
//
//   - trace_contains: a call ("op target") appears in the trace
//   - trace_order: calls appear in the given order
//   - trace_count: an operation, optionally on one target, appears N times
//   - final_state: a sink entry has the expected fields, or is absent
//
// # Deterministic Testing
//
// Every scenario runs on a fresh MemorySource and MemorySink sharing one
// Recorder, with a fixed run ID and a concurrency of one unless the scenario
// says otherwise. The two listing calls of each run execute concurrently and
// are left out of the trace; every other call happens in plan order, so
// traces are stable enough for golden file comparison.
package harness
