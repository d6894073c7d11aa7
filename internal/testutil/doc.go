// Package testutil provides deterministic in-memory backends for engine,
// harness and CLI tests.
//
// MemorySource and MemorySink implement the engine's Source and Sink ports.
// Both record every call in a shared Recorder and consult a Faults table
// before doing any work, so tests can fail a single operation for a single
// secret and assert that nothing else was affected.
package testutil
