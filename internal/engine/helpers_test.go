package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/roach88/vaultsync/internal/secret"
	"github.com/roach88/vaultsync/internal/testutil"
)

type fixture struct {
	src *testutil.MemorySource
	snk *testutil.MemorySink
	eng *Engine
}

// newFixture creates an engine over fresh memory backends with logging
// suppressed.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	src := testutil.NewMemorySource()
	snk := testutil.NewMemorySink()
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRunIDGenerator(testutil.NewFixedRunIDGenerator("run-test")),
	}
	return &fixture{
		src: src,
		snk: snk,
		eng: New(src, snk, append(base, opts...)...),
	}
}

// plan snapshots both backends and reconciles prefix.
func (f *fixture) plan(t *testing.T, prefix string) *secret.Plan {
	t.Helper()
	ids, recs, err := f.eng.Snapshot(context.Background(), prefix)
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	return f.eng.Reconcile(context.Background(), prefix, ids, recs)
}

func actions(p *secret.Plan) map[string]secret.Action {
	out := make(map[string]secret.Action, len(p.Entries))
	for _, e := range p.Entries {
		out[e.Identifier] = e.Action
	}
	return out
}

func names(recs []secret.SinkRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Name)
	}
	return out
}

func errorIDs(errs []secret.ItemError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Identifier)
	}
	return out
}

func encoded(t *testing.T, payload map[string]string) string {
	t.Helper()
	v, err := secret.EncodePayload(payload)
	if err != nil {
		t.Fatalf("EncodePayload() failed: %v", err)
	}
	return v
}

type recordingNotifier struct {
	calls  int
	prefix string
	errs   []secret.ItemError
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, prefix string, errs []secret.ItemError) error {
	n.calls++
	n.prefix = prefix
	n.errs = errs
	return n.err
}
