package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/vaultsync/internal/secret"
)

// DefaultConcurrency is the default number of identifiers processed at once.
const DefaultConcurrency = 4

// Engine reconciles one prefix of a source vault into a sink registry.
//
// Thread-safety model:
//   - Reconcile, Apply and Run may be called from any goroutine
//   - An Engine holds no per-run state; concurrent runs share only backends
type Engine struct {
	source   Source
	sink     Sink
	notifier Notifier
	runIDs   RunIDGenerator
	logger   *slog.Logger

	concurrency int
}

// Option configures an Engine.
type Option func(*Engine)

// WithConcurrency bounds the number of identifiers processed in parallel.
// Values below 1 are treated as 1.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.concurrency = n
	}
}

// WithNotifier sets the failure notifier. Without one, failed runs are only
// logged and reported.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithRunIDGenerator overrides the UUIDv7 run ID generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine reading from source and writing to sink.
func New(source Source, sink Sink, opts ...Option) *Engine {
	e := &Engine{
		source:      source,
		sink:        sink,
		runIDs:      UUIDv7Generator{},
		logger:      slog.Default(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Snapshot lists the source identifiers and sink records under prefix.
//
// Both listings run concurrently. A failure of either is run-fatal and is
// returned as SOURCE_UNAVAILABLE or SINK_UNAVAILABLE.
func (e *Engine) Snapshot(ctx context.Context, prefix string) ([]string, []secret.SinkRecord, error) {
	var (
		ids     []string
		records []secret.SinkRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ids, err = e.source.ListIdentifiers(gctx, prefix)
		if err != nil {
			return secret.NewSourceUnavailable(err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		records, err = e.sink.ListByPrefix(gctx, prefix)
		if err != nil {
			return secret.NewSinkUnavailable(err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return ids, records, nil
}

// Reconcile builds the plan for prefix from a source listing and a sink
// snapshot.
//
// Identifiers keep their source order; duplicates and directory entries
// (ending in "/") are dropped. Sink records with no source identifier get no
// entry. Identifiers whose metadata read fails land in Plan.Failed.
func (e *Engine) Reconcile(ctx context.Context, prefix string, sourceIDs []string, sinkRecords []secret.SinkRecord) *secret.Plan {
	bySinkName := make(map[string]secret.SinkRecord, len(sinkRecords))
	for _, rec := range sinkRecords {
		bySinkName[rec.Name] = rec
	}

	ids := normalizeIdentifiers(sourceIDs)
	e.warnLookalikes(prefix, ids)
	entries := make([]secret.PlanEntry, len(ids))
	failures := make([]*secret.ItemError, len(ids))

	g := e.pool()
	for i, id := range ids {
		name := secret.SinkName(prefix, id)
		rec, exists := bySinkName[name]
		if !exists {
			entries[i] = secret.PlanEntry{Identifier: id, Name: name, Action: secret.ActionCreate}
			continue
		}

		i, id := i, id
		g.Go(func() error {
			version, err := e.source.Version(ctx, prefix, id)
			if err != nil {
				failures[i] = itemError(id, secret.NewSecretReadFailed(id, "read metadata", err))
				return nil
			}
			action := secret.ActionSkip
			if version != rec.SyncedVersion {
				action = secret.ActionUpdate
			}
			entries[i] = secret.PlanEntry{
				Identifier:    id,
				Name:          name,
				Action:        action,
				Handle:        rec.Handle,
				SourceVersion: version,
				SyncedVersion: rec.SyncedVersion,
			}
			return nil
		})
	}
	_ = g.Wait()

	plan := &secret.Plan{Prefix: prefix}
	for i := range ids {
		if failures[i] != nil {
			plan.Failed = append(plan.Failed, *failures[i])
			continue
		}
		plan.Entries = append(plan.Entries, entries[i])
	}
	return plan
}

// Plan takes a snapshot of prefix and reconciles it without writing.
// The error is a pre-flight listing failure.
func (e *Engine) Plan(ctx context.Context, prefix string) (*secret.Plan, error) {
	ids, records, err := e.Snapshot(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return e.Reconcile(ctx, prefix, ids, records), nil
}

// Apply executes plan against the sink and returns the merged outcomes.
//
// Entries are independent: a failure is recorded for its identifier and the
// remaining entries still run. Apply never returns an error.
func (e *Engine) Apply(ctx context.Context, plan *secret.Plan) *secret.Result {
	outcomes := make([]outcome, len(plan.Entries))

	g := e.pool()
	for i, entry := range plan.Entries {
		if entry.Action == secret.ActionSkip {
			outcomes[i] = outcome{action: secret.ActionSkip, identifier: entry.Identifier}
			continue
		}
		i, entry := i, entry
		g.Go(func() error {
			outcomes[i] = e.applyEntry(ctx, plan.Prefix, entry)
			return nil
		})
	}
	_ = g.Wait()

	result := &secret.Result{
		Created: []secret.SinkRecord{},
		Updated: []secret.SinkRecord{},
		Errors:  append([]secret.ItemError{}, plan.Failed...),
	}
	for _, o := range outcomes {
		o.mergeInto(result)
	}
	return result
}

// Run performs one complete invocation: snapshot, reconcile, apply, notify.
//
// Run always returns a Summary. Pre-flight failures produce an ERROR summary
// with Err set and no counts.
func (e *Engine) Run(ctx context.Context, prefix string) *Summary {
	runID := e.runIDs.Generate()
	log := e.logger.With("run_id", runID, "prefix", prefix)
	log.Info("reconciliation starting")

	ids, records, err := e.Snapshot(ctx, prefix)
	if err != nil {
		log.Error("pre-flight listing failed", "error", err)
		return &Summary{
			RunID:   runID,
			Status:  secret.StatusError,
			Message: rawMessage(err),
			Err:     err,
		}
	}
	log.Debug("snapshot taken", "source_identifiers", len(ids), "sink_records", len(records))

	plan := e.Reconcile(ctx, prefix, ids, records)
	log.Info("plan built",
		"create", plan.Count(secret.ActionCreate),
		"update", plan.Count(secret.ActionUpdate),
		"skip", plan.Count(secret.ActionSkip),
		"failed", len(plan.Failed),
	)

	result := e.Apply(ctx, plan)
	summary := &Summary{
		RunID:        runID,
		Status:       result.Status(),
		CreatedCount: len(result.Created),
		UpdatedCount: len(result.Updated),
		SkippedCount: len(result.Skipped),
		Errors:       result.Errors,
		Result:       result,
	}

	if len(result.Errors) > 0 {
		msg, err := json.Marshal(result.Errors)
		if err != nil {
			msg = []byte(fmt.Sprintf("%d secrets failed", len(result.Errors)))
		}
		summary.Message = string(msg)
		log.Error("reconciliation finished with errors",
			"created", summary.CreatedCount,
			"updated", summary.UpdatedCount,
			"errors", len(result.Errors),
		)
		if e.notifier != nil {
			if err := e.notifier.Notify(ctx, prefix, result.Errors); err != nil {
				log.Error("failure notification not delivered", "error", err)
				summary.NotificationError = err.Error()
			}
		}
		return summary
	}

	log.Info("reconciliation finished",
		"created", summary.CreatedCount,
		"updated", summary.UpdatedCount,
		"skipped", summary.SkippedCount,
	)
	return summary
}

// pool returns an errgroup bounded to the engine's concurrency. With a limit
// of one, Go blocks until the previous task finishes, so tasks run in
// submission order.
func (e *Engine) pool() *errgroup.Group {
	g := &errgroup.Group{}
	g.SetLimit(e.concurrency)
	return g
}

func normalizeIdentifiers(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || strings.HasSuffix(id, "/") || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// warnLookalikes logs identifiers that differ only in Unicode composition.
// Each still gets its own sink entry.
func (e *Engine) warnLookalikes(prefix string, ids []string) {
	groups := make(map[string][]string)
	var keys []string
	for _, id := range ids {
		k := secret.LookalikeKey(id)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], id)
	}
	for _, k := range keys {
		if len(groups[k]) > 1 {
			e.logger.Warn("identifiers differ only in Unicode composition",
				"prefix", prefix, "identifiers", groups[k])
		}
	}
}

// rawMessage returns the message of the underlying cause of a classified
// error.
func rawMessage(err error) string {
	var se *secret.Error
	if errors.As(err, &se) && se.Err != nil {
		return se.Err.Error()
	}
	return err.Error()
}
