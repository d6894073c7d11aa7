package engine

import (
	"context"
	"errors"

	"github.com/roach88/vaultsync/internal/secret"
)

// outcome is the result of one plan entry. Workers return outcomes by value
// and the engine merges them; no worker touches the shared result.
type outcome struct {
	action     secret.Action
	identifier string
	record     secret.SinkRecord
	err        *secret.ItemError
}

func (o outcome) mergeInto(r *secret.Result) {
	if o.err != nil {
		r.Errors = append(r.Errors, *o.err)
		return
	}
	switch o.action {
	case secret.ActionCreate:
		r.Created = append(r.Created, o.record)
	case secret.ActionUpdate:
		r.Updated = append(r.Updated, o.record)
	case secret.ActionSkip:
		r.Skipped = append(r.Skipped, o.identifier)
	}
}

var errNoVersion = errors.New("source returned a value without a version")

// applyEntry runs one CREATE or UPDATE entry.
//
// Ordering within the entry is strict: fetch, value write, tag write. Any
// step failing ends the entry with an error outcome; earlier writes are not
// rolled back.
func (e *Engine) applyEntry(ctx context.Context, prefix string, entry secret.PlanEntry) outcome {
	id := entry.Identifier
	log := e.logger.With("identifier", id, "action", entry.Action)
	fail := func(err *secret.Error) outcome {
		log.Warn("secret not replicated", "error", err)
		return outcome{action: entry.Action, identifier: id, err: itemError(id, err)}
	}

	value, err := e.source.FetchValue(ctx, prefix, id)
	if err != nil {
		return fail(secret.NewSecretReadFailed(id, "fetch", err))
	}
	if value.Version == "" {
		return fail(secret.NewSecretReadFailed(id, "fetch", errNoVersion))
	}
	encoded, err := secret.EncodePayload(value.Payload)
	if err != nil {
		return fail(secret.NewSecretReadFailed(id, "encode", err))
	}

	switch entry.Action {
	case secret.ActionCreate:
		rec, err := e.sink.Create(ctx, entry.Name, encoded, value.Version)
		if err != nil {
			return fail(secret.NewSinkWriteFailed(id, "create", err))
		}
		log.Info("secret created", "name", rec.Name, "version", value.Version)
		return outcome{action: secret.ActionCreate, identifier: id, record: rec}

	case secret.ActionUpdate:
		if err := e.sink.UpdateValue(ctx, entry.Handle, encoded); err != nil {
			return fail(secret.NewSinkWriteFailed(id, "update value", err))
		}
		if err := e.sink.TagVersion(ctx, entry.Handle, value.Version); err != nil {
			return fail(secret.NewSinkWriteFailed(id, "tag version", err))
		}
		log.Info("secret updated", "name", entry.Name, "from", entry.SyncedVersion, "to", value.Version)
		return outcome{
			action:     secret.ActionUpdate,
			identifier: id,
			record: secret.SinkRecord{
				Name:          entry.Name,
				Handle:        entry.Handle,
				SyncedVersion: value.Version,
			},
		}
	}

	return outcome{action: secret.ActionSkip, identifier: id}
}

func itemError(id string, err *secret.Error) *secret.ItemError {
	return &secret.ItemError{Identifier: id, Message: err.Error()}
}
