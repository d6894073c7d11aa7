package engine

import (
	"context"

	"github.com/roach88/vaultsync/internal/secret"
)

// SourceCatalog enumerates the source vault.
type SourceCatalog interface {
	ListIdentifiers(ctx context.Context, prefix string) ([]string, error)
	Version(ctx context.Context, prefix, identifier string) (string, error)
}

// SecretFetcher reads one secret's full value from the source vault.
type SecretFetcher interface {
	FetchValue(ctx context.Context, prefix, identifier string) (secret.SourceValue, error)
}

// Source is a complete source vault backend.
type Source interface {
	SourceCatalog
	SecretFetcher
}

// SinkCatalog enumerates the sink registry.
type SinkCatalog interface {
	ListByPrefix(ctx context.Context, prefix string) ([]secret.SinkRecord, error)
}

// SinkWriter mutates the sink registry.
type SinkWriter interface {
	Create(ctx context.Context, name, value, versionTag string) (secret.SinkRecord, error)
	UpdateValue(ctx context.Context, handle, value string) error
	TagVersion(ctx context.Context, handle, versionTag string) error
}

// Sink is a complete sink registry backend.
type Sink interface {
	SinkCatalog
	SinkWriter
}

// Notifier delivers the error list of a failed run.
type Notifier interface {
	Notify(ctx context.Context, prefix string, errs []secret.ItemError) error
}
