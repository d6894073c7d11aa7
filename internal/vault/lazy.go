package vault

import (
	"context"
	"sync"

	"github.com/roach88/vaultsync/internal/secret"
)

// Reader is the read surface of a connected source.
type Reader interface {
	ListIdentifiers(ctx context.Context, prefix string) ([]string, error)
	Version(ctx context.Context, prefix, identifier string) (string, error)
	FetchValue(ctx context.Context, prefix, identifier string) (secret.SourceValue, error)
}

// CredentialFunc fetches the raw credential document.
type CredentialFunc func(ctx context.Context) (string, error)

// Connector opens a Reader for a parsed credential.
type Connector func(cred Credential) (Reader, error)

// Connect is the default Connector. It opens a Vault client.
func Connect(cred Credential) (Reader, error) {
	return New(cred)
}

// Lazy is a source that resolves its credential on first use. A failed
// resolution is not cached, so the next call tries again.
type Lazy struct {
	resolve CredentialFunc
	connect Connector

	mu     sync.Mutex
	reader Reader
}

// NewLazy returns a source that fetches its credential with resolve and
// opens it with connect. A nil connect uses Connect.
func NewLazy(resolve CredentialFunc, connect Connector) *Lazy {
	if connect == nil {
		connect = Connect
	}
	return &Lazy{resolve: resolve, connect: connect}
}

func (l *Lazy) ensure(ctx context.Context) (Reader, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reader != nil {
		return l.reader, nil
	}

	raw, err := l.resolve(ctx)
	if err != nil {
		return nil, err
	}
	cred, err := ParseCredential(raw)
	if err != nil {
		return nil, err
	}
	r, err := l.connect(cred)
	if err != nil {
		return nil, err
	}
	l.reader = r
	return r, nil
}

// ListIdentifiers connects if needed and lists the mount.
func (l *Lazy) ListIdentifiers(ctx context.Context, prefix string) ([]string, error) {
	r, err := l.ensure(ctx)
	if err != nil {
		return nil, err
	}
	return r.ListIdentifiers(ctx, prefix)
}

// Version connects if needed and reads the current version.
func (l *Lazy) Version(ctx context.Context, prefix, identifier string) (string, error) {
	r, err := l.ensure(ctx)
	if err != nil {
		return "", err
	}
	return r.Version(ctx, prefix, identifier)
}

// FetchValue connects if needed and reads the latest value.
func (l *Lazy) FetchValue(ctx context.Context, prefix, identifier string) (secret.SourceValue, error) {
	r, err := l.ensure(ctx)
	if err != nil {
		return secret.SourceValue{}, err
	}
	return r.FetchValue(ctx, prefix, identifier)
}
