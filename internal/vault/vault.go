// Package vault reads secrets from a HashiCorp Vault KV version 2 mount.
//
// The secrets prefix is the mount path. Listing reads "<prefix>/metadata",
// version metadata is "<prefix>/metadata/<id>" and values are
// "<prefix>/data/<id>".
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/vault/api"

	"github.com/roach88/vaultsync/internal/secret"
)

// logical is the subset of *api.Logical the source uses.
type logical interface {
	ListWithContext(ctx context.Context, path string) (*api.Secret, error)
	ReadWithContext(ctx context.Context, path string) (*api.Secret, error)
}

// Credential is the connection credential stored in the sink registry.
type Credential struct {
	Address string `json:"vaultAddress"`
	Token   string `json:"vaultToken"`
}

// ParseCredential decodes a credential document.
func ParseCredential(raw string) (Credential, error) {
	var c Credential
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Credential{}, fmt.Errorf("parse vault credential: %w", err)
	}
	if strings.TrimSpace(c.Address) == "" {
		return Credential{}, errors.New("vault credential missing vaultAddress")
	}
	if strings.TrimSpace(c.Token) == "" {
		return Credential{}, errors.New("vault credential missing vaultToken")
	}
	return c, nil
}

// Source is a KV v2 source vault.
type Source struct {
	logical logical
}

// New connects to the Vault server described by cred.
func New(cred Credential) (*Source, error) {
	cfg := api.DefaultConfig()
	if cfg.Error != nil {
		return nil, fmt.Errorf("vault config: %w", cfg.Error)
	}
	cfg.Address = cred.Address

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault client: %w", err)
	}
	client.SetToken(cred.Token)
	return &Source{logical: client.Logical()}, nil
}

// ListIdentifiers lists the keys under the mount's metadata path. A mount
// with no secrets yields an empty list.
func (s *Source) ListIdentifiers(ctx context.Context, prefix string) ([]string, error) {
	path := mount(prefix) + "/metadata"
	sec, err := s.logical.ListWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	if sec == nil || sec.Data == nil {
		return []string{}, nil
	}
	raw, ok := sec.Data["keys"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("list %s: unexpected keys type %T", path, sec.Data["keys"])
	}
	ids := make([]string, 0, len(raw))
	for _, k := range raw {
		key, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("list %s: unexpected key type %T", path, k)
		}
		ids = append(ids, key)
	}
	return ids, nil
}

// Version returns current_version from the secret's metadata.
func (s *Source) Version(ctx context.Context, prefix, identifier string) (string, error) {
	path := mount(prefix) + "/metadata/" + identifier
	sec, err := s.read(ctx, path)
	if err != nil {
		return "", err
	}
	v, err := versionString(sec.Data["current_version"])
	if err != nil {
		return "", fmt.Errorf("read %s: current_version: %w", path, err)
	}
	return v, nil
}

// FetchValue reads the latest data and its version.
func (s *Source) FetchValue(ctx context.Context, prefix, identifier string) (secret.SourceValue, error) {
	path := mount(prefix) + "/data/" + identifier
	sec, err := s.read(ctx, path)
	if err != nil {
		return secret.SourceValue{}, err
	}

	meta, _ := sec.Data["metadata"].(map[string]interface{})
	version, err := versionString(meta["version"])
	if err != nil {
		return secret.SourceValue{}, fmt.Errorf("read %s: metadata.version: %w", path, err)
	}

	data, ok := sec.Data["data"].(map[string]interface{})
	if !ok {
		// Deleted or destroyed versions come back with null data
		return secret.SourceValue{}, fmt.Errorf("read %s: version %s has no data", path, version)
	}
	payload, err := flatten(data)
	if err != nil {
		return secret.SourceValue{}, fmt.Errorf("read %s: %w", path, err)
	}

	return secret.SourceValue{Identifier: identifier, Version: version, Payload: payload}, nil
}

func (s *Source) read(ctx context.Context, path string) (*api.Secret, error) {
	sec, err := s.logical.ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if sec == nil || sec.Data == nil {
		return nil, fmt.Errorf("read %s: not found", path)
	}
	return sec, nil
}

func mount(prefix string) string {
	return strings.Trim(prefix, "/")
}

// versionString renders a KV version number. The client decodes numbers as
// json.Number.
func versionString(v interface{}) (string, error) {
	switch n := v.(type) {
	case json.Number:
		return n.String(), nil
	case string:
		if n == "" {
			return "", errors.New("empty version")
		}
		return n, nil
	case float64:
		return strconv.FormatInt(int64(n), 10), nil
	case int:
		return strconv.Itoa(n), nil
	case int64:
		return strconv.FormatInt(n, 10), nil
	case nil:
		return "", errors.New("missing version")
	default:
		return "", fmt.Errorf("unexpected version type %T", v)
	}
}

// flatten converts KV data into a string map. Non-string values are kept as
// their JSON text.
func flatten(data map[string]interface{}) (map[string]string, error) {
	out := make(map[string]string, len(data))
	for k, v := range data {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", k, err)
		}
		out[k] = string(b)
	}
	return out, nil
}
