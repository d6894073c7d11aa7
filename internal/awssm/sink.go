// Package awssm is the AWS Secrets Manager sink registry.
//
// Entries are named "<prefix>/<identifier>" and carry the source version
// they were synchronized at in a "version" tag.
package awssm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/roach88/vaultsync/internal/secret"
)

// API is the subset of the Secrets Manager client the sink uses.
type API interface {
	ListSecrets(ctx context.Context, in *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
	CreateSecret(ctx context.Context, in *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	PutSecretValue(ctx context.Context, in *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	TagResource(ctx context.Context, in *secretsmanager.TagResourceInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.TagResourceOutput, error)
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Sink writes replicated secrets to Secrets Manager.
type Sink struct {
	client   API
	kmsKeyID string
}

// Option configures a Sink.
type Option func(*Sink)

// WithKMSKey encrypts newly created entries with the given KMS key.
func WithKMSKey(keyID string) Option {
	return func(s *Sink) {
		s.kmsKeyID = keyID
	}
}

// New creates a sink over client.
func New(client API, opts ...Option) *Sink {
	s := &Sink{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListByPrefix lists every entry named "<prefix>/...", following pagination.
// Entries without a version tag are returned with an empty SyncedVersion.
func (s *Sink) ListByPrefix(ctx context.Context, prefix string) ([]secret.SinkRecord, error) {
	namePrefix := secret.SinkPrefix(prefix)
	in := &secretsmanager.ListSecretsInput{
		Filters: []types.Filter{{
			Key:    types.FilterNameStringTypeName,
			Values: []string{namePrefix},
		}},
	}

	var out []secret.SinkRecord
	pages := secretsmanager.NewListSecretsPaginator(s.client, in)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list secrets %q: %w", namePrefix, err)
		}
		for _, entry := range page.SecretList {
			name := aws.ToString(entry.Name)
			// The name filter also matches case-insensitively and on word
			// boundaries; keep exact prefix matches only.
			if !strings.HasPrefix(name, namePrefix) {
				continue
			}
			out = append(out, secret.SinkRecord{
				Name:          name,
				Handle:        aws.ToString(entry.ARN),
				SyncedVersion: versionTag(entry.Tags),
			})
		}
	}
	return out, nil
}

// Create creates a new entry tagged with versionTag.
func (s *Sink) Create(ctx context.Context, name, value, versionTag string) (secret.SinkRecord, error) {
	in := &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		SecretString: aws.String(value),
		Tags:         versionTags(versionTag),
	}
	if s.kmsKeyID != "" {
		in.KmsKeyId = aws.String(s.kmsKeyID)
	}

	out, err := s.client.CreateSecret(ctx, in)
	if err != nil {
		if IsAlreadyExists(err) {
			return secret.SinkRecord{}, fmt.Errorf("create %s: secret already exists: %w", name, err)
		}
		return secret.SinkRecord{}, fmt.Errorf("create %s: %w", name, err)
	}
	return secret.SinkRecord{
		Name:          aws.ToString(out.Name),
		Handle:        aws.ToString(out.ARN),
		SyncedVersion: versionTag,
	}, nil
}

// UpdateValue stores a new value for the entry.
func (s *Sink) UpdateValue(ctx context.Context, handle, value string) error {
	_, err := s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(handle),
		SecretString: aws.String(value),
	})
	if err != nil {
		return fmt.Errorf("put value %s: %w", handle, err)
	}
	return nil
}

// TagVersion overwrites the entry's version tag.
func (s *Sink) TagVersion(ctx context.Context, handle, versionTag string) error {
	_, err := s.client.TagResource(ctx, &secretsmanager.TagResourceInput{
		SecretId: aws.String(handle),
		Tags:     versionTags(versionTag),
	})
	if err != nil {
		return fmt.Errorf("tag %s: %w", handle, err)
	}
	return nil
}

// ReadValue returns the string value of any secret. The engine never calls
// it; it resolves the source connection credential.
func (s *Sink) ReadValue(ctx context.Context, id string) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		return "", fmt.Errorf("get value %s: %w", id, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("get value %s: secret has no string value", id)
	}
	return *out.SecretString, nil
}

// IsAlreadyExists reports whether err is a ResourceExistsException.
func IsAlreadyExists(err error) bool {
	var exists *types.ResourceExistsException
	return errors.As(err, &exists)
}

func versionTags(v string) []types.Tag {
	return []types.Tag{{Key: aws.String(secret.VersionTagKey), Value: aws.String(v)}}
}

func versionTag(tags []types.Tag) string {
	for _, t := range tags {
		if aws.ToString(t.Key) == secret.VersionTagKey {
			return aws.ToString(t.Value)
		}
	}
	return ""
}
