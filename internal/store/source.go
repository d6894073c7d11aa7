package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/vaultsync/internal/secret"
)

// PutSecret publishes payload as the next version of identifier and returns
// that version. The first put of an identifier is version 1.
func (s *Store) PutSecret(ctx context.Context, prefix, identifier string, payload map[string]string) (string, error) {
	encoded, err := secret.EncodePayload(payload)
	if err != nil {
		return "", fmt.Errorf("put secret %s: %w", identifier, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("put secret %s: begin tx: %w", identifier, err)
	}
	defer tx.Rollback() // No-op if committed

	var version int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1
		FROM source_versions
		WHERE prefix = ? AND identifier = ?
	`, prefix, identifier).Scan(&version)
	if err != nil {
		return "", fmt.Errorf("put secret %s: next version: %w", identifier, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO source_versions (prefix, identifier, version, payload)
		VALUES (?, ?, ?, ?)
	`, prefix, identifier, version, encoded)
	if err != nil {
		return "", fmt.Errorf("put secret %s: %w", identifier, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("put secret %s: commit: %w", identifier, err)
	}
	return strconv.FormatInt(version, 10), nil
}

// ListIdentifiers returns every identifier under prefix in byte order.
func (s *Store) ListIdentifiers(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT identifier
		FROM source_versions
		WHERE prefix = ?
		ORDER BY identifier COLLATE BINARY ASC
	`, prefix)
	if err != nil {
		return nil, fmt.Errorf("list identifiers %s: %w", prefix, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list identifiers %s: %w", prefix, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list identifiers %s: %w", prefix, err)
	}
	return ids, nil
}

// Version returns the current version of identifier.
func (s *Store) Version(ctx context.Context, prefix, identifier string) (string, error) {
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(version)
		FROM source_versions
		WHERE prefix = ? AND identifier = ?
	`, prefix, identifier).Scan(&version)
	if err != nil {
		return "", fmt.Errorf("read version %s: %w", identifier, err)
	}
	if !version.Valid {
		return "", fmt.Errorf("read version %s: %w", identifier, ErrNotFound)
	}
	return strconv.FormatInt(version.Int64, 10), nil
}

// FetchValue returns the current version of identifier with its payload.
func (s *Store) FetchValue(ctx context.Context, prefix, identifier string) (secret.SourceValue, error) {
	var (
		version int64
		payload string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT version, payload
		FROM source_versions
		WHERE prefix = ? AND identifier = ?
		ORDER BY version DESC
		LIMIT 1
	`, prefix, identifier).Scan(&version, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return secret.SourceValue{}, fmt.Errorf("fetch %s: %w", identifier, ErrNotFound)
	}
	if err != nil {
		return secret.SourceValue{}, fmt.Errorf("fetch %s: %w", identifier, err)
	}

	decoded, err := secret.DecodePayload(payload)
	if err != nil {
		return secret.SourceValue{}, fmt.Errorf("fetch %s: %w", identifier, err)
	}
	return secret.SourceValue{
		Identifier: identifier,
		Version:    strconv.FormatInt(version, 10),
		Payload:    decoded,
	}, nil
}
