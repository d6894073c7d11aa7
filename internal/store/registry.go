package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/roach88/vaultsync/internal/secret"
)

// handlePrefix marks handles issued by the local registry.
const handlePrefix = "local:"

// RegistryEntry is one row of the local sink registry.
type RegistryEntry struct {
	Handle     string `json:"handle"`
	Name       string `json:"name"`
	Value      string `json:"value"`
	VersionTag string `json:"version_tag"`
}

// ListByPrefix returns entries named "<prefix>/..." ordered by name.
func (s *Store) ListByPrefix(ctx context.Context, prefix string) ([]secret.SinkRecord, error) {
	namePrefix := secret.SinkPrefix(prefix)
	// substr avoids LIKE, whose wildcards could appear in names.
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, handle, version_tag
		FROM registry_entries
		WHERE substr(name, 1, length(?)) = ?
		ORDER BY name COLLATE BINARY ASC
	`, namePrefix, namePrefix)
	if err != nil {
		return nil, fmt.Errorf("list registry %s: %w", namePrefix, err)
	}
	defer rows.Close()

	var out []secret.SinkRecord
	for rows.Next() {
		var rec secret.SinkRecord
		if err := rows.Scan(&rec.Name, &rec.Handle, &rec.SyncedVersion); err != nil {
			return nil, fmt.Errorf("list registry %s: %w", namePrefix, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list registry %s: %w", namePrefix, err)
	}
	return out, nil
}

// Create inserts a new entry. Creating a name that already exists fails.
func (s *Store) Create(ctx context.Context, name, value, versionTag string) (secret.SinkRecord, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return secret.SinkRecord{}, fmt.Errorf("create %s: handle: %w", name, err)
	}
	handle := handlePrefix + id.String()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO registry_entries (handle, name, value, version_tag)
		VALUES (?, ?, ?, ?)
	`, handle, name, value, versionTag)
	if err != nil {
		if isUniqueViolation(err) {
			return secret.SinkRecord{}, fmt.Errorf("create %s: secret already exists", name)
		}
		return secret.SinkRecord{}, fmt.Errorf("create %s: %w", name, err)
	}
	return secret.SinkRecord{Name: name, Handle: handle, SyncedVersion: versionTag}, nil
}

// UpdateValue replaces the value of the entry with handle.
func (s *Store) UpdateValue(ctx context.Context, handle, value string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE registry_entries SET value = ? WHERE handle = ?
	`, value, handle)
	if err != nil {
		return fmt.Errorf("put value %s: %w", handle, err)
	}
	return requireOneRow(res, "put value", handle)
}

// TagVersion replaces the version tag of the entry with handle.
func (s *Store) TagVersion(ctx context.Context, handle, versionTag string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE registry_entries SET version_tag = ? WHERE handle = ?
	`, versionTag, handle)
	if err != nil {
		return fmt.Errorf("tag %s: %w", handle, err)
	}
	return requireOneRow(res, "tag", handle)
}

// Entry returns the registry entry stored under name.
func (s *Store) Entry(ctx context.Context, name string) (RegistryEntry, error) {
	var e RegistryEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT handle, name, value, version_tag
		FROM registry_entries
		WHERE name = ?
	`, name).Scan(&e.Handle, &e.Name, &e.Value, &e.VersionTag)
	if errors.Is(err, sql.ErrNoRows) {
		return RegistryEntry{}, fmt.Errorf("entry %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return RegistryEntry{}, fmt.Errorf("entry %s: %w", name, err)
	}
	return e, nil
}

func requireOneRow(res sql.Result, op, handle string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, handle, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", op, handle, ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
