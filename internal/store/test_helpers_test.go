package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// mustPut publishes payload and fails the test on error.
func mustPut(t *testing.T, s *Store, prefix, identifier string, payload map[string]string) string {
	t.Helper()
	v, err := s.PutSecret(context.Background(), prefix, identifier, payload)
	if err != nil {
		t.Fatalf("PutSecret(%s) failed: %v", identifier, err)
	}
	return v
}
