package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestPutSecret_AllocatesVersions(t *testing.T) {
	s := createTestStore(t)

	if v := mustPut(t, s, "kv", "db-pass", map[string]string{"password": "one"}); v != "1" {
		t.Errorf("first put version = %s, want 1", v)
	}
	if v := mustPut(t, s, "kv", "db-pass", map[string]string{"password": "two"}); v != "2" {
		t.Errorf("second put version = %s, want 2", v)
	}
	// Versions are per identifier and per prefix
	if v := mustPut(t, s, "kv", "api-key", nil); v != "1" {
		t.Errorf("other identifier version = %s, want 1", v)
	}
	if v := mustPut(t, s, "other", "db-pass", nil); v != "1" {
		t.Errorf("other prefix version = %s, want 1", v)
	}
}

func TestListIdentifiers(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustPut(t, s, "kv", "b", nil)
	mustPut(t, s, "kv", "a", nil)
	mustPut(t, s, "kv", "a", nil)
	mustPut(t, s, "kv", "B", nil)
	mustPut(t, s, "elsewhere", "z", nil)

	ids, err := s.ListIdentifiers(ctx, "kv")
	if err != nil {
		t.Fatalf("ListIdentifiers() failed: %v", err)
	}
	want := []string{"B", "a", "b"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("ListIdentifiers() = %v, want %v", ids, want)
	}
}

func TestListIdentifiers_EmptyPrefix(t *testing.T) {
	s := createTestStore(t)

	ids, err := s.ListIdentifiers(context.Background(), "kv")
	if err != nil {
		t.Fatalf("ListIdentifiers() failed: %v", err)
	}
	if ids == nil || len(ids) != 0 {
		t.Errorf("ListIdentifiers() = %#v, want empty non-nil slice", ids)
	}
}

func TestVersion(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustPut(t, s, "kv", "a", nil)
	mustPut(t, s, "kv", "a", nil)
	mustPut(t, s, "kv", "a", nil)

	v, err := s.Version(ctx, "kv", "a")
	if err != nil {
		t.Fatalf("Version() failed: %v", err)
	}
	if v != "3" {
		t.Errorf("Version() = %s, want 3", v)
	}

	_, err = s.Version(ctx, "kv", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Version(missing) error = %v, want ErrNotFound", err)
	}
}

func TestFetchValue_ReturnsLatest(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustPut(t, s, "kv", "db-pass", map[string]string{"password": "old"})
	mustPut(t, s, "kv", "db-pass", map[string]string{"password": "new", "user": "app"})

	val, err := s.FetchValue(ctx, "kv", "db-pass")
	if err != nil {
		t.Fatalf("FetchValue() failed: %v", err)
	}
	if val.Identifier != "db-pass" || val.Version != "2" {
		t.Errorf("FetchValue() = %s@%s, want db-pass@2", val.Identifier, val.Version)
	}
	want := map[string]string{"password": "new", "user": "app"}
	if !reflect.DeepEqual(val.Payload, want) {
		t.Errorf("payload = %v, want %v", val.Payload, want)
	}
}

func TestFetchValue_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.FetchValue(context.Background(), "kv", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("FetchValue(missing) error = %v, want ErrNotFound", err)
	}
}
