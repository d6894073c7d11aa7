package store

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCreate_AssignsHandle(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, "kv/api-key", `{"key":"abc"}`, "1")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if !strings.HasPrefix(rec.Handle, handlePrefix) {
		t.Errorf("handle = %q, want %q prefix", rec.Handle, handlePrefix)
	}
	if rec.Name != "kv/api-key" || rec.SyncedVersion != "1" {
		t.Errorf("Create() = %+v", rec)
	}

	e, err := s.Entry(ctx, "kv/api-key")
	if err != nil {
		t.Fatalf("Entry() failed: %v", err)
	}
	if e.Handle != rec.Handle || e.Value != `{"key":"abc"}` || e.VersionTag != "1" {
		t.Errorf("Entry() = %+v", e)
	}
}

func TestCreate_DuplicateNameFails(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, "kv/a", "{}", "1"); err != nil {
		t.Fatalf("first Create() failed: %v", err)
	}
	_, err := s.Create(ctx, "kv/a", `{"other":"x"}`, "2")
	if err == nil {
		t.Fatal("second Create() should fail")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("error = %v, want already exists", err)
	}

	e, _ := s.Entry(ctx, "kv/a")
	if e.Value != "{}" || e.VersionTag != "1" {
		t.Errorf("existing entry modified: %+v", e)
	}
}

func TestListByPrefix(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"kv/b", "kv/a", "kv2/x", "kv", "other/kv/y", "kv_%/z"} {
		if _, err := s.Create(ctx, name, "{}", "1"); err != nil {
			t.Fatalf("Create(%s) failed: %v", name, err)
		}
	}

	recs, err := s.ListByPrefix(ctx, "kv")
	if err != nil {
		t.Fatalf("ListByPrefix() failed: %v", err)
	}
	var names []string
	for _, r := range recs {
		names = append(names, r.Name)
	}
	if strings.Join(names, ",") != "kv/a,kv/b" {
		t.Errorf("ListByPrefix() names = %v, want [kv/a kv/b]", names)
	}

	recs, err = s.ListByPrefix(ctx, "kv_%")
	if err != nil {
		t.Fatalf("ListByPrefix(kv_%%) failed: %v", err)
	}
	if len(recs) != 1 || recs[0].Name != "kv_%/z" {
		t.Errorf("ListByPrefix(kv_%%) = %+v", recs)
	}
}

func TestUpdateValueAndTag(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, "kv/a", `{"k":"v1"}`, "1")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if err := s.UpdateValue(ctx, rec.Handle, `{"k":"v2"}`); err != nil {
		t.Fatalf("UpdateValue() failed: %v", err)
	}
	e, _ := s.Entry(ctx, "kv/a")
	if e.Value != `{"k":"v2"}` || e.VersionTag != "1" {
		t.Errorf("after UpdateValue: %+v", e)
	}

	if err := s.TagVersion(ctx, rec.Handle, "2"); err != nil {
		t.Fatalf("TagVersion() failed: %v", err)
	}
	e, _ = s.Entry(ctx, "kv/a")
	if e.VersionTag != "2" {
		t.Errorf("after TagVersion: %+v", e)
	}
}

func TestUpdate_UnknownHandle(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.UpdateValue(ctx, "local:nope", "{}"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateValue(unknown) = %v, want ErrNotFound", err)
	}
	if err := s.TagVersion(ctx, "local:nope", "1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("TagVersion(unknown) = %v, want ErrNotFound", err)
	}
}

func TestEntry_NotFound(t *testing.T) {
	s := createTestStore(t)

	if _, err := s.Entry(context.Background(), "kv/none"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Entry(missing) = %v, want ErrNotFound", err)
	}
}
