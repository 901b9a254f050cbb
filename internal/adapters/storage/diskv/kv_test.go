package diskv

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if _, ok, err := store.Get(ctx, "ts:prefs:view"); err != nil || ok {
		t.Fatalf("Get() on empty store = (%v, %v), want miss", ok, err)
	}

	if err := store.Set(ctx, "ts:prefs:view", []byte(`{"sortBy":"issue"}`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	value, ok, err := store.Get(ctx, "ts:prefs:view")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || !bytes.Equal(value, []byte(`{"sortBy":"issue"}`)) {
		t.Fatalf("unexpected value %q", value)
	}

	if err := store.Set(ctx, "ts:prefs:view", []byte(`{"sortBy":"project"}`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	value, _, err = store.Get(ctx, "ts:prefs:view")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.Equal(value, []byte(`{"sortBy":"project"}`)) {
		t.Fatalf("overwrite lost, got %q", value)
	}

	if err := store.Delete(ctx, "ts:prefs:view"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, err := store.Get(ctx, "ts:prefs:view"); err != nil || ok {
		t.Fatalf("Get() after delete = (%v, %v), want miss", ok, err)
	}
	if err := store.Delete(ctx, "ts:prefs:view"); err != nil {
		t.Fatalf("Delete() of absent key error = %v", err)
	}
}

func TestKeySegmentsBecomeDirectories(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	store, err := Open(base)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := store.Set(ctx, "ts:draftRows:2026-02-16", []byte(`[]`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "ts", "draftRows", "2026-02-16")); err != nil {
		t.Fatalf("expected file-per-key layout: %v", err)
	}
}

func TestOpenRequiresBasePath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected an error for a blank base path")
	}
}
