package cachestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/r0zar/amm-price-engine/business/oracle/app"
)

func TestMemory_RoundTrip(t *testing.T) {
	store := NewMemory()
	defer store.Close()

	runStoreContract(t, store)
}

func TestBolt_RoundTrip(t *testing.T) {
	store, err := NewBolt(filepath.Join(t.TempDir(), "oracle.db"))
	if err != nil {
		t.Fatalf("NewBolt failed: %v", err)
	}
	defer store.Close()

	runStoreContract(t, store)
}

func TestBolt_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oracle.db")
	ctx := context.Background()

	store, err := NewBolt(path)
	if err != nil {
		t.Fatalf("NewBolt failed: %v", err)
	}
	if err := store.Set(ctx, "backup", []byte("last-known-good"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewBolt(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	value, ok, err := reopened.Get(ctx, "backup")
	if err != nil || !ok {
		t.Fatalf("Get after reopen = ok=%v err=%v", ok, err)
	}
	if string(value) != "last-known-good" {
		t.Errorf("value = %q, want last-known-good", value)
	}
}

func runStoreContract(t *testing.T, store app.CacheStore) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("Get(missing) = ok=%v err=%v, want absent", ok, err)
	}

	if err := store.Set(ctx, "fresh", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, ok, err := store.Get(ctx, "fresh")
	if err != nil || !ok || string(value) != "v1" {
		t.Fatalf("Get(fresh) = %q ok=%v err=%v", value, ok, err)
	}

	// Overwrite under the same key.
	if err := store.Set(ctx, "fresh", []byte("v2"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, _, _ = store.Get(ctx, "fresh")
	if string(value) != "v2" {
		t.Errorf("overwrite: value = %q, want v2", value)
	}

	// ttl <= 0 means no expiry.
	if err := store.Set(ctx, "pinned", []byte("keep"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "pinned"); !ok {
		t.Error("pinned entry should not expire")
	}

	// An already-expired ttl is reported as absent.
	if err := store.Set(ctx, "gone", []byte("x"), time.Nanosecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, ok, _ := store.Get(ctx, "gone"); ok {
		t.Error("expired entry should be absent")
	}
}
