package tokenstore

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_ConsumeIsSingleUse(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	if err := store.Put(ctx, "tok-1", "p-1", time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}
	ok, err := store.Exists(ctx, "tok-1")
	if err != nil || !ok {
		t.Fatalf("expected entry to exist, ok=%v err=%v", ok, err)
	}

	consumed, err := store.Consume(ctx, "tok-1")
	if err != nil || !consumed {
		t.Fatalf("first consume must succeed, ok=%v err=%v", consumed, err)
	}
	consumed, err = store.Consume(ctx, "tok-1")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if consumed {
		t.Fatal("second consume must fail")
	}
}

func TestMemoryStore_ExpiredEntryGone(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(func() time.Time { return now })
	ctx := context.Background()

	if err := store.Put(ctx, "tok-1", "p-1", time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	now = now.Add(2 * time.Minute)

	ok, err := store.Exists(ctx, "tok-1")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if ok {
		t.Fatal("expired entry must not exist")
	}
	consumed, err := store.Consume(ctx, "tok-1")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if consumed {
		t.Fatal("expired entry must not be consumable")
	}
}

func TestMemoryStore_UnknownToken(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	ok, err := store.Exists(ctx, "missing")
	if err != nil || ok {
		t.Fatalf("unknown token must not exist, ok=%v err=%v", ok, err)
	}
	if err := store.Delete(ctx, "missing"); err != nil {
		t.Fatalf("delete of unknown token must be a no-op, got %v", err)
	}
}
