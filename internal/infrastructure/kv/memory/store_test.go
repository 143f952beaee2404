package memory

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/admission-portal/internal/core/domain"
)

func TestStoreRoundTripCopiesValues(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	value := []byte("hello")
	if err := store.Put(ctx, "k", value, 0); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	value[0] = 'j'

	got, err := store.Get(ctx, "k")
	if err != nil || string(got) != "hello" {
		t.Fatalf("Get() = %q, %v", got, err)
	}
	got[0] = 'y'
	again, _ := store.Get(ctx, "k")
	if string(again) != "hello" {
		t.Fatalf("stored value mutated through Get result: %q", again)
	}
}

func TestStoreExpiry(t *testing.T) {
	store := NewStore()
	now := time.Unix(1700000000, 0)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_ = store.Put(ctx, "k", []byte("v"), time.Minute)
	now = now.Add(59 * time.Second)
	if _, err := store.Get(ctx, "k"); err != nil {
		t.Fatalf("Get() before expiry error = %v", err)
	}

	now = now.Add(time.Second)
	if _, err := store.Get(ctx, "k"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after expiry, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", store.Len())
	}
}

func TestStoreDeletePrefix(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	for _, key := range []string{"s1:a", "s1:progress_x", "s1:progress_y", "s2:progress_x"} {
		_ = store.Put(ctx, key, []byte("v"), 0)
	}

	_ = store.Delete(ctx, "s1:a", "missing")
	_ = store.DeletePrefix(ctx, "s1:progress_")

	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", store.Len())
	}
	if _, err := store.Get(ctx, "s2:progress_x"); err != nil {
		t.Fatalf("unrelated key deleted: %v", err)
	}
}
