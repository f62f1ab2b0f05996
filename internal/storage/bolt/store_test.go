package bolt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robdanz/tf-cf-dni-list/internal/storage"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir() + "/dnilist.bolt")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPutGetDelete(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	entry := storage.PendingEntry{SessionID: "s1", Kind: storage.AwaitingError, Hostname: "example.com"}
	if err := store.Put(ctx, entry, time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(ctx, "s1", storage.AwaitingError)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Hostname != "example.com" {
		t.Errorf("hostname = %q, want %q", got.Hostname, "example.com")
	}

	if err := store.Delete(ctx, "s1", storage.AwaitingError); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "s1", storage.AwaitingError); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("get after delete = %v, want ErrNotFound", err)
	}
}

func TestKindsAreIndependent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	marker := storage.PendingEntry{SessionID: "s1", Kind: storage.AwaitingSession}
	if err := store.Put(ctx, marker, time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Get(ctx, "s1", storage.AwaitingError); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("cross-kind get = %v, want ErrNotFound", err)
	}
}

func TestExpiredEntryReadsAsAbsent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	now := time.Now()
	store.clock = func() time.Time { return now }

	entry := storage.PendingEntry{SessionID: "s1", Kind: storage.AwaitingError, Hostname: "example.com"}
	if err := store.Put(ctx, entry, 5*time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	store.clock = func() time.Time { return now.Add(6 * time.Minute) }
	if _, err := store.Get(ctx, "s1", storage.AwaitingError); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get after expiry = %v, want ErrNotFound", err)
	}
}

func TestGetHonorsCancelledContext(t *testing.T) {
	store := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Get(ctx, "s1", storage.AwaitingSession); !errors.Is(err, context.Canceled) {
		t.Errorf("get = %v, want context.Canceled", err)
	}
}
