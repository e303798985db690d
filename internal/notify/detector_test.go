package notify

import (
	"context"
	"errors"
	"testing"

	"caption-merge-service/internal/store"
)

// getFailStore fails one Get for a chosen key, once.
type getFailStore struct {
	store.Store
	failKey string
	failed  bool
}

func (s *getFailStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == s.failKey && !s.failed {
		s.failed = true
		return nil, errors.New("transient read failure")
	}
	return s.Store.Get(ctx, key)
}

func TestDetector_ReportsNewAndChangedOnly(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	d := NewDetector(mem, "s1")

	k1 := store.LineKey("s1", "A", 1000)
	mem.Set(ctx, k1, []byte(`{"text":"Hello"}`))

	updated, err := d.Diff(ctx)
	if err != nil {
		t.Fatalf("diff failed: %v", err)
	}
	if len(updated) != 1 || string(updated[0]) != `{"text":"Hello"}` {
		t.Fatalf("expected new line reported, got %v", updated)
	}

	// Unchanged content is never re-sent.
	updated, err = d.Diff(ctx)
	if err != nil {
		t.Fatalf("diff failed: %v", err)
	}
	if len(updated) != 0 {
		t.Errorf("expected no updates for unchanged line, got %d", len(updated))
	}

	// A content change is reported once.
	mem.Set(ctx, k1, []byte(`{"text":"Hello world"}`))
	updated, _ = d.Diff(ctx)
	if len(updated) != 1 || string(updated[0]) != `{"text":"Hello world"}` {
		t.Errorf("expected changed line reported, got %v", updated)
	}
	updated, _ = d.Diff(ctx)
	if len(updated) != 0 {
		t.Errorf("expected change reported only once, got %d", len(updated))
	}
}

func TestDetector_SessionScoped(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	d := NewDetector(mem, "s1")

	mem.Set(ctx, store.LineKey("s2", "A", 1000), []byte(`{"text":"other session"}`))

	updated, err := d.Diff(ctx)
	if err != nil {
		t.Fatalf("diff failed: %v", err)
	}
	if len(updated) != 0 {
		t.Errorf("detector must only see its session, got %v", updated)
	}
}

func TestDetector_DeletionNotReported(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	d := NewDetector(mem, "s1")

	k1 := store.LineKey("s1", "A", 1000)
	mem.Set(ctx, k1, []byte(`{"text":"Hello"}`))
	d.Diff(ctx)

	// Key disappearance is never diffed; only the clear control message
	// communicates removals.
	mem.Delete(ctx, k1)
	updated, err := d.Diff(ctx)
	if err != nil {
		t.Fatalf("diff failed: %v", err)
	}
	if len(updated) != 0 {
		t.Errorf("deletions must not be reported, got %v", updated)
	}
}

func TestDetector_FailedScanCommitsNothing(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	kA := store.LineKey("s1", "A", 1000)
	kB := store.LineKey("s1", "B", 2000)
	mem.Set(ctx, kA, []byte(`{"a":1}`))
	mem.Set(ctx, kB, []byte(`{"b":2}`))

	// The second key read fails mid-scan. Lines visited before the
	// failure must not be marked delivered, or they would be silently
	// lost to the viewer.
	failing := &getFailStore{Store: mem, failKey: kB}
	d := NewDetector(failing, "s1")

	if _, err := d.Diff(ctx); err == nil {
		t.Fatal("expected error from failed scan")
	}

	updated, err := d.Diff(ctx)
	if err != nil {
		t.Fatalf("diff failed: %v", err)
	}
	if len(updated) != 2 {
		t.Errorf("expected both lines after recovery, got %d", len(updated))
	}
}

func TestDetector_MultipleLines(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	d := NewDetector(mem, "s1")

	mem.Set(ctx, store.LineKey("s1", "A", 1000), []byte(`{"a":1}`))
	mem.Set(ctx, store.LineKey("s1", "B", 2000), []byte(`{"b":2}`))

	updated, _ := d.Diff(ctx)
	if len(updated) != 2 {
		t.Fatalf("expected both lines reported, got %d", len(updated))
	}

	// Change only one.
	mem.Set(ctx, store.LineKey("s1", "B", 2000), []byte(`{"b":3}`))
	updated, _ = d.Diff(ctx)
	if len(updated) != 1 || string(updated[0]) != `{"b":3}` {
		t.Errorf("expected only the changed line, got %v", updated)
	}
}
