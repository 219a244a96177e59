package lease

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	perr "gitrank/internal/platform/errors"
	"gitrank/internal/platform/store"
)

// memKV implements just the lease subset of store.Keyval in memory
type memKV struct {
	store.Keyval

	mu sync.Mutex
	m  map[string]string
}

func newMemKV() *memKV { return &memKV{m: map[string]string{}} }

func (f *memKV) SetNX(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, held := f.m[key]; held {
		return false, nil
	}
	f.m[key] = value
	return true, nil
}

func (f *memKV) CompareDel(_ context.Context, key, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.m[key] != value {
		return false, nil
	}
	delete(f.m, key)
	return true, nil
}

func (f *memKV) held(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.m[key]
	return ok
}

func TestKey(t *testing.T) {
	if got := Key("github", "u1"); got != "lease:refresh:github:u1" {
		t.Fatalf("Key = %q", got)
	}
}

func TestAcquireHeldReturnsNotOK(t *testing.T) {
	kv := newMemKV()
	m := NewManager(kv, time.Minute)
	ctx := context.Background()

	tok, ok, err := m.Acquire(ctx, "k", 0)
	if err != nil || !ok || tok == "" {
		t.Fatalf("first acquire got (%q, %v, %v)", tok, ok, err)
	}
	_, ok, err = m.Acquire(ctx, "k", 0)
	if err != nil {
		t.Fatalf("second acquire err: %v", err)
	}
	if ok {
		t.Fatal("second acquire on held key must not succeed")
	}
}

func TestReleaseTokenMismatchLeavesHeld(t *testing.T) {
	kv := newMemKV()
	m := NewManager(kv, time.Minute)
	ctx := context.Background()

	tok, _, err := m.Acquire(ctx, "k", 0)
	if err != nil {
		t.Fatal(err)
	}

	released, err := m.Release(ctx, "k", "stale-token")
	if err != nil {
		t.Fatal(err)
	}
	if released {
		t.Fatal("mismatched token must not release")
	}
	if !kv.held("k") {
		t.Fatal("lock should still be held")
	}

	released, err = m.Release(ctx, "k", tok)
	if err != nil || !released {
		t.Fatalf("matching release got (%v, %v)", released, err)
	}

	// re-acquire after a matching release succeeds
	if _, ok, err := m.Acquire(ctx, "k", 0); err != nil || !ok {
		t.Fatalf("re-acquire got (%v, %v)", ok, err)
	}
}

func TestWithLockConflictAndRelease(t *testing.T) {
	kv := newMemKV()
	m := NewManager(kv, time.Minute)
	ctx := context.Background()

	if _, _, err := m.Acquire(ctx, "k", 0); err != nil {
		t.Fatal(err)
	}
	err := m.WithLock(ctx, "k", func(context.Context) error {
		t.Fatal("fn must not run when the key is held")
		return nil
	})
	if !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("want conflict, got %v", err)
	}
}

func TestWithLockReleasesAfterFnError(t *testing.T) {
	kv := newMemKV()
	m := NewManager(kv, time.Minute)
	ctx := context.Background()

	boom := errors.New("boom")
	if err := m.WithLock(ctx, "k", func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("want fn error back, got %v", err)
	}
	if kv.held("k") {
		t.Fatal("lock must be released even when fn fails")
	}
}

func TestWithPairReleasesFirstOnSecondConflict(t *testing.T) {
	kv := newMemKV()
	m := NewManager(kv, time.Minute)
	ctx := context.Background()

	// hold the second key so the pair acquisition fails halfway
	if _, _, err := m.Acquire(ctx, "second", 0); err != nil {
		t.Fatal(err)
	}

	err := m.WithPair(ctx, "first", "second", func(context.Context) error {
		t.Fatal("fn must not run without both leases")
		return nil
	})
	if !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("want conflict, got %v", err)
	}
	if kv.held("first") {
		t.Fatal("first lease must be released before the conflict surfaces")
	}
}

func TestWithPairReleasesBoth(t *testing.T) {
	kv := newMemKV()
	m := NewManager(kv, time.Minute)
	ctx := context.Background()

	ran := false
	err := m.WithPair(ctx, "first", "second", func(context.Context) error {
		ran = true
		if !kv.held("first") || !kv.held("second") {
			t.Fatal("both leases must be held inside fn")
		}
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("WithPair got err=%v ran=%v", err, ran)
	}
	if kv.held("first") || kv.held("second") {
		t.Fatal("both leases must be released on the way out")
	}
}
