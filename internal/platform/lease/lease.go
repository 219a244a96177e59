// Package lease provides short-lived token-guarded refresh leases so two
// workers never refresh the same (provider, user) concurrently
package lease

import (
	"context"
	"time"

	perr "gitrank/internal/platform/errors"
	"gitrank/internal/platform/store"

	"github.com/google/uuid"
)

const keyPrefix = "lease:refresh:"

// DefaultTTL bounds how long a crashed holder can block a key
const DefaultTTL = 90 * time.Second

// Key composes the lease key for one (provider, user) pair
func Key(provider, userID string) string {
	return keyPrefix + provider + ":" + userID
}

// Manager hands out lock leases backed by the keyval store
type Manager struct {
	kv  store.Keyval
	ttl time.Duration

	// newToken is a seam for tests
	newToken func() string
}

// NewManager constructs a Manager; ttl <= 0 uses DefaultTTL
func NewManager(kv store.Keyval, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{kv: kv, ttl: ttl, newToken: func() string { return uuid.NewString() }}
}

// Acquire claims key for ttl and returns the holder token.
// ok=false means the key is already held and unexpired
func (m *Manager) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if ttl <= 0 {
		ttl = m.ttl
	}
	token := m.newToken()
	ok, err := m.kv.SetNX(ctx, key, token, ttl)
	if err != nil {
		return "", false, perr.Wrap(err, perr.ErrorCodeUnavailable, "lease acquire failed")
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release drops key only when the stored token matches. A holder that
// outlived its TTL cannot release a newer holder's lease
func (m *Manager) Release(ctx context.Context, key, token string) (bool, error) {
	ok, err := m.kv.CompareDel(ctx, key, token)
	if err != nil {
		return false, perr.Wrap(err, perr.ErrorCodeUnavailable, "lease release failed")
	}
	return ok, nil
}

// WithLock acquires key, runs fn, and always releases on the way out.
// A held key surfaces as a conflict error without running fn
func (m *Manager) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	token, ok, err := m.Acquire(ctx, key, m.ttl)
	if err != nil {
		return err
	}
	if !ok {
		return perr.Conflictf("refresh already in progress for %s", key)
	}
	defer func() { _, _ = m.Release(ctx, key, token) }()
	return fn(ctx)
}

// WithPair acquires first then second in that fixed order and releases in
// reverse. When second cannot be obtained the first lease is released
// before the conflict surfaces
func (m *Manager) WithPair(ctx context.Context, first, second string, fn func(ctx context.Context) error) error {
	tok1, ok, err := m.Acquire(ctx, first, m.ttl)
	if err != nil {
		return err
	}
	if !ok {
		return perr.Conflictf("refresh already in progress for %s", first)
	}
	defer func() { _, _ = m.Release(ctx, first, tok1) }()

	tok2, ok, err := m.Acquire(ctx, second, m.ttl)
	if err != nil {
		return err
	}
	if !ok {
		return perr.Conflictf("refresh already in progress for %s", second)
	}
	defer func() { _, _ = m.Release(ctx, second, tok2) }()

	return fn(ctx)
}
