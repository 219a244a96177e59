package store

import (
	"context"
	"errors"
	"time"

	"gitrank/internal/platform/store/rd"
)

// newRDAdapter wraps an existing *rd.RD and returns the store.Keyval seam
func newRDAdapter(r *rd.RD) Keyval {
	return &rdAdapter{inner: r}
}

// rdAdapter adapts *rd.RD to the store.Keyval interface
type rdAdapter struct {
	inner *rd.RD
}

var _ Keyval = (*rdAdapter)(nil)

// Ping verifies connectivity for Store.Guard
func (a *rdAdapter) Ping(ctx context.Context) error {
	if a == nil || a.inner == nil {
		return errors.New("store: nil redis adapter")
	}
	return a.inner.Ping(ctx)
}

func (a *rdAdapter) Close() error { return a.inner.Close() }

func (a *rdAdapter) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return a.inner.ZAdd(ctx, key, score, member)
}

func (a *rdAdapter) ZRem(ctx context.Context, key string, members ...string) error {
	return a.inner.ZRem(ctx, key, members...)
}

func (a *rdAdapter) ZRevRange(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error) {
	zs, err := a.inner.ZRevRange(ctx, key, start, stop)
	if err != nil {
		return nil, err
	}
	out := make([]ScoredMember, len(zs))
	for i, z := range zs {
		out[i] = ScoredMember{Member: z.Member, Score: z.Score}
	}
	return out, nil
}

func (a *rdAdapter) SAdd(ctx context.Context, key string, members ...string) error {
	return a.inner.SAdd(ctx, key, members...)
}

func (a *rdAdapter) SRem(ctx context.Context, key string, members ...string) error {
	return a.inner.SRem(ctx, key, members...)
}

func (a *rdAdapter) SMembers(ctx context.Context, key string) ([]string, error) {
	return a.inner.SMembers(ctx, key)
}

func (a *rdAdapter) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return a.inner.SIsMember(ctx, key, member)
}

func (a *rdAdapter) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return a.inner.HGetAll(ctx, key)
}

func (a *rdAdapter) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return a.inner.SetNX(ctx, key, value, ttl)
}

func (a *rdAdapter) CompareDel(ctx context.Context, key, value string) (bool, error) {
	return a.inner.CompareDel(ctx, key, value)
}

func (a *rdAdapter) Pipelined(ctx context.Context, fn func(p Pipe) error) error {
	return a.inner.Pipelined(ctx, func(rp rd.Pipe) error {
		return fn(pipeShim{rp})
	})
}

// pipeShim adapts rd.Pipe to store.Pipe
type pipeShim struct{ p rd.Pipe }

func (s pipeShim) ZAdd(key string, score float64, member string) { s.p.ZAdd(key, score, member) }
func (s pipeShim) ZRem(key string, members ...string)            { s.p.ZRem(key, members...) }
func (s pipeShim) SAdd(key string, members ...string)            { s.p.SAdd(key, members...) }
func (s pipeShim) SRem(key string, members ...string)            { s.p.SRem(key, members...) }
