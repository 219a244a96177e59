// Package repo provides the ranked cache repository over the keyval seam
package repo

import (
	"context"

	"gitrank/internal/platform/store"
	rollupdom "gitrank/internal/services/rollup/domain"
)

// KeyUsers is the global known-users set. Sync appends to it; the batch
// orchestrator reads it for candidate discovery and never writes it
const KeyUsers = "lb:users"

// ZKey returns the sorted-set key for one period
func ZKey(period rollupdom.Period) string { return "lb:" + string(period) }

// Cache is the ranked cache surface
type Cache interface {
	Publish(ctx context.Context, userID string, totals map[rollupdom.Period]int) error
	Drop(ctx context.Context, userID string) error
	Range(ctx context.Context, period rollupdom.Period, start, stop int64) ([]store.ScoredMember, error)
	KnownUsers(ctx context.Context) ([]string, error)
}

type cache struct{ kv store.Keyval }

// NewCache constructs a Cache over the keyval seam
func NewCache(kv store.Keyval) Cache { return &cache{kv: kv} }

// Publish upserts one member across the period zsets and registers the
// user in the known-users set, all in one atomic pipeline
func (c *cache) Publish(ctx context.Context, userID string, totals map[rollupdom.Period]int) error {
	return c.kv.Pipelined(ctx, func(p store.Pipe) error {
		for period, total := range totals {
			p.ZAdd(ZKey(period), float64(total), userID)
		}
		p.SAdd(KeyUsers, userID)
		return nil
	})
}

// Drop removes one member from every period zset and the known-users set
func (c *cache) Drop(ctx context.Context, userID string) error {
	return c.kv.Pipelined(ctx, func(p store.Pipe) error {
		for _, period := range rollupdom.KnownPeriods() {
			p.ZRem(ZKey(period), userID)
		}
		p.SRem(KeyUsers, userID)
		return nil
	})
}

// Range reads ranks [start, stop] inclusive, highest total first
func (c *cache) Range(ctx context.Context, period rollupdom.Period, start, stop int64) ([]store.ScoredMember, error) {
	return c.kv.ZRevRange(ctx, ZKey(period), start, stop)
}

// KnownUsers lists every user id ever published
func (c *cache) KnownUsers(ctx context.Context) ([]string, error) {
	return c.kv.SMembers(ctx, KeyUsers)
}
