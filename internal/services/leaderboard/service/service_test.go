package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	perr "gitrank/internal/platform/errors"
	"gitrank/internal/platform/store"
	"gitrank/internal/services/leaderboard/domain"
	rollupdom "gitrank/internal/services/rollup/domain"
)

// memCache is an in-memory ranked cache honoring the zset ordering
// contract: score descending, member ascending on ties
type memCache struct {
	mu     sync.Mutex
	scores map[rollupdom.Period]map[string]int
	users  map[string]bool

	rangeErr error
	pubErr   error
}

func newMemCache() *memCache {
	return &memCache{
		scores: map[rollupdom.Period]map[string]int{},
		users:  map[string]bool{},
	}
}

func (c *memCache) Publish(_ context.Context, userID string, totals map[rollupdom.Period]int) error {
	if c.pubErr != nil {
		return c.pubErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for period, total := range totals {
		if c.scores[period] == nil {
			c.scores[period] = map[string]int{}
		}
		c.scores[period][userID] = total
	}
	c.users[userID] = true
	return nil
}

func (c *memCache) Drop(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, members := range c.scores {
		delete(members, userID)
	}
	delete(c.users, userID)
	return nil
}

func (c *memCache) Range(_ context.Context, period rollupdom.Period, start, stop int64) ([]store.ScoredMember, error) {
	if c.rangeErr != nil {
		return nil, c.rangeErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	members := make([]store.ScoredMember, 0, len(c.scores[period]))
	for id, total := range c.scores[period] {
		members = append(members, store.ScoredMember{Member: id, Score: float64(total)})
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score > members[j].Score
		}
		return members[i].Member < members[j].Member
	})
	if start >= int64(len(members)) {
		return nil, nil
	}
	if stop >= int64(len(members)) {
		stop = int64(len(members)) - 1
	}
	return members[start : stop+1], nil
}

func (c *memCache) KnownUsers(context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.users))
	for id := range c.users {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// fakeDurable serves canned rollup rows
type fakeDurable struct {
	rollupdom.ReaderPort

	records map[string][]rollupdom.Record
	pages   map[rollupdom.Period][]rollupdom.Record
	err     error
}

func (f *fakeDurable) RecordsForUser(_ context.Context, userID string) ([]rollupdom.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records[userID], nil
}

func (f *fakeDurable) PageByTotal(_ context.Context, period rollupdom.Period, offset, limit int) ([]rollupdom.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	recs := f.pages[period]
	if offset >= len(recs) {
		return nil, nil
	}
	end := offset + limit
	if end > len(recs) {
		end = len(recs)
	}
	return recs[offset:end], nil
}

func rec(userID string, period rollupdom.Period, total int) rollupdom.Record {
	return rollupdom.Record{
		UserID: userID, Period: period, Total: total,
		FetchedAt: time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
	}
}

func TestSyncPublishesDurableTotals(t *testing.T) {
	cache := newMemCache()
	durable := &fakeDurable{records: map[string][]rollupdom.Record{
		"u1": {
			rec("u1", rollupdom.Period30d, 6),
			rec("u1", rollupdom.Period365d, 45),
		},
	}}
	svc := New(cache, durable, Config{})

	if err := svc.Sync(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}
	if got := cache.scores[rollupdom.Period30d]["u1"]; got != 6 {
		t.Fatalf("30d score = %d", got)
	}
	if got := cache.scores[rollupdom.Period365d]["u1"]; got != 45 {
		t.Fatalf("365d score = %d", got)
	}
	if !cache.users["u1"] {
		t.Fatal("sync must register the user in the known set")
	}
}

func TestSyncWithNoRecordsDropsUser(t *testing.T) {
	cache := newMemCache()
	_ = cache.Publish(context.Background(), "u1", map[rollupdom.Period]int{rollupdom.Period30d: 9})

	svc := New(cache, &fakeDurable{}, Config{})
	if err := svc.Sync(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := cache.scores[rollupdom.Period30d]["u1"]; ok {
		t.Fatal("user without durable rows must be dropped from the cache")
	}
}

func TestPageFromCacheRanksAndCursors(t *testing.T) {
	cache := newMemCache()
	ctx := context.Background()
	_ = cache.Publish(ctx, "u1", map[rollupdom.Period]int{rollupdom.Period30d: 50})
	_ = cache.Publish(ctx, "u2", map[rollupdom.Period]int{rollupdom.Period30d: 80})
	_ = cache.Publish(ctx, "u3", map[rollupdom.Period]int{rollupdom.Period30d: 30})

	svc := New(cache, &fakeDurable{}, Config{})

	page, err := svc.Page(ctx, rollupdom.Period30d, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if page.Source != domain.SourceCache {
		t.Fatalf("source = %q", page.Source)
	}
	if len(page.Entries) != 2 ||
		page.Entries[0].UserID != "u2" || page.Entries[0].Total != 80 || page.Entries[0].Rank != 1 ||
		page.Entries[1].UserID != "u1" || page.Entries[1].Total != 50 || page.Entries[1].Rank != 2 {
		t.Fatalf("entries = %+v", page.Entries)
	}
	if page.NextCursor == nil || *page.NextCursor != 2 {
		t.Fatalf("next cursor = %v", page.NextCursor)
	}

	page, err = svc.Page(ctx, rollupdom.Period30d, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Entries) != 1 || page.Entries[0].UserID != "u3" || page.Entries[0].Rank != 3 {
		t.Fatalf("entries = %+v", page.Entries)
	}
	if page.NextCursor != nil {
		t.Fatal("partial page must not advertise a next cursor")
	}
}

func TestPageFallsBackOnCacheError(t *testing.T) {
	cache := newMemCache()
	cache.rangeErr = perr.Unavailablef("redis down")
	durable := &fakeDurable{pages: map[rollupdom.Period][]rollupdom.Record{
		rollupdom.Period365d: {
			rec("u2", rollupdom.Period365d, 80),
			rec("u1", rollupdom.Period365d, 50),
		},
	}}
	svc := New(cache, durable, Config{})

	page, err := svc.Page(context.Background(), rollupdom.Period365d, 0, 10)
	if err != nil {
		t.Fatalf("cache errors must not surface: %v", err)
	}
	if page.Source != domain.SourceDurable {
		t.Fatalf("source = %q", page.Source)
	}
	if len(page.Entries) != 2 || page.Entries[0].UserID != "u2" || page.Entries[0].Rank != 1 {
		t.Fatalf("entries = %+v", page.Entries)
	}
}

func TestPageFallsBackOnEmptyCache(t *testing.T) {
	durable := &fakeDurable{pages: map[rollupdom.Period][]rollupdom.Record{
		rollupdom.Period30d: {rec("u1", rollupdom.Period30d, 5)},
	}}
	svc := New(newMemCache(), durable, Config{})

	page, err := svc.Page(context.Background(), rollupdom.Period30d, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.Source != domain.SourceDurable {
		t.Fatalf("source = %q", page.Source)
	}
}

func TestPageDurableErrorSurfaces(t *testing.T) {
	cache := newMemCache()
	durable := &fakeDurable{err: perr.DBf("pg down")}
	svc := New(cache, durable, Config{})

	if _, err := svc.Page(context.Background(), rollupdom.Period30d, 0, 10); err == nil {
		t.Fatal("durable read failure must surface when the cache is empty")
	}
}

func TestPageClampsLimit(t *testing.T) {
	cache := newMemCache()
	ctx := context.Background()
	for i := 0; i < 150; i++ {
		id := fmt.Sprintf("u%03d", i)
		_ = cache.Publish(ctx, id, map[rollupdom.Period]int{rollupdom.Period30d: i})
	}
	svc := New(cache, &fakeDurable{}, Config{})

	page, err := svc.Page(ctx, rollupdom.Period30d, 0, 500)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Entries) != HardLimit {
		t.Fatalf("entries = %d, want the hard limit", len(page.Entries))
	}
}

func TestPageUnknownPeriodRejected(t *testing.T) {
	svc := New(newMemCache(), &fakeDurable{}, Config{})
	_, err := svc.Page(context.Background(), "last_7d", 0, 10)
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("want invalid argument, got %v", err)
	}
}

func TestRemoveDropsFromCache(t *testing.T) {
	cache := newMemCache()
	ctx := context.Background()
	_ = cache.Publish(ctx, "u1", map[rollupdom.Period]int{rollupdom.Period30d: 9})

	svc := New(cache, &fakeDurable{}, Config{})
	if err := svc.Remove(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if cache.users["u1"] {
		t.Fatal("remove must drop the user")
	}
}
