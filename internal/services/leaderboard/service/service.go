// Package service provides the leaderboard sync and read implementation
package service

import (
	"context"

	perr "gitrank/internal/platform/errors"
	"gitrank/internal/platform/logger"
	"gitrank/internal/services/leaderboard/domain"
	"gitrank/internal/services/leaderboard/repo"
	rollupdom "gitrank/internal/services/rollup/domain"
)

// HardLimit caps one leaderboard page
const HardLimit = 100

// Config for the leaderboard service
type Config struct {
	// DefaultLimit applies when a caller asks for no or a non-positive limit
	DefaultLimit int
}

// Service implements domain.SyncPort and domain.ReadPort
type Service struct {
	cache   repo.Cache
	durable rollupdom.ReaderPort
	cfg     Config
	log     logger.Logger
}

// New constructs a new leaderboard service
func New(cache repo.Cache, durable rollupdom.ReaderPort, cfg Config) *Service {
	if cfg.DefaultLimit <= 0 || cfg.DefaultLimit > HardLimit {
		cfg.DefaultLimit = 50
	}
	return &Service{
		cache:   cache,
		durable: durable,
		cfg:     cfg,
		log:     *logger.Named("leaderboard"),
	}
}

// Sync projects the user's durable rollups into the ranked cache. The
// durable rows are the source of truth; a user with no rows is dropped
// from the cache instead of lingering with stale scores
func (s *Service) Sync(ctx context.Context, userID string) error {
	if userID == "" {
		return perr.InvalidArgf("user id required")
	}
	recs, err := s.durable.RecordsForUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return s.cache.Drop(ctx, userID)
	}
	totals := make(map[rollupdom.Period]int, len(recs))
	for _, rec := range recs {
		totals[rec.Period] = rec.Total
	}
	if err := s.cache.Publish(ctx, userID, totals); err != nil {
		return err
	}
	s.log.Debug().Str("user_id", userID).Int("periods", len(totals)).Msg("leaderboard synced")
	return nil
}

// Remove drops the user from every ranked set
func (s *Service) Remove(ctx context.Context, userID string) error {
	if userID == "" {
		return perr.InvalidArgf("user id required")
	}
	return s.cache.Drop(ctx, userID)
}

// Page serves one ranked page. The cache is tried first; an empty or
// erroring cache read falls back to the durable store and tags the page
// source so callers can observe degraded reads. Read errors on the cache
// tier never surface to the caller
func (s *Service) Page(ctx context.Context, period rollupdom.Period, cursor, limit int) (domain.Page, error) {
	if !rollupdom.ValidPeriod(period) {
		return domain.Page{}, perr.InvalidArgf("unknown period %q", period)
	}
	if cursor < 0 {
		cursor = 0
	}
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > HardLimit {
		limit = HardLimit
	}

	members, err := s.cache.Range(ctx, period, int64(cursor), int64(cursor+limit-1))
	if err != nil {
		s.log.Warn().Err(err).Str("period", string(period)).Msg("cache range failed falling back")
	}
	if err == nil && len(members) > 0 {
		entries := make([]domain.Entry, 0, len(members))
		for i, m := range members {
			entries = append(entries, domain.Entry{
				Rank:   cursor + i + 1,
				UserID: m.Member,
				Total:  int(m.Score),
			})
		}
		return page(period, entries, cursor, limit, domain.SourceCache), nil
	}

	recs, err := s.durable.PageByTotal(ctx, period, cursor, limit)
	if err != nil {
		return domain.Page{}, err
	}
	entries := make([]domain.Entry, 0, len(recs))
	for i, rec := range recs {
		entries = append(entries, domain.Entry{
			Rank:   cursor + i + 1,
			UserID: rec.UserID,
			Total:  rec.Total,
		})
	}
	return page(period, entries, cursor, limit, domain.SourceDurable), nil
}

func page(period rollupdom.Period, entries []domain.Entry, cursor, limit int, source string) domain.Page {
	out := domain.Page{Period: period, Entries: entries, Source: source}
	if len(entries) == limit {
		next := cursor + limit
		out.NextCursor = &next
	}
	return out
}
