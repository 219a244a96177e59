// Package repo provides candidate discovery and completion tracking for
// backfill runs, both over the keyval seam
package repo

import (
	"context"
	"fmt"
	"sort"

	"gitrank/internal/platform/store"
	"gitrank/internal/services/backfill/domain"
	lbrepo "gitrank/internal/services/leaderboard/repo"
)

// metaKey holds per-user display metadata written elsewhere; backfill
// only ever reads it
func metaKey(userID string) string { return "user:meta:" + userID }

// doneKey is the per-window-length completion set
func doneKey(windowDays int) string { return fmt.Sprintf("backfill:done:%d", windowDays) }

// Progress is the backfill repository
type Progress interface {
	Candidates(ctx context.Context, max int) ([]domain.Candidate, error)
	IsDone(ctx context.Context, windowDays int, userID string) (bool, error)
	MarkDone(ctx context.Context, windowDays int, userID string) error
}

type kv struct{ rd store.Keyval }

// New constructs the backfill repository
func New(rd store.Keyval) Progress { return &kv{rd: rd} }

// Candidates reads the global known-users set, caps it, and tags each id
// with its stored handles. Set order is undefined so ids are sorted first
// to keep runs deterministic
func (r *kv) Candidates(ctx context.Context, max int) ([]domain.Candidate, error) {
	ids, err := r.rd.SMembers(ctx, lbrepo.KeyUsers)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	if max > 0 && len(ids) > max {
		ids = ids[:max]
	}

	out := make([]domain.Candidate, 0, len(ids))
	for _, id := range ids {
		meta, err := r.rd.HGetAll(ctx, metaKey(id))
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Candidate{
			UserID:       id,
			GithubHandle: meta["github_handle"],
			GitlabHandle: meta["gitlab_handle"],
			AvatarURL:    meta["avatar_url"],
		})
	}
	return out, nil
}

// IsDone implements Progress
func (r *kv) IsDone(ctx context.Context, windowDays int, userID string) (bool, error) {
	return r.rd.SIsMember(ctx, doneKey(windowDays), userID)
}

// MarkDone implements Progress
func (r *kv) MarkDone(ctx context.Context, windowDays int, userID string) error {
	return r.rd.SAdd(ctx, doneKey(windowDays), userID)
}
