package service

import (
	"context"

	"gitrank/internal/platform/lease"
	"gitrank/internal/services/rollup/domain"
)

// Syncer mirrors the leaderboard sync surface the pipeline drives after a
// successful aggregate. Declared here so the rollup layer does not import
// the leaderboard package
type Syncer interface {
	Sync(ctx context.Context, userID string) error
	Remove(ctx context.Context, userID string) error
}

// Pipeline serializes refreshes per (provider, user) and keeps the ranked
// cache in step with the durable rows. Aggregation never writes the cache
// itself; the pipeline is the only composition point
type Pipeline struct {
	locks     *lease.Manager
	refresher domain.RefresherPort
	sync      Syncer
}

// NewPipeline constructs a refresh pipeline
func NewPipeline(locks *lease.Manager, r domain.RefresherPort, s Syncer) *Pipeline {
	return &Pipeline{locks: locks, refresher: r, sync: s}
}

// RefreshAndSync runs one locked single-provider refresh then a cache sync.
// Provider selection follows Refresh: github wins when both pairs are
// usable. A held lease surfaces as a conflict to the caller
func (p *Pipeline) RefreshAndSync(ctx context.Context, userID string, creds domain.Credentials) (domain.RefreshResult, error) {
	selected := selectProvider(creds)
	if selected == domain.ProviderNone {
		return p.refresher.Refresh(ctx, userID, creds)
	}

	var res domain.RefreshResult
	err := p.locks.WithLock(ctx, lease.Key(string(selected), userID), func(ctx context.Context) error {
		var err error
		res, err = p.refresher.Refresh(ctx, userID, creds)
		return err
	})
	if err != nil {
		return domain.RefreshResult{}, err
	}
	if err := p.sync.Sync(ctx, userID); err != nil {
		return domain.RefreshResult{}, err
	}
	return res, nil
}

// RefreshBoth refreshes both providers for one user under a dual lease
// held in fixed order. The gitlab leg runs last so its rows win, which is
// the explicit opposite of single-refresh precedence; callers opt into it
func (p *Pipeline) RefreshBoth(ctx context.Context, userID string, creds domain.Credentials) (domain.RefreshResult, error) {
	if !creds.GithubUsable() || !creds.GitlabUsable() {
		return p.RefreshAndSync(ctx, userID, creds)
	}

	var last domain.RefreshResult
	err := p.locks.WithPair(ctx,
		lease.Key(string(domain.ProviderGitHub), userID),
		lease.Key(string(domain.ProviderGitLab), userID),
		func(ctx context.Context) error {
			if _, err := p.refresher.Refresh(ctx, userID, creds.GithubOnly()); err != nil {
				return err
			}
			var err error
			last, err = p.refresher.Refresh(ctx, userID, creds.GitlabOnly())
			return err
		})
	if err != nil {
		return domain.RefreshResult{}, err
	}
	if err := p.sync.Sync(ctx, userID); err != nil {
		return domain.RefreshResult{}, err
	}
	return last, nil
}

func selectProvider(creds domain.Credentials) domain.Provider {
	switch {
	case creds.GithubUsable():
		return domain.ProviderGitHub
	case creds.GitlabUsable():
		return domain.ProviderGitLab
	default:
		return domain.ProviderNone
	}
}
