// Package service provides the rollup refresh and read implementation
package service

import (
	"context"

	"gitrank/internal/adapters/provider"
	"gitrank/internal/modkit/repokit"
	perr "gitrank/internal/platform/errors"
	"gitrank/internal/platform/logger"
	"gitrank/internal/platform/store"
	"gitrank/internal/services/rollup/domain"
	"gitrank/internal/services/rollup/repo"
)

// auditTable receives one best-effort row per provider fetch
const auditTable = "fetch_audit"

// Config for the rollup service
type Config struct {
	// AuditSink receives fetch telemetry when non-nil. Failures are
	// logged and never fail the refresh
	AuditSink store.Clickhouse
}

// Service implements domain.RefresherPort and domain.ReaderPort
type Service struct {
	db     repokit.TxRunner
	binder repokit.Binder[repo.Storage]
	github domain.GithubPort
	gitlab domain.GitlabPort
	cfg    Config
	log    logger.Logger
}

// New constructs a new rollup service
func New(
	db repokit.TxRunner,
	binder repokit.Binder[repo.Storage],
	gh domain.GithubPort,
	gl domain.GitlabPort,
	cfg Config,
) *Service {
	return &Service{
		db:     db,
		binder: binder,
		github: gh,
		gitlab: gl,
		cfg:    cfg,
		log:    *logger.Named("rollup"),
	}
}

// Refresh implements domain.RefresherPort. Exactly one provider is
// consulted per call: github when its pair is usable, otherwise gitlab,
// otherwise the call is a successful no-op. Both windows are written in
// one transaction so readers never observe a half-refreshed user
func (s *Service) Refresh(ctx context.Context, userID string, creds domain.Credentials) (domain.RefreshResult, error) {
	if userID == "" {
		return domain.RefreshResult{}, perr.InvalidArgf("user id required")
	}

	var (
		rollups  provider.Rollups
		tel      provider.Telemetry
		selected domain.Provider
		err      error
	)
	switch {
	case creds.GithubUsable():
		selected = domain.ProviderGitHub
		rollups, tel, err = s.github.FetchRollups(ctx, creds.GithubHandle, creds.GithubToken)
	case creds.GitlabUsable():
		selected = domain.ProviderGitLab
		rollups, tel, err = s.gitlab.FetchRollups(ctx, creds.GitlabBaseURL, creds.GitlabHandle, creds.GitlabToken)
	default:
		s.log.Debug().Str("user_id", userID).Msg("refresh skipped no usable provider")
		return domain.RefreshResult{Provider: domain.ProviderNone}, nil
	}

	s.audit(ctx, userID, selected, tel, err)
	if err != nil {
		return domain.RefreshResult{}, perr.WithOp(err, "rollup.refresh")
	}

	recs := []domain.Record{
		{UserID: userID, Period: domain.Period30d, FetchedAt: rollups.FetchedAt,
			Commits: rollups.Last30d.Commits, PRs: rollups.Last30d.PRs, Issues: rollups.Last30d.Issues},
		{UserID: userID, Period: domain.Period365d, FetchedAt: rollups.FetchedAt,
			Commits: rollups.Last365d.Commits, PRs: rollups.Last365d.PRs, Issues: rollups.Last365d.Issues},
	}
	err = repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
		st := s.binder.Bind(q)
		for _, rec := range recs {
			if err := st.UpsertRecord(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.RefreshResult{}, err
	}

	s.log.Info().
		Str("user_id", userID).
		Str("provider", string(selected)).
		Int("commits_365d", rollups.Last365d.Commits).
		Msg("rollups refreshed")
	return domain.RefreshResult{Provider: selected, Periods: domain.FetchPeriods()}, nil
}

// RecordsForUser implements domain.ReaderPort
func (s *Service) RecordsForUser(ctx context.Context, userID string) ([]domain.Record, error) {
	return s.binder.Bind(s.db).RecordsForUser(ctx, userID)
}

// PageByTotal implements domain.ReaderPort
func (s *Service) PageByTotal(ctx context.Context, period domain.Period, offset, limit int) ([]domain.Record, error) {
	return s.binder.Bind(s.db).PageByTotal(ctx, period, offset, limit)
}

// DeleteUser removes every durable row for one user
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	return s.binder.Bind(s.db).DeleteUser(ctx, userID)
}

// audit writes one telemetry row to the analytics sink when configured
func (s *Service) audit(ctx context.Context, userID string, p domain.Provider, tel provider.Telemetry, fetchErr error) {
	if s.cfg.AuditSink == nil {
		return
	}
	outcome := "ok"
	if fetchErr != nil {
		outcome = perr.CodeOf(fetchErr).String()
	}
	row := []any{
		userID, string(p), outcome,
		int32(tel.Cost), int32(tel.Remaining), int32(tel.Pages),
		tel.Duration.Milliseconds(),
	}
	if err := s.cfg.AuditSink.Insert(ctx, auditTable, [][]any{row}); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("fetch audit insert failed")
	}
}
