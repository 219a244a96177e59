// Package repo provides the durable rollup repository implementation
package repo

import (
	"context"

	"gitrank/internal/modkit/repokit"
	perr "gitrank/internal/platform/errors"
	"gitrank/internal/services/rollup/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Storage defines the durable rollup repository
type Storage interface {
	UpsertRecord(ctx context.Context, rec domain.Record) error
	RecordsForUser(ctx context.Context, userID string) ([]domain.Record, error)
	PageByTotal(ctx context.Context, period domain.Period, offset, limit int) ([]domain.Record, error)
	DeleteUser(ctx context.Context, userID string) error
}

// UpsertRecord implements Storage. The row key is (user_id, period); a
// repeated refresh fully replaces the previous window, it never
// accumulates. Total is recomputed here so callers cannot drift it
func (s *pg) UpsertRecord(ctx context.Context, rec domain.Record) error {
	total := rec.Commits + rec.PRs + rec.Issues
	_, err := s.q.Exec(ctx, `
		INSERT INTO user_rollups
			(user_id, period, commits, prs, issues, total, fetched_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (user_id, period) DO UPDATE SET
			commits    = EXCLUDED.commits,
			prs        = EXCLUDED.prs,
			issues     = EXCLUDED.issues,
			total      = EXCLUDED.total,
			fetched_at = EXCLUDED.fetched_at,
			updated_at = now()
	`, rec.UserID, string(rec.Period), rec.Commits, rec.PRs, rec.Issues, total, rec.FetchedAt)
	if err != nil {
		return perr.FromPostgres(err, "upsert rollup")
	}
	return nil
}

// RecordsForUser implements Storage
func (s *pg) RecordsForUser(ctx context.Context, userID string) ([]domain.Record, error) {
	rows, err := s.q.Query(ctx, `
		SELECT user_id, period, commits, prs, issues, total, fetched_at, updated_at
		FROM user_rollups
		WHERE user_id = $1
		ORDER BY period ASC
	`, userID)
	if err != nil {
		return nil, perr.FromPostgres(err, "read user rollups")
	}
	defer rows.Close()
	return scanRecords(rows)
}

// PageByTotal implements Storage. Ordering is total descending with
// user_id ascending as the deterministic tiebreak, matching the ranked
// cache so the fallback page reads the same as the cached one
func (s *pg) PageByTotal(ctx context.Context, period domain.Period, offset, limit int) ([]domain.Record, error) {
	rows, err := s.q.Query(ctx, `
		SELECT user_id, period, commits, prs, issues, total, fetched_at, updated_at
		FROM user_rollups
		WHERE period = $1
		ORDER BY total DESC, user_id ASC
		OFFSET $2 LIMIT $3
	`, string(period), offset, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "page rollups")
	}
	defer rows.Close()
	return scanRecords(rows)
}

// DeleteUser implements Storage. Deleting an unknown user is a no-op
func (s *pg) DeleteUser(ctx context.Context, userID string) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM user_rollups WHERE user_id = $1`, userID); err != nil {
		return perr.FromPostgres(err, "delete user rollups")
	}
	return nil
}

func scanRecords(rows repokit.Rows) ([]domain.Record, error) {
	var out []domain.Record
	for rows.Next() {
		var (
			rec    domain.Record
			period string
		)
		if err := rows.Scan(
			&rec.UserID, &period, &rec.Commits, &rec.PRs, &rec.Issues,
			&rec.Total, &rec.FetchedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, perr.FromPostgres(err, "scan rollup row")
		}
		rec.Period = domain.Period(period)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, perr.FromPostgres(err, "iterate rollup rows")
	}
	return out, nil
}
