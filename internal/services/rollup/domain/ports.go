package domain

import (
	"context"

	"gitrank/internal/adapters/provider"
)

// GithubPort fetches pre-aggregated windowed totals for one handle
type GithubPort interface {
	FetchRollups(ctx context.Context, handle, token string) (provider.Rollups, provider.Telemetry, error)
}

// GitlabPort derives windowed totals from the event log of one handle.
// baseURL may be empty for the default instance
type GitlabPort interface {
	FetchRollups(ctx context.Context, baseURL, handle, token string) (provider.Rollups, provider.Telemetry, error)
}

// RefresherPort aggregates one user from the selected provider and
// upserts the durable rollup rows. It never touches the ranked cache
type RefresherPort interface {
	Refresh(ctx context.Context, userID string, creds Credentials) (RefreshResult, error)
}

// ReaderPort serves durable reads used by the leaderboard fallback path
type ReaderPort interface {
	RecordsForUser(ctx context.Context, userID string) ([]Record, error)
	PageByTotal(ctx context.Context, period Period, offset, limit int) ([]Record, error)
}
