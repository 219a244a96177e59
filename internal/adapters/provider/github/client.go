// Package github fetches windowed contribution totals from the GitHub
// GraphQL API. One query carries both trailing windows so a refresh costs a
// single upstream call
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"gitrank/internal/adapters/provider"
	perr "gitrank/internal/platform/errors"
	"gitrank/internal/platform/logger"
)

const (
	baseURLDefault = "https://api.github.com/graphql"
	defaultTimeout = 10 * time.Second
	defaultUA      = "gitrank-refresh"

	day = 24 * time.Hour
)

// Options configures the Client
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Client is a minimal GitHub GraphQL client for contribution rollups
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger
	now  func() time.Time
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return &Client{
		http: &http.Client{Timeout: o.Timeout},
		opts: o,
		log:  *logger.Named("github"),
		now:  time.Now,
	}
}

// rollupQuery asks for both windows plus rate limit telemetry in one shot.
// contributionsCollection returns pre-aggregated counts, so no local
// counting happens for GitHub
const rollupQuery = `
query($login: String!, $from30: DateTime!, $from365: DateTime!, $to: DateTime!) {
  rateLimit { cost remaining resetAt }
  user(login: $login) {
    last30d: contributionsCollection(from: $from30, to: $to) {
      totalCommitContributions
      totalPullRequestContributions
      totalIssueContributions
    }
    last365d: contributionsCollection(from: $from365, to: $to) {
      totalCommitContributions
      totalPullRequestContributions
      totalIssueContributions
    }
  }
}`

// FetchRollups resolves handle into windowed contribution totals.
// A missing token fails fast with a config error; an unknown handle yields
// explicit zero totals, not an error
func (c *Client) FetchRollups(
	ctx context.Context,
	handle, token string,
) (provider.Rollups, provider.Telemetry, error) {
	if token == "" {
		return provider.Rollups{}, provider.Telemetry{}, perr.Configf("github token missing for %q", handle)
	}
	if handle == "" {
		return provider.Rollups{}, provider.Telemetry{}, perr.Configf("github handle missing")
	}

	now := c.now().UTC()
	body, err := json.Marshal(gqlRequest{
		Query: rollupQuery,
		Variables: map[string]any{
			"login":   handle,
			"from30":  now.Add(-30 * day).Format(time.RFC3339),
			"from365": now.Add(-365 * day).Format(time.RFC3339),
			"to":      now.Format(time.RFC3339),
		},
	})
	if err != nil {
		return provider.Rollups{}, provider.Telemetry{}, perr.Wrap(err, perr.ErrorCodeUnknown, "github marshal query")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL, bytes.NewReader(body))
	if err != nil {
		return provider.Rollups{}, provider.Telemetry{}, perr.Wrap(err, perr.ErrorCodeUnknown, "github new request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "bearer "+token)

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return provider.Rollups{}, provider.Telemetry{}, perr.Wrap(err, perr.ErrorCodeUnavailable, "github request failed")
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error().Err(cerr).Msg("github close body failed")
		}
	}()
	elapsed := c.now().Sub(start)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return provider.Rollups{}, provider.Telemetry{}, perr.Wrap(err, perr.ErrorCodeUpstream, "github read body")
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return provider.Rollups{}, provider.Telemetry{}, perr.RateLimitedf("github rate limited: %s", excerpt(raw))
	}
	// secondary rate limits arrive as 403, not 429
	if resp.StatusCode == http.StatusForbidden {
		return provider.Rollups{}, provider.Telemetry{}, perr.Forbiddenf("github forbidden: %s", excerpt(raw))
	}
	if resp.StatusCode != http.StatusOK {
		return provider.Rollups{}, provider.Telemetry{},
			perr.Upstreamf("github status %d: %s", resp.StatusCode, excerpt(raw))
	}

	var out gqlResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return provider.Rollups{}, provider.Telemetry{}, perr.Wrap(err, perr.ErrorCodeUpstream, "github decode response")
	}

	tel := provider.Telemetry{Duration: elapsed}
	if rl := out.Data.RateLimit; rl != nil {
		tel.Cost = rl.Cost
		tel.Remaining = rl.Remaining
		if t, err := time.Parse(time.RFC3339, rl.ResetAt); err == nil {
			tel.ResetAt = t
		}
	}

	// GraphQL reports an unknown login as a NOT_FOUND error with a null
	// user; that is a zero result, not a failure
	if out.Data.User == nil {
		if err := out.firstNonNotFound(); err != nil {
			return provider.Rollups{}, tel, err
		}
		c.log.Debug().Str("handle", handle).Msg("github login not found; zero totals")
		return provider.Rollups{FetchedAt: now}, tel, nil
	}
	if err := out.firstNonNotFound(); err != nil {
		return provider.Rollups{}, tel, err
	}

	return provider.Rollups{
		Last30d:   out.Data.User.Last30d.counts(),
		Last365d:  out.Data.User.Last365d.counts(),
		FetchedAt: now,
	}, tel, nil
}

func excerpt(b []byte) string {
	const maxLen = 2048
	if len(b) > maxLen {
		b = b[:maxLen]
	}
	return string(b)
}
