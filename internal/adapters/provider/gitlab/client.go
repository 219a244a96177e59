// Package gitlab fetches windowed contribution totals from the GitLab REST
// API. GitLab has no pre-aggregated windowed endpoint, so the client walks
// the user's event log once for the full 365 day window and derives the 30
// day window locally from the same capture
package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"gitrank/internal/adapters/provider"
	perr "gitrank/internal/platform/errors"
	"gitrank/internal/platform/logger"
)

const (
	baseURLDefault = "https://gitlab.com"
	defaultTimeout = 10 * time.Second
	defaultUA      = "gitrank-refresh"

	// defaultMaxPages bounds worst-case work against pathological accounts
	defaultMaxPages = 20

	perPage = 100

	// retryAfterCeiling clamps upstream Retry-After hints
	retryAfterCeiling = 30 * time.Second

	day = 24 * time.Hour
)

// Options configures the Client
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	MaxPages  int
}

// Client is a minimal GitLab REST v4 client for contribution rollups
type Client struct {
	http  *http.Client
	opts  Options
	log   logger.Logger
	now   func() time.Time
	sleep func(time.Duration)
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
	if o.MaxPages <= 0 {
		o.MaxPages = defaultMaxPages
	}
	return &Client{
		http:  &http.Client{Timeout: o.Timeout},
		opts:  o,
		log:   *logger.Named("gitlab"),
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// FetchRollups resolves handle into windowed contribution totals.
// baseURL overrides the configured instance for self-hosted GitLab; empty
// means the client default. Only events on publicly visible projects
// count; visibility is resolved per project id and cached for the
// duration of one fetch
func (c *Client) FetchRollups(
	ctx context.Context,
	baseURL, handle, token string,
) (provider.Rollups, provider.Telemetry, error) {
	if token == "" {
		return provider.Rollups{}, provider.Telemetry{}, perr.Configf("gitlab token missing for %q", handle)
	}
	if handle == "" {
		return provider.Rollups{}, provider.Telemetry{}, perr.Configf("gitlab handle missing")
	}

	base := c.opts.BaseURL
	if baseURL != "" {
		base = baseURL
	}

	start := c.now()
	now := start.UTC()
	since365 := now.Add(-365 * day)

	userID, found, err := c.resolveUser(ctx, base, handle, token)
	if err != nil {
		return provider.Rollups{}, provider.Telemetry{}, err
	}
	if !found {
		c.log.Debug().Str("handle", handle).Msg("gitlab user not found; zero totals")
		return provider.Rollups{FetchedAt: now}, provider.Telemetry{Duration: c.now().Sub(start)}, nil
	}

	events, pages, err := c.fetchEvents(ctx, base, userID, token, since365)
	if err != nil {
		return provider.Rollups{}, provider.Telemetry{}, err
	}

	public, err := c.filterPublic(ctx, base, token, events)
	if err != nil {
		return provider.Rollups{}, provider.Telemetry{}, err
	}

	// The 30 day window is a timestamp filter over the already-fetched
	// 365 day event set, never a second upstream walk
	return provider.Rollups{
		Last365d:  CountSince(public, since365),
		Last30d:   CountSince(public, now.Add(-30*day)),
		FetchedAt: now,
	}, provider.Telemetry{Pages: pages, Duration: c.now().Sub(start)}, nil
}

// resolveUser maps a username to its numeric id. found=false when the
// handle does not exist
func (c *Client) resolveUser(ctx context.Context, base, handle, token string) (int64, bool, error) {
	path := fmt.Sprintf("/api/v4/users?username=%s", handle)
	raw, err := c.get(ctx, base, path, token)
	if err != nil {
		return 0, false, err
	}
	var users []struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(raw, &users); err != nil {
		return 0, false, perr.Wrap(err, perr.ErrorCodeUpstream, "gitlab decode users")
	}
	if len(users) == 0 {
		return 0, false, nil
	}
	return users[0].ID, true, nil
}

// fetchEvents pages the user's event log backwards from now until a page
// trails off before the lower bound, comes back empty, or the page
// ceiling is reached
func (c *Client) fetchEvents(ctx context.Context, base string, userID int64, token string, since time.Time) ([]Event, int, error) {
	var out []Event
	after := since.Add(-day).Format("2006-01-02")

	pages := 0
	for page := 1; page <= c.opts.MaxPages; page++ {
		path := fmt.Sprintf(
			"/api/v4/users/%d/events?after=%s&per_page=%d&page=%d&sort=desc",
			userID, after, perPage, page,
		)
		raw, err := c.get(ctx, base, path, token)
		if err != nil {
			return nil, pages, err
		}
		pages++

		var batch []Event
		if err := json.Unmarshal(raw, &batch); err != nil {
			return nil, pages, perr.Wrap(err, perr.ErrorCodeUpstream, "gitlab decode events")
		}
		if len(batch) == 0 {
			break
		}

		stale := true
		for _, ev := range batch {
			if ev.CreatedAt.Before(since) {
				continue
			}
			stale = false
			out = append(out, ev)
		}
		// a full page older than the window means the walk is done
		if stale {
			break
		}
		if len(batch) < perPage {
			break
		}
	}
	return out, pages, nil
}

// filterPublic drops events whose project is not publicly visible.
// Visibility lookups are cached per fetch; events without a resolvable
// project id are discarded since they cannot be safely attributed as public
func (c *Client) filterPublic(ctx context.Context, base, token string, events []Event) ([]Event, error) {
	seen := map[int64]bool{}
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if ev.ProjectID == 0 {
			continue
		}
		public, ok := seen[ev.ProjectID]
		if !ok {
			var err error
			public, err = c.projectPublic(ctx, base, ev.ProjectID, token)
			if err != nil {
				return nil, err
			}
			seen[ev.ProjectID] = public
		}
		if public {
			out = append(out, ev)
		}
	}
	return out, nil
}

// projectPublic reports whether a project id resolves to a public project.
// Missing or inaccessible projects count as not public
func (c *Client) projectPublic(ctx context.Context, base string, id int64, token string) (bool, error) {
	path := fmt.Sprintf("/api/v4/projects/%d", id)
	raw, err := c.get(ctx, base, path, token)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return false, nil
		}
		return false, err
	}
	var proj struct {
		Visibility string `json:"visibility"`
	}
	if err := json.Unmarshal(raw, &proj); err != nil {
		return false, perr.Wrap(err, perr.ErrorCodeUpstream, "gitlab decode project")
	}
	return proj.Visibility == "public", nil
}

// get issues one GET with auth, honoring a single bounded Retry-After wait
// on 429 before one retry
func (c *Client) get(ctx context.Context, base, path, token string) ([]byte, error) {
	retried := false
	for {
		url := base + path
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "gitlab new request")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("PRIVATE-TOKEN", token)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "gitlab request failed: %s", url)
		}
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, perr.Wrapf(readErr, perr.ErrorCodeUpstream, "gitlab read body: %s", url)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return raw, nil
		case resp.StatusCode == http.StatusNotFound:
			return nil, perr.NotFoundf("gitlab not found: %s", url)
		case resp.StatusCode == http.StatusTooManyRequests && !retried:
			wait := retryAfterWait(resp.Header.Get("Retry-After"))
			c.log.Warn().Dur("sleep", wait).Str("url", url).Msg("gitlab rate limited backing off")
			c.sleep(wait)
			retried = true
			continue
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, perr.RateLimitedf("gitlab rate limited: %s", url)
		case resp.StatusCode == http.StatusForbidden:
			return nil, perr.Forbiddenf("gitlab forbidden: %s", url)
		default:
			return nil, perr.Upstreamf("gitlab status %d: %s", resp.StatusCode, url)
		}
	}
}

// retryAfterWait parses a Retry-After seconds hint clamped to the ceiling
func retryAfterWait(h string) time.Duration {
	wait := 2 * time.Second
	if h != "" {
		if s, err := strconv.Atoi(h); err == nil && s > 0 {
			wait = time.Duration(s) * time.Second
		}
	}
	if wait > retryAfterCeiling {
		wait = retryAfterCeiling
	}
	return wait
}
