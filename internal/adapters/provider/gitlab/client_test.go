package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	perr "gitrank/internal/platform/errors"
	"gitrank/internal/platform/retry"
)

// glFixture is a scripted GitLab API for one user with paged events and
// per-project visibility
type glFixture struct {
	userID     int64
	pages      [][]Event
	visibility map[int64]string
}

func (f *glFixture) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Helper()
		switch {
		case r.URL.Path == "/api/v4/users":
			if r.URL.Query().Get("username") == "ghost" {
				_, _ = w.Write([]byte(`[]`))
				return
			}
			_ = json.NewEncoder(w).Encode([]map[string]any{{"id": f.userID}})

		case r.URL.Path == fmt.Sprintf("/api/v4/users/%d/events", f.userID):
			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			if page < 1 || page > len(f.pages) {
				_, _ = w.Write([]byte(`[]`))
				return
			}
			_ = json.NewEncoder(w).Encode(f.pages[page-1])

		default:
			var projID int64
			if _, err := fmt.Sscanf(r.URL.Path, "/api/v4/projects/%d", &projID); err == nil {
				vis, ok := f.visibility[projID]
				if !ok {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				_ = json.NewEncoder(w).Encode(map[string]any{"visibility": vis})
				return
			}
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func push(at time.Time, project int64, commits int) Event {
	return Event{
		CreatedAt:  at,
		ActionName: "pushed to",
		ProjectID:  project,
		PushData:   &PushData{CommitCount: commits},
	}
}

func opened(at time.Time, project int64, target string) Event {
	return Event{CreatedAt: at, ActionName: "opened", TargetType: target, ProjectID: project}
}

func newTestClient(srv *httptest.Server) *Client {
	c := NewClient(Options{BaseURL: srv.URL, Timeout: 2 * time.Second})
	c.sleep = func(time.Duration) {}
	return c
}

func TestFetchRollupsCountsAndDerives30d(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-10 * day)  // inside both windows
	old := now.Add(-100 * day)    // inside 365d only
	ancient := now.Add(-400 * day) // outside both

	fx := &glFixture{
		userID: 7,
		pages: [][]Event{{
			push(recent, 1, 5),
			opened(recent, 1, "MergeRequest"),
			opened(old, 1, "Issue"),
			push(old, 1, 3),
			push(ancient, 1, 9), // must be excluded by the window filter
		}},
		visibility: map[int64]string{1: "public"},
	}
	srv := httptest.NewServer(fx.handler(t))
	defer srv.Close()

	c := newTestClient(srv)
	c.now = func() time.Time { return now }

	rollups, tel, err := c.FetchRollups(context.Background(), "", "alice", "tkn")
	if err != nil {
		t.Fatal(err)
	}

	if rollups.Last365d.Commits != 8 || rollups.Last365d.PRs != 1 || rollups.Last365d.Issues != 1 {
		t.Fatalf("last365d = %+v", rollups.Last365d)
	}
	// 30d is a strict subset of the same capture
	if rollups.Last30d.Commits != 5 || rollups.Last30d.PRs != 1 || rollups.Last30d.Issues != 0 {
		t.Fatalf("last30d = %+v", rollups.Last30d)
	}
	if tel.Pages != 1 {
		t.Fatalf("pages = %d", tel.Pages)
	}
}

func TestFetchRollupsFiltersPrivateProjects(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	at := now.Add(-5 * day)

	fx := &glFixture{
		userID: 7,
		pages: [][]Event{{
			push(at, 1, 4), // public
			push(at, 2, 6), // private
			push(at, 3, 2), // missing project, dropped
		}},
		visibility: map[int64]string{1: "public", 2: "private"},
	}
	srv := httptest.NewServer(fx.handler(t))
	defer srv.Close()

	c := newTestClient(srv)
	c.now = func() time.Time { return now }

	rollups, _, err := c.FetchRollups(context.Background(), "", "alice", "tkn")
	if err != nil {
		t.Fatal(err)
	}
	if rollups.Last365d.Commits != 4 {
		t.Fatalf("want only public commits counted, got %+v", rollups.Last365d)
	}
}

func TestFetchRollupsPaginatesUntilShortPage(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	full := make([]Event, perPage)
	for i := range full {
		full[i] = push(now.Add(-time.Duration(i+1)*time.Hour), 1, 1)
	}
	short := []Event{push(now.Add(-20*day), 1, 1)}

	fx := &glFixture{
		userID:     7,
		pages:      [][]Event{full, short},
		visibility: map[int64]string{1: "public"},
	}
	srv := httptest.NewServer(fx.handler(t))
	defer srv.Close()

	c := newTestClient(srv)
	c.now = func() time.Time { return now }

	rollups, tel, err := c.FetchRollups(context.Background(), "", "alice", "tkn")
	if err != nil {
		t.Fatal(err)
	}
	if tel.Pages != 2 {
		t.Fatalf("pages = %d, want the walk to stop after the short page", tel.Pages)
	}
	if rollups.Last365d.Commits != perPage+1 {
		t.Fatalf("commits = %d", rollups.Last365d.Commits)
	}
}

func TestFetchRollupsUnknownHandleYieldsZeroTotals(t *testing.T) {
	fx := &glFixture{userID: 7}
	srv := httptest.NewServer(fx.handler(t))
	defer srv.Close()

	c := newTestClient(srv)
	rollups, _, err := c.FetchRollups(context.Background(), "", "ghost", "tkn")
	if err != nil {
		t.Fatalf("unknown handle must not be an error: %v", err)
	}
	if rollups.Last30d.Commits != 0 || rollups.Last365d.Commits != 0 {
		t.Fatalf("want zero totals, got %+v", rollups)
	}
}

func TestFetchRollupsMissingTokenIsConfigError(t *testing.T) {
	c := NewClient(Options{})
	_, _, err := c.FetchRollups(context.Background(), "", "alice", "")
	if !perr.IsCode(err, perr.ErrorCodeConfig) {
		t.Fatalf("want config error, got %v", err)
	}
}

func TestGetRetriesOnceOn429(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "120")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	var slept time.Duration
	c.sleep = func(d time.Duration) { slept = d }

	raw, err := c.get(context.Background(), srv.URL, "/api/v4/users?username=x", "tkn")
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `[]` {
		t.Fatalf("body = %s", raw)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want exactly one retry", calls)
	}
	if slept != retryAfterCeiling {
		t.Fatalf("slept %v, want the Retry-After hint clamped to %v", slept, retryAfterCeiling)
	}
}

func TestGetSecond429SurfacesRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.get(context.Background(), srv.URL, "/api/v4/users?username=x", "tkn")
	if !perr.IsCode(err, perr.ErrorCodeTooManyRequests) {
		t.Fatalf("want rate limited, got %v", err)
	}
}

func TestGet403SurfacesForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.get(context.Background(), srv.URL, "/api/v4/users?username=x", "tkn")
	if !perr.IsCode(err, perr.ErrorCodeForbidden) {
		t.Fatalf("want forbidden, got %v", err)
	}
	if got := retry.Classify(err); got != retry.ClassRateLimited {
		t.Fatalf("Classify = %v, want ClassRateLimited", got)
	}
}

func TestRetryAfterWait(t *testing.T) {
	if got := retryAfterWait(""); got != 2*time.Second {
		t.Fatalf("default wait = %v", got)
	}
	if got := retryAfterWait("5"); got != 5*time.Second {
		t.Fatalf("hinted wait = %v", got)
	}
	if got := retryAfterWait("600"); got != retryAfterCeiling {
		t.Fatalf("clamped wait = %v", got)
	}
}

func TestCountSinceWindowProperty(t *testing.T) {
	now := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	events := []Event{
		push(now.Add(-1*day), 1, 2),
		push(now.Add(-40*day), 1, 3),
		opened(now.Add(-40*day), 1, "Issue"),
	}

	c365 := CountSince(events, now.Add(-365*day))
	c30 := CountSince(events, now.Add(-30*day))

	// the shorter window can never exceed the longer one
	if c30.Commits > c365.Commits || c30.PRs > c365.PRs || c30.Issues > c365.Issues {
		t.Fatalf("30d %+v exceeds 365d %+v", c30, c365)
	}
	if c365.Commits != 5 || c365.Issues != 1 {
		t.Fatalf("c365 = %+v", c365)
	}
	if c30.Commits != 2 || c30.Issues != 0 {
		t.Fatalf("c30 = %+v", c30)
	}
}
