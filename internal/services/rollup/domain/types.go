// Package domain defines the types and interfaces for the rollup service
package domain

import "time"

// Period tags one fixed trailing window
type Period string

const (
	// Period30d is the trailing 30 day window
	Period30d Period = "last_30d"

	// Period365d is the trailing 365 day window
	Period365d Period = "last_365d"

	// PeriodAllTime is reserved; neither provider produces it today but
	// the leaderboard reader accepts it
	PeriodAllTime Period = "all_time"
)

// FetchPeriods lists the windows every successful refresh writes
func FetchPeriods() []Period { return []Period{Period30d, Period365d} }

// KnownPeriods lists every period tag the read path accepts
func KnownPeriods() []Period { return []Period{Period30d, Period365d, PeriodAllTime} }

// ValidPeriod reports whether p is a known period tag
func ValidPeriod(p Period) bool {
	for _, k := range KnownPeriods() {
		if p == k {
			return true
		}
	}
	return false
}

// Provider names one upstream source
type Provider string

const (
	// ProviderGitHub is the github.com GraphQL source
	ProviderGitHub Provider = "github"

	// ProviderGitLab is the GitLab REST source
	ProviderGitLab Provider = "gitlab"

	// ProviderNone means no usable handle+token pair was supplied
	ProviderNone Provider = ""
)

// Record is one durable rollup row keyed by (UserID, Period).
// Total is always recomputed as Commits+PRs+Issues at write time
type Record struct {
	UserID    string
	Period    Period
	Commits   int
	PRs       int
	Issues    int
	Total     int
	FetchedAt time.Time
	UpdatedAt time.Time
}

// Credentials carry the caller-supplied provider identities for one refresh.
// Zero-or-one handle per provider; GitlabBaseURL overrides the instance for
// self-hosted deployments
type Credentials struct {
	GithubHandle  string
	GithubToken   string
	GitlabHandle  string
	GitlabToken   string
	GitlabBaseURL string
}

// GithubUsable reports whether the github pair can be used
func (c Credentials) GithubUsable() bool { return c.GithubHandle != "" && c.GithubToken != "" }

// GitlabUsable reports whether the gitlab pair can be used
func (c Credentials) GitlabUsable() bool { return c.GitlabHandle != "" && c.GitlabToken != "" }

// GithubOnly strips the credentials down to the github leg
func (c Credentials) GithubOnly() Credentials {
	return Credentials{GithubHandle: c.GithubHandle, GithubToken: c.GithubToken}
}

// GitlabOnly strips the credentials down to the gitlab leg
func (c Credentials) GitlabOnly() Credentials {
	return Credentials{GitlabHandle: c.GitlabHandle, GitlabToken: c.GitlabToken, GitlabBaseURL: c.GitlabBaseURL}
}

// RefreshResult reports which provider was used and which windows were written
type RefreshResult struct {
	Provider Provider
	Periods  []Period
}
