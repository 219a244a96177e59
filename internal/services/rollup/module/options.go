package module

import (
	"time"

	"gitrank/internal/platform/config"
	"gitrank/internal/platform/lease"
)

// Options holds configuration settings for the rollup module
type Options struct {
	GithubURL      string
	GitlabURL      string
	HTTPTimeout    time.Duration
	GitlabMaxPages int
	LeaseTTL       time.Duration
}

// FromConfig reads configuration settings from the config.Conf
func FromConfig(cfg config.Conf) Options {
	rf := cfg.Prefix("CORE_ROLLUP_")
	return Options{
		GithubURL:      rf.MayString("GITHUB_URL", ""),
		GitlabURL:      rf.MayString("GITLAB_URL", ""),
		HTTPTimeout:    rf.MayDuration("HTTP_TIMEOUT", 10*time.Second),
		GitlabMaxPages: rf.MayInt("GITLAB_MAX_PAGES", 20),
		LeaseTTL:       rf.MayDuration("LEASE_TTL", lease.DefaultTTL),
	}
}
