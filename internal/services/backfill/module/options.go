package module

import (
	"time"

	"gitrank/internal/platform/config"
)

// Options holds configuration settings for the backfill module
type Options struct {
	WindowDays          int
	MaxCandidates       int
	Workers             int
	JitterMax           time.Duration
	ZeroSuccessCooldown time.Duration
	GithubToken         string
	GitlabToken         string
	GitlabBaseURL       string
}

// FromConfig reads configuration settings from the config.Conf
func FromConfig(cfg config.Conf) Options {
	bf := cfg.Prefix("CORE_BACKFILL_")
	return Options{
		WindowDays:          bf.MayInt("WINDOW_DAYS", 365),
		MaxCandidates:       bf.MayInt("MAX_CANDIDATES", 5000),
		Workers:             bf.MayInt("WORKERS", 4),
		JitterMax:           bf.MayDuration("JITTER_MAX", 500*time.Millisecond),
		ZeroSuccessCooldown: bf.MayDuration("ZERO_SUCCESS_COOLDOWN", 30*time.Second),
		GithubToken:         bf.MayString("GITHUB_TOKEN", ""),
		GitlabToken:         bf.MayString("GITLAB_TOKEN", ""),
		GitlabBaseURL:       bf.MayString("GITLAB_BASE_URL", ""),
	}
}
