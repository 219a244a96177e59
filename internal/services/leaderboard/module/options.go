package module

import "gitrank/internal/platform/config"

// Options holds configuration settings for the leaderboard module
type Options struct {
	DefaultLimit int
}

// FromConfig reads configuration settings from the config.Conf
func FromConfig(cfg config.Conf) Options {
	lf := cfg.Prefix("CORE_LEADERBOARD_")
	return Options{
		DefaultLimit: lf.MayInt("DEFAULT_LIMIT", 50),
	}
}
