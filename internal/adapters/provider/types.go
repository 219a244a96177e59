// Package provider defines the transport-level result shapes shared by the
// upstream contribution clients
package provider

import "time"

// Counts are exact integer contribution totals for one window
type Counts struct {
	Commits int
	PRs     int
	Issues  int
}

// Rollups are the windowed totals one fetch produces.
// The 30 day window is always derived from the same upstream capture as
// the 365 day window, never fetched separately
type Rollups struct {
	Last30d   Counts
	Last365d  Counts
	FetchedAt time.Time
}

// Telemetry carries upstream rate-limit signals and fetch cost back to the
// caller. Absent fields stay zero; telemetry never fails a fetch
type Telemetry struct {
	Cost      int
	Remaining int
	ResetAt   time.Time
	Pages     int
	Duration  time.Duration
}
