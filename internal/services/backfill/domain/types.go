// Package domain defines the types and interfaces for the backfill service
package domain

import "context"

// Candidate is one user eligible for a backfill refresh, tagged with the
// per-user display metadata read from the metadata store
type Candidate struct {
	UserID       string
	GithubHandle string
	GitlabHandle string
	AvatarURL    string
}

// Summary reports one backfill run. Candidates and Skipped reflect the
// final cycle's discovery; Dispatched and Succeeded accumulate across
// cycles; Failed counts distinct users still failing when the run ends
type Summary struct {
	Candidates int `json:"candidates"`
	Skipped    int `json:"skipped"`
	Dispatched int `json:"dispatched"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
}

// RunnerPort drives one resumable backfill run to completion
type RunnerPort interface {
	Run(ctx context.Context) (Summary, error)
}
