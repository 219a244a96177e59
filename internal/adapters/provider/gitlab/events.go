package gitlab

import (
	"strings"
	"time"

	"gitrank/internal/adapters/provider"
)

// Event is the slice of the GitLab event payload the counting rule reads
type Event struct {
	CreatedAt  time.Time `json:"created_at"`
	ActionName string    `json:"action_name"`
	TargetType string    `json:"target_type"`
	ProjectID  int64     `json:"project_id"`
	PushData   *PushData `json:"push_data,omitempty"`
}

// PushData carries the embedded commit count of a push event
type PushData struct {
	CommitCount int `json:"commit_count"`
}

// CountSince applies the counting rule over events at or after since:
// a push-type event contributes its embedded commit count, an opened
// merge request contributes one PR, an opened issue contributes one
// issue. Every other event shape is ignored
func CountSince(events []Event, since time.Time) provider.Counts {
	var out provider.Counts
	for _, ev := range events {
		if ev.CreatedAt.Before(since) {
			continue
		}
		switch {
		case strings.HasPrefix(ev.ActionName, "pushed"):
			if ev.PushData != nil {
				out.Commits += ev.PushData.CommitCount
			}
		case ev.ActionName == "opened" && ev.TargetType == "MergeRequest":
			out.PRs++
		case ev.ActionName == "opened" && ev.TargetType == "Issue":
			out.Issues++
		}
	}
	return out
}
