// Package domain defines the types and interfaces for the leaderboard service
package domain

import (
	"context"

	rollupdom "gitrank/internal/services/rollup/domain"
)

// Source tags which tier served a leaderboard page
const (
	SourceCache   = "cache"
	SourceDurable = "durable"
)

// Entry is one ranked leaderboard row
type Entry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Total  int    `json:"total"`
}

// Page is one leaderboard page plus the tier that served it.
// NextCursor is present only when the page came back full
type Page struct {
	Period     rollupdom.Period `json:"period"`
	Entries    []Entry          `json:"entries"`
	NextCursor *int             `json:"next_cursor,omitempty"`
	Source     string           `json:"source"`
}

// SyncPort projects durable rollups into the ranked cache
type SyncPort interface {
	Sync(ctx context.Context, userID string) error
	Remove(ctx context.Context, userID string) error
}

// ReadPort serves ranked pages with durable fallback
type ReadPort interface {
	Page(ctx context.Context, period rollupdom.Period, cursor, limit int) (Page, error)
}
