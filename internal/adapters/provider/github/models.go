package github

import (
	"gitrank/internal/adapters/provider"
	perr "gitrank/internal/platform/errors"
)

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type contributions struct {
	TotalCommitContributions      int `json:"totalCommitContributions"`
	TotalPullRequestContributions int `json:"totalPullRequestContributions"`
	TotalIssueContributions       int `json:"totalIssueContributions"`
}

func (c contributions) counts() provider.Counts {
	return provider.Counts{
		Commits: c.TotalCommitContributions,
		PRs:     c.TotalPullRequestContributions,
		Issues:  c.TotalIssueContributions,
	}
}

type gqlUser struct {
	Last30d  contributions `json:"last30d"`
	Last365d contributions `json:"last365d"`
}

type gqlRateLimit struct {
	Cost      int    `json:"cost"`
	Remaining int    `json:"remaining"`
	ResetAt   string `json:"resetAt"`
}

type gqlResponse struct {
	Data struct {
		RateLimit *gqlRateLimit `json:"rateLimit"`
		User      *gqlUser      `json:"user"`
	} `json:"data"`
	Errors []gqlError `json:"errors"`
}

// firstNonNotFound surfaces the first GraphQL error that is not the
// expected unknown-login NOT_FOUND
func (r gqlResponse) firstNonNotFound() error {
	for _, e := range r.Errors {
		if e.Type == "NOT_FOUND" {
			continue
		}
		return perr.Upstreamf("github graphql error: %s", e.Message)
	}
	return nil
}
