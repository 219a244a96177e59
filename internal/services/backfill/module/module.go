// Package module implements the backfill service module
package module

import (
	"gitrank/internal/modkit"
	phttp "gitrank/internal/platform/net/http"
	"gitrank/internal/platform/retry"
	"gitrank/internal/services/backfill/domain"
	"gitrank/internal/services/backfill/repo"
	"gitrank/internal/services/backfill/service"
)

// Ports exposed by the backfill module
type Ports struct {
	Runner domain.RunnerPort
}

// Module implements the backfill service module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs a new backfill module over the refresh pipeline
func New(deps modkit.Deps, pipeline service.Refresher) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(repo.New(deps.RD), pipeline, retry.Default(), service.Config{
		WindowDays:          opts.WindowDays,
		MaxCandidates:       opts.MaxCandidates,
		Workers:             opts.Workers,
		JitterMax:           opts.JitterMax,
		ZeroSuccessCooldown: opts.ZeroSuccessCooldown,
		GithubToken:         opts.GithubToken,
		GitlabToken:         opts.GitlabToken,
		GitlabBaseURL:       opts.GitlabBaseURL,
	})

	m := &Module{deps: deps}
	m.ports = Ports{Runner: svc}
	return m
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "backfill" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes satisfies modkit.Module; routes live in the api module
func (m *Module) MountRoutes(r phttp.Router) {}

// MustPorts returns the typed port set
func MustPorts(m *Module) Ports { return m.ports }
