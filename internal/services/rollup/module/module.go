// Package module implements the rollup service module
package module

import (
	"gitrank/internal/adapters/provider/github"
	"gitrank/internal/adapters/provider/gitlab"
	"gitrank/internal/modkit"
	"gitrank/internal/platform/lease"
	phttp "gitrank/internal/platform/net/http"
	"gitrank/internal/services/rollup/domain"
	"gitrank/internal/services/rollup/repo"
	"gitrank/internal/services/rollup/service"
)

// Ports exposed by the rollup module
type Ports struct {
	Refresher domain.RefresherPort
	Reader    domain.ReaderPort
}

// Module implements the rollup service module
type Module struct {
	deps  modkit.Deps
	ports Ports
	svc   *service.Service
	locks *lease.Manager
}

// New constructs a new rollup module
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)

	gh := github.NewClient(github.Options{
		BaseURL: opts.GithubURL,
		Timeout: opts.HTTPTimeout,
	})
	gl := gitlab.NewClient(gitlab.Options{
		BaseURL:  opts.GitlabURL,
		Timeout:  opts.HTTPTimeout,
		MaxPages: opts.GitlabMaxPages,
	})

	svc := service.New(deps.PG, repo.NewPG(), gh, gl, service.Config{
		AuditSink: deps.CH,
	})

	m := &Module{
		deps:  deps,
		svc:   svc,
		locks: lease.NewManager(deps.RD, opts.LeaseTTL),
	}
	m.ports = Ports{Refresher: svc, Reader: svc}
	return m
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "rollup" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes satisfies modkit.Module; rollup has no routes of its own
func (m *Module) MountRoutes(r phttp.Router) {}

// Service exposes the concrete service for sibling wiring
func (m *Module) Service() *service.Service { return m.svc }

// Locks exposes the per (provider, user) lease manager
func (m *Module) Locks() *lease.Manager { return m.locks }

// Pipeline builds the locked refresh-then-sync composition once a cache
// syncer exists
func (m *Module) Pipeline(sync service.Syncer) *service.Pipeline {
	return service.NewPipeline(m.locks, m.svc, sync)
}
