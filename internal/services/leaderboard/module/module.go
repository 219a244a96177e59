// Package module implements the leaderboard service module
package module

import (
	"gitrank/internal/modkit"
	phttp "gitrank/internal/platform/net/http"
	"gitrank/internal/services/leaderboard/domain"
	"gitrank/internal/services/leaderboard/repo"
	"gitrank/internal/services/leaderboard/service"
	rollupdom "gitrank/internal/services/rollup/domain"
)

// Ports exposed by the leaderboard module
type Ports struct {
	Sync domain.SyncPort
	Read domain.ReadPort
}

// Module implements the leaderboard service module
type Module struct {
	deps  modkit.Deps
	ports Ports
	cache repo.Cache
}

// New constructs a new leaderboard module over the durable reader
func New(deps modkit.Deps, durable rollupdom.ReaderPort) *Module {
	opts := FromConfig(deps.Cfg)

	cache := repo.NewCache(deps.RD)
	svc := service.New(cache, durable, service.Config{
		DefaultLimit: opts.DefaultLimit,
	})

	m := &Module{deps: deps, cache: cache}
	m.ports = Ports{Sync: svc, Read: svc}
	return m
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "leaderboard" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes satisfies modkit.Module; routes live in the api module
func (m *Module) MountRoutes(r phttp.Router) {}

// Cache exposes the ranked cache for sibling wiring
func (m *Module) Cache() repo.Cache { return m.cache }

// MustPorts returns the typed port set
func MustPorts(m *Module) Ports { return m.ports }
