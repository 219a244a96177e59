// Package api mounts the HTTP surface over the service modules
package api

import (
	"time"

	"gitrank/internal/modkit"
	"gitrank/internal/platform/config"
	"gitrank/internal/platform/logger"
	phttp "gitrank/internal/platform/net/http"
	"gitrank/internal/platform/net/http/bind"
	"gitrank/internal/platform/net/middleware"
	"gitrank/internal/platform/store"

	backfillmod "gitrank/internal/services/backfill/module"
	lbmod "gitrank/internal/services/leaderboard/module"
	rollupmod "gitrank/internal/services/rollup/module"
)

// Options are the API options. Config is the CORE_API_ scoped view for
// the HTTP surface itself; Root feeds the service modules so their env
// keys stay identical across binaries
type Options struct {
	Config config.Conf
	Root   config.Conf
	Store  *store.Store
	Logger *logger.Logger
}

// Mount wires the service modules and mounts their routes
func Mount(r phttp.Router, opt Options) {
	bind.Init()

	deps := modkit.Deps{
		Log: *opt.Logger,
		Cfg: opt.Root,
		PG:  opt.Store.PG,
		RD:  opt.Store.RD,
		CH:  opt.Store.CH,
	}

	rollup := rollupmod.New(deps)
	lb := lbmod.New(deps, rollup.Service())
	pipeline := rollup.Pipeline(lbmod.MustPorts(lb).Sync)
	backfill := backfillmod.New(deps, pipeline)

	h := &handlers{
		pipeline: pipeline,
		rollup:   rollup.Service(),
		lb:       lbmod.MustPorts(lb),
		backfill: backfillmod.MustPorts(backfill).Runner,
	}

	r.Use(
		middleware.RequestID,
		middleware.RealIP(),
		middleware.RecoverJSON,
		middleware.Timeout(opt.Config.MayDuration("REQUEST_TIMEOUT", 30*time.Second)),
		middleware.AccessLog(middleware.AccessLogOptions{Slow: time.Second}),
		middleware.Heartbeat("/healthz"),
		middleware.CORS(middleware.CORSOptions{
			AllowedOrigins: opt.Config.MayCSV("CORS_ORIGINS", []string{"*"}),
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}),
	)

	r.Route("/v1", func(v1 phttp.Router) {
		v1.Use(middleware.BearerAuth(opt.Config.MayString("TOKEN", "")))
		for _, m := range []modkit.Module{rollup, lb, backfill} {
			m.MountRoutes(v1)
		}
		h.mount(v1)
	})
}
