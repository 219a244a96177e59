package main

import (
	"context"
	"flag"
	"os"
	"strconv"

	"gitrank/internal/modkit"
	"gitrank/internal/platform/config"
	"gitrank/internal/platform/logger"
	"gitrank/internal/platform/store"

	backfillmod "gitrank/internal/services/backfill/module"
	lbmod "gitrank/internal/services/leaderboard/module"
	rollupmod "gitrank/internal/services/rollup/module"
)

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

func main() {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	rdCfg := root.Prefix("SERVICE_REDIS_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")

	l := logger.Get()

	st, err := store.Open(context.Background(), store.Config{
		AppName: "gitrank",
		PG: store.PGConfig{
			Enabled:  true,
			URL:      pgCfg.MustString("DBURL"),
			MaxConns: int32(pgCfg.MayInt("MAX_CONNS", 4)),
		},
		RD: store.RedisConfig{
			Enabled: true,
			Addr:    rdCfg.MustString("ADDR"),
			DB:      rdCfg.MayInt("DB", 0),
		},
		CH: store.CHConfig{
			Enabled:    chCfg.MayBool("ENABLED", false),
			URL:        chCfg.MayString("DBURL", ""),
			ClientName: "gitrank",
			ClientTag:  "backfill",
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	var (
		fWindow  = flag.Int("window", 365, "window length in days keying the completion set")
		fMax     = flag.Int("max", 0, "cap candidate discovery, 0 keeps the configured default")
		fWorkers = flag.Int("workers", 0, "worker concurrency, 0 keeps the configured default")
	)
	flag.Parse()

	// surface flags to module FromConfig readers
	mustSetEnv("CORE_BACKFILL_WINDOW_DAYS", strconv.Itoa(*fWindow))
	if *fMax > 0 {
		mustSetEnv("CORE_BACKFILL_MAX_CANDIDATES", strconv.Itoa(*fMax))
	}
	if *fWorkers > 0 {
		mustSetEnv("CORE_BACKFILL_WORKERS", strconv.Itoa(*fWorkers))
	}

	deps := modkit.Deps{
		Log: *l,
		Cfg: root,
		PG:  st.PG,
		RD:  st.RD,
		CH:  st.CH,
	}

	rollup := rollupmod.New(deps)
	lb := lbmod.New(deps, rollup.Service())
	pipeline := rollup.Pipeline(lbmod.MustPorts(lb).Sync)
	bf := backfillmod.New(deps, pipeline)

	sum, err := backfillmod.MustPorts(bf).Runner.Run(context.Background())
	if err != nil {
		l.Fatal().Err(err).Msg("backfill failed")
	}
	l.Info().
		Int("candidates", sum.Candidates).
		Int("skipped", sum.Skipped).
		Int("dispatched", sum.Dispatched).
		Int("succeeded", sum.Succeeded).
		Int("failed", sum.Failed).
		Msg("backfill run finished")
}
