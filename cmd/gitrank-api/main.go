package main

import (
	"context"

	"gitrank/internal/platform/config"
	"gitrank/internal/platform/logger"
	phttp "gitrank/internal/platform/net/http"
	"gitrank/internal/platform/store"

	"gitrank/internal/services/api"
)

func main() {
	root := config.New()
	apiCfg := root.Prefix("CORE_API_")

	pgCfg := root.Prefix("SERVICE_PGSQL_")
	rdCfg := root.Prefix("SERVICE_REDIS_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")

	l := logger.Get()

	st, err := store.Open(
		context.Background(),
		store.Config{
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
				ClientTag:  "api",
			},
		},
		store.WithLogger(*l),
	)
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	srv := phttp.NewServer(apiCfg)

	api.Mount(srv.Router(), api.Options{
		Config: apiCfg,
		Root:   root,
		Store:  st,
		Logger: l,
	})

	if err := srv.Run(context.Background()); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
