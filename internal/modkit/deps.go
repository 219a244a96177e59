// Package modkit provides module wiring and core deps
package modkit

import (
	"gitrank/internal/modkit/repokit"
	"gitrank/internal/platform/config"
	"gitrank/internal/platform/logger"
	"gitrank/internal/platform/store"
)

// Deps holds core dependencies passed to modules.
// This is wiring only and does not introduce new abstractions
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.TxRunner
	RD  store.Keyval
	CH  store.Clickhouse
}
