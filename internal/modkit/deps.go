// Package modkit provides module wiring and the core deps modules are built from
package modkit

import (
	"rangeslicer/internal/modkit/repokit"
	"rangeslicer/internal/platform/config"
	"rangeslicer/internal/platform/logger"
	"rangeslicer/internal/platform/store"
)

// Deps holds core dependencies passed to modules
// PG and CH are nil when the backend is not configured
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.TxRunner
	CH  store.Clickhouse
}
