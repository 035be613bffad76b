package httpapi

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"jobmail-engine/internal/config"
	"jobmail-engine/internal/events"
	"jobmail-engine/internal/keywords"
	"jobmail-engine/internal/store"
)

// RunFunc runs one search+extract pipeline pass.
type RunFunc func(ctx context.Context, cfg config.Config) error

type Deps struct {
	// DB is nil when the SQLite mirror is disabled.
	DB *store.DB

	Hub     *events.Hub
	Catalog *keywords.Catalog

	CfgVal *atomic.Value // stores config.Config

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// Run is injected for testability. BaseCtx bounds background runs and is
	// cancelled on shutdown.
	Run     RunFunc
	BaseCtx context.Context

	Log zerolog.Logger
}

func (d Deps) cfg() config.Config {
	return d.CfgVal.Load().(config.Config)
}
