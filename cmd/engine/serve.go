package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"jobmail-engine/internal/config"
	"jobmail-engine/internal/httpapi"
	"jobmail-engine/internal/logging"
	"jobmail-engine/internal/scheduler"
)

const (
	pruneInterval   = 24 * time.Hour
	shutdownTimeout = 10 * time.Second
)

func cmdServe(ctx context.Context, args []string) error {
	fs, cfgPath := commonFlags("serve")
	port := fs.Int("port", 0, "listen port (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := setup(ctx, *cfgPath, func(c *config.Config) {
		if *port > 0 {
			c.Serve.Port = *port
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	var cfgVal atomic.Value
	cfgVal.Store(a.cfg)

	// Runs triggered over HTTP use the config as it is at trigger time so
	// PUT /config takes effect without a restart.
	run := func(ctx context.Context, cfg config.Config) error {
		return a.withConfig(cfg).pipeline(ctx)
	}

	srv := httpapi.NewServer(httpapi.Deps{
		DB:          a.db,
		Hub:         a.hub,
		Catalog:     a.catalog,
		CfgVal:      &cfgVal,
		UserCfgPath: *cfgPath,
		LoadCfg:     func() (config.Config, error) { return config.Load(*cfgPath) },
		Run:         run,
		BaseCtx:     ctx,
		Log:         a.log,
	})

	token := os.Getenv("JOBMAIL_SHUTDOWN_TOKEN")
	if token == "" {
		if token, err = randomToken(16); err != nil {
			return err
		}
		a.log.Info().Str("token", token).Msg("generated shutdown token")
	}
	srv.POST("/shutdown", shutdownHandler(token, stop))

	addr := fmt.Sprintf("127.0.0.1:%d", a.cfg.Serve.Port)
	schedLog := logging.For(a.log, "scheduler")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info().Str("addr", "http://"+addr).Str("db", a.cfg.DBPath()).Msg("engine listening")
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		srv.Runs.Wait()
		return err
	})

	if every := a.cfg.Interval(); every > 0 {
		g.Go(func() error {
			scheduler.Every(gctx, every, "pipeline", func(ctx context.Context) error {
				return run(ctx, cfgVal.Load().(config.Config))
			}, schedLog)
			return nil
		})
	}

	if a.db != nil && a.cfg.Serve.PruneDays > 0 {
		age := time.Duration(a.cfg.Serve.PruneDays) * 24 * time.Hour
		g.Go(func() error {
			scheduler.Every(gctx, pruneInterval, "prune", func(ctx context.Context) error {
				n, err := a.db.PruneOpportunities(ctx, age)
				if err == nil && n > 0 {
					schedLog.Info().Int64("removed", n).Msg("pruned old opportunities")
				}
				return err
			}, schedLog)
			return nil
		})
	}

	err = g.Wait()
	a.log.Info().Msg("engine stopped")
	return err
}
