package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type Task func(ctx context.Context) error

// Every runs task immediately and then on each tick until ctx is done. Runs
// never overlap: a tick that fires while task is still running is dropped.
func Every(ctx context.Context, interval time.Duration, name string, task Task, log zerolog.Logger) {
	log = log.With().Str("component", "scheduler").Str("task", name).Logger()

	run := func() {
		start := time.Now()
		if err := task(ctx); err != nil {
			log.Error().Err(err).Dur("took", time.Since(start)).Msg("task failed")
			return
		}
		log.Debug().Dur("took", time.Since(start)).Msg("task done")
	}

	if ctx.Err() != nil {
		return
	}
	run()

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			run()
		}
	}
}
