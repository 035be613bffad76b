// Command engine runs the job-mail pipeline: search the mailbox for job
// emails, extract structured opportunities, write reply drafts, or serve the
// HTTP API with a scheduler.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"jobmail-engine/internal/config"
	"jobmail-engine/internal/logging"
)

const usage = `usage: engine <command> [flags]

commands:
  search                      find and score job emails into the queue file
  extract                     extract job opportunities from the queue file
  run                         search, then extract
  drafts                      write reply drafts for the best queued emails
  serve                       HTTP API plus scheduled runs
  secrets set|delete <kind>   manage imap, openai or anthropic secrets

Run "engine <command> -h" for the command's flags.
`

func main() {
	// .env is optional; secrets fall back to the environment it fills.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log := bootLog()
		log.Error().Err(err).Msg("fatal")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("missing command")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "search":
		return cmdSearch(ctx, rest)
	case "extract":
		return cmdExtract(ctx, rest)
	case "run":
		return cmdRun(ctx, rest)
	case "drafts":
		return cmdDrafts(ctx, rest)
	case "serve":
		return cmdServe(ctx, rest)
	case "secrets":
		return cmdSecrets(rest)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return nil
	}
	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

// bootLog is used before the config, and so the log level, is known.
func bootLog() zerolog.Logger {
	return logging.New("info", true)
}

// loadConfig bootstraps, loads and validates the config at path. Validation
// errors are fatal; warnings are logged.
func loadConfig(path string) (config.Config, zerolog.Logger, error) {
	log := bootLog()
	if created, err := config.EnsureUserConfig(path, defaultConfigPath); err != nil {
		return config.Config{}, log, fmt.Errorf("config bootstrap failed: %w", err)
	} else if created {
		log.Info().Str("path", path).Msg("wrote default config")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, log, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg, v := config.NormalizeAndValidate(cfg)

	log = logging.New(cfg.Log.Level, cfg.Log.Pretty)
	for _, w := range v.Warnings {
		log.Warn().Str("component", "config").Msg(w)
	}
	if err := v.Err(); err != nil {
		return cfg, log, err
	}
	if err := os.MkdirAll(cfg.App.DataDir, 0o755); err != nil {
		return cfg, log, err
	}
	return cfg, log, nil
}

const defaultConfigPath = "config/config.yml"
