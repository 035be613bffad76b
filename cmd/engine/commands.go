package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"jobmail-engine/internal/config"
	"jobmail-engine/internal/secrets"
)

// commonFlags registers the flags every pipeline command accepts.
func commonFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	cfgPath := fs.String("config", config.ConfigPath(), "path to config.yml")
	return fs, cfgPath
}

func setup(ctx context.Context, cfgPath string, adjust func(*config.Config)) (*app, error) {
	cfg, log, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(&cfg)
	}
	return newApp(ctx, cfg, log)
}

func cmdSearch(ctx context.Context, args []string) error {
	fs, cfgPath := commonFlags("search")
	topic := fs.String("topic", "", "keyword topic (default from config)")
	days := fs.Int("days", 0, "days back to search")
	maxResults := fs.Int("max-results", 0, "queue size cap")
	senders := fs.String("senders", "", "comma separated sender filter")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := setup(ctx, *cfgPath, func(c *config.Config) {
		if *days > 0 {
			c.Email.DaysBack = *days
		}
		if *maxResults > 0 {
			c.Email.MaxResults = *maxResults
		}
		if s := splitList(*senders); len(s) > 0 {
			c.Email.Senders = s
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.search(ctx, *topic)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "matched %d, processed %d, kept %d, rejected %d, duplicates %d, queue %d (%s)\n",
		res.Matched, res.Processed, res.Kept, res.Rejected, res.Duplicates, len(res.Emails), a.cfg.EmailsPath())
	return nil
}

func cmdExtract(ctx context.Context, args []string) error {
	fs, cfgPath := commonFlags("extract")
	in := fs.String("in", "", "input queue file")
	out := fs.String("out", "", "output opportunities file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := setup(ctx, *cfgPath, func(c *config.Config) {
		if *in != "" {
			c.Paths.Emails = *in
		}
		if *out != "" {
			c.Paths.Opportunities = *out
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	sum, err := a.extract(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	sum.Report(os.Stdout)
	return nil
}

func cmdRun(ctx context.Context, args []string) error {
	fs, cfgPath := commonFlags("run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := setup(ctx, *cfgPath, nil)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.pipeline(ctx)
}

func cmdDrafts(ctx context.Context, args []string) error {
	fs, cfgPath := commonFlags("drafts")
	top := fs.Int("top", 0, "number of emails to answer (default from config)")
	minScore := fs.Int("min-score", -1, "minimum relevance score (default from config)")
	dryRun := fs.Bool("dry-run", false, "list the selected emails without calling the LLM")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := setup(ctx, *cfgPath, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	n, ms := a.cfg.Drafts.TopN, a.cfg.Drafts.MinScore
	if *top > 0 {
		n = *top
	}
	if *minScore >= 0 {
		ms = *minScore
	}

	res, err := a.drafts(ctx, n, ms, *dryRun)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "drafts: %d considered, %d created, %d failed\n", res.Considered, res.Created, len(res.Failures))
	for _, f := range res.Failures {
		fmt.Fprintf(os.Stdout, "  - %s: %s\n", f.Subject, f.Error)
	}
	return nil
}

func cmdSecrets(args []string) error {
	fs, cfgPath := commonFlags("secrets")
	value := fs.String("value", "", "secret value (read from stdin when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 2 {
		return errors.New("usage: engine secrets set|delete imap|openai|anthropic")
	}
	kind, err := secrets.ParseKind(rest[1])
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}

	switch rest[0] {
	case "set":
		v := *value
		if v == "" {
			if v, err = readSecret(os.Stdin); err != nil {
				return err
			}
		}
		if err := secrets.Set(kind, cfg, v); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "stored %s secret in the system keyring\n", kind)
	case "delete":
		if err := secrets.Delete(kind, cfg); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "deleted %s secret\n", kind)
	default:
		return fmt.Errorf("unknown secrets action %q", rest[0])
	}
	return nil
}

func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("empty secret")
	}
	return line, nil
}
