package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"jobmail-engine/internal/config"
	"jobmail-engine/internal/drafts"
	"jobmail-engine/internal/emailpoll"
	"jobmail-engine/internal/events"
	"jobmail-engine/internal/extract"
	"jobmail-engine/internal/keywords"
	"jobmail-engine/internal/llm"
	"jobmail-engine/internal/logging"
	"jobmail-engine/internal/rank"
	"jobmail-engine/internal/scrape/cadremploi"
	email_scrape "jobmail-engine/internal/scrape/email"
	"jobmail-engine/internal/scrape/extractor"
	"jobmail-engine/internal/scrape/fetch"
	"jobmail-engine/internal/scrape/linkedin"
	"jobmail-engine/internal/scrape/util"
	"jobmail-engine/internal/secrets"
	"jobmail-engine/internal/store"
)

var errBusy = errors.New("a pipeline run is already in progress")

// app holds the long-lived collaborators shared by every command.
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	catalog *keywords.Catalog
	hub     *events.Hub
	db      *store.DB
	rdb     *redis.Client

	runMu *sync.Mutex
}

func newApp(ctx context.Context, cfg config.Config, log zerolog.Logger) (*app, error) {
	a := &app{
		cfg:   cfg,
		log:   log,
		hub:   events.NewHub(),
		runMu: &sync.Mutex{},
	}

	if p := cfg.DBPath(); p != "" {
		db, err := store.OpenMigrated(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		a.db = db
	}

	if cfg.Cache.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr, DB: cfg.Cache.RedisDB})
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pctx).Err()
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Cache.RedisAddr).Msg("redis unavailable, using in-memory resolution cache")
			_ = rdb.Close()
		} else {
			a.rdb = rdb
		}
	}
	return a.withConfig(cfg), nil
}

// withConfig returns a view of a that uses cfg, sharing the connections and
// the run lock. The DB and redis settings of cfg are ignored.
func (a *app) withConfig(cfg config.Config) *app {
	b := *a
	b.cfg = cfg
	b.catalog = keywords.New(keywords.Options{
		ExtraTrusted: cfg.Scoring.ExtraTrusted,
		ExtraBlocked: cfg.Scoring.ExtraBlocked,
		ExtraTopics:  cfg.Scoring.ExtraTopics,
	})
	return &b
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

func (a *app) mailbox(ctx context.Context) (*email_scrape.Client, error) {
	pw, err := secrets.Get(secrets.IMAP, a.cfg)
	if err != nil {
		return nil, err
	}
	c := email_scrape.New(email_scrape.Options{
		Addr:     a.cfg.Email.IMAPAddr,
		Username: a.cfg.Email.Username,
		Password: pw,
		Mailbox:  a.cfg.Email.Mailbox,
	}, a.log)
	if err := c.Dial(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (a *app) completer() (llm.Completer, error) {
	key, err := secrets.LLMKey(a.cfg)
	if err != nil {
		return nil, err
	}
	return llm.New(llm.Config{
		Provider:  a.cfg.LLM.Provider,
		Model:     a.cfg.LLM.Model,
		APIKey:    key,
		BaseURL:   a.cfg.LLM.BaseURL,
		Timeout:   a.cfg.LLMTimeout(),
		Breaker:   a.cfg.LLM.Breaker,
		TripAfter: a.cfg.LLM.TripAfter,
	}, logging.For(a.log, "llm"))
}

func (a *app) resolutionCache() cadremploi.Cache {
	if a.rdb != nil {
		return cadremploi.NewRedisCache(a.rdb, a.cfg.CacheTTL(), logging.For(a.log, "cache"))
	}
	return cadremploi.NewMemoryCache()
}

// search runs stage 1 against the configured mailbox.
func (a *app) search(ctx context.Context, topic string) (emailpoll.Result, error) {
	mb, err := a.mailbox(ctx)
	if err != nil {
		return emailpoll.Result{}, err
	}
	defer mb.Close()

	if topic == "" {
		topic = a.cfg.App.Topic
	}
	return emailpoll.RunSearch(ctx, mb, rank.NewRelevanceScorer(a.catalog), emailpoll.Options{
		Topic:      topic,
		Keywords:   a.catalog.SearchTerms(topic),
		Senders:    a.cfg.Email.Senders,
		DaysBack:   a.cfg.Email.DaysBack,
		MaxProcess: a.cfg.Email.MaxProcess,
		MaxResults: a.cfg.Email.MaxResults,
		BatchSize:  a.cfg.Email.BatchSize,
		QueuePath:  a.cfg.EmailsPath(),
		Publisher:  a.hub,
	}, a.log)
}

// extract runs stage 2 over the queue file. A missing queue is fatal.
func (a *app) extract(ctx context.Context) (extract.Summary, error) {
	emails, err := store.LoadEmails(a.cfg.EmailsPath())
	if err != nil {
		return extract.Summary{}, err
	}

	c, err := a.completer()
	if err != nil {
		return extract.Summary{}, err
	}

	httpLog := logging.For(a.log, "http")
	client := fetch.New(fetch.Options{
		UserAgent:   a.cfg.HTTP.UserAgent,
		HopTimeout:  a.cfg.HopTimeout(),
		PageTimeout: a.cfg.PageTimeout(),
		Limiter:     util.NewHostLimiter(a.cfg.HTTP.RequestsPerSecond, a.cfg.HTTP.Burst),
	}, httpLog)

	cadreLog := logging.For(a.log, "cadremploi")
	site := cadremploi.DefaultSite()
	pages := cadremploi.NewPageParser(client, site, a.cfg.Extract.MaxJobAgeDays, cadreLog)
	resolver := cadremploi.NewResolver(client, pages, cadremploi.ResolverOptions{
		Site:    site,
		MaxHops: a.cfg.Extract.MaxHops,
		Cache:   a.resolutionCache(),
	}, cadreLog)
	cadre := cadremploi.NewExtractor(resolver, pages, a.cfg.Extract.UseLLMForLongHTML, cadreLog)

	registry := extractor.NewRegistry(logging.For(a.log, "extractor"), cadre, linkedin.Extractor{})

	outPath := a.cfg.OpportunitiesPath()
	existing := store.LoadOpportunities(outPath, a.log)

	orch := extract.New(extract.Deps{
		Registry:   registry,
		Cadremploi: cadre,
		LLM:        c,
		Sink:       store.NewMirror(outPath, a.db, logging.For(a.log, "store")),
		Publisher:  a.hub,
	}, extract.Options{
		ItemDelay:   a.cfg.ItemDelay(),
		CleanHTML:   a.cfg.Extract.CleanHTML,
		Temperature: llm.Temp(a.cfg.Extract.Temperature),
		MaxTokens:   a.cfg.Extract.MaxTokens,
	}, logging.For(a.log, "extract"))

	sum, _ := orch.Run(ctx, emails, existing)
	return sum, ctx.Err()
}

func (a *app) drafts(ctx context.Context, topN, minScore int, dryRun bool) (drafts.Result, error) {
	emails, err := store.LoadEmails(a.cfg.EmailsPath())
	if err != nil {
		return drafts.Result{}, err
	}

	crit := a.cfg.Drafts.Criteria
	opts := drafts.Options{
		TopN:      topN,
		MinScore:  minScore,
		Signature: a.cfg.Drafts.Signature,
		Delay:     a.cfg.DraftDelay(),
		Criteria: drafts.JobCriteria{
			Position:  crit.Position,
			Seniority: crit.Seniority,
			Location:  crit.Location,
			Skills:    crit.Skills,
			MinSalary: crit.MinSalary,
			Remote:    crit.Remote,
		},
	}

	if dryRun {
		w := drafts.New(nil, nil, nil, opts, a.log)
		picked := w.Select(emails)
		for _, e := range picked {
			a.log.Info().Int("score", e.RelevanceScore).Str("to", drafts.ReplyAddress(e.From)).Str("subject", e.Subject).Msg("would draft")
		}
		return drafts.Result{Considered: len(picked)}, nil
	}

	c, err := a.completer()
	if err != nil {
		return drafts.Result{}, err
	}
	mb, err := a.mailbox(ctx)
	if err != nil {
		return drafts.Result{}, err
	}
	defer mb.Close()

	return drafts.New(c, mb, a.hub, opts, a.log).Run(ctx, emails)
}

// pipeline is search then extract. Concurrent callers (scheduler and
// POST /run) get errBusy instead of queueing.
func (a *app) pipeline(ctx context.Context) error {
	if !a.runMu.TryLock() {
		return errBusy
	}
	defer a.runMu.Unlock()

	res, err := a.search(ctx, "")
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	a.log.Info().Int("kept", res.Kept).Int("queue", len(res.Emails)).Msg("search stage done")

	if len(res.Emails) == 0 {
		a.log.Info().Msg("queue empty, skipping extraction")
		return nil
	}
	sum, err := a.extract(ctx)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	a.log.Info().
		Int("successful", sum.Successful).
		Int("failed", sum.Failed).
		Str("cost", llm.FormatCost(sum.Cost.TotalCostUSD)).
		Msg("extract stage done")
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
