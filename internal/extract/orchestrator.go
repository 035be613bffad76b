// Package extract turns queued emails into job opportunity records. Known
// portals go through their extractor first; everything else, and anything a
// portal extractor cannot finish, goes to the LLM.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"jobmail-engine/internal/domain"
	"jobmail-engine/internal/events"
	"jobmail-engine/internal/llm"
	"jobmail-engine/internal/scrape/cadremploi"
	"jobmail-engine/internal/scrape/extractor"
	"jobmail-engine/internal/scrape/util"
)

const DefaultItemDelay = time.Second

// Sink receives the full record list after every successful email so a crash
// loses at most the email in flight.
type Sink interface {
	Save(ctx context.Context, opps []domain.JobOpportunity) error
}

// Publisher is satisfied by events.Hub.
type Publisher interface {
	Emit(runID, typ string, data any)
}

type Options struct {
	ItemDelay   time.Duration
	CleanHTML   bool
	// Temperature nil means llm.DefaultTemperature.
	Temperature *float64
	MaxTokens   int
}

type Orchestrator struct {
	registry   *extractor.Registry
	cadremploi *cadremploi.Extractor
	llm        llm.Completer
	sink       Sink
	pub        Publisher
	costs      *llm.CostSummary
	opts       Options
	log        zerolog.Logger
}

type Deps struct {
	Registry   *extractor.Registry
	Cadremploi *cadremploi.Extractor
	LLM        llm.Completer
	Sink       Sink
	Publisher  Publisher
}

func New(d Deps, opts Options, log zerolog.Logger) *Orchestrator {
	if d.Registry == nil {
		d.Registry = extractor.NewRegistry(log)
	}
	if opts.ItemDelay < 0 {
		opts.ItemDelay = 0
	}
	if opts.Temperature == nil {
		opts.Temperature = llm.Temp(llm.DefaultTemperature)
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = llm.DefaultMaxTokens
	}
	return &Orchestrator{
		registry:   d.Registry,
		cadremploi: d.Cadremploi,
		llm:        d.LLM,
		sink:       d.Sink,
		pub:        d.Publisher,
		costs:      llm.NewCostSummary(),
		opts:       opts,
		log:        log,
	}
}

// errExtraction marks a failure of the model output rather than the call.
type errExtraction struct{ msg string }

func (e errExtraction) Error() string { return e.msg }

// Run extracts every email not already represented in existing. It never
// aborts on a single email; failures are collected in the summary. ctx is
// only consulted between emails and during the inter-item delay.
func (o *Orchestrator) Run(ctx context.Context, emails []domain.EmailRecord, existing []domain.JobOpportunity) (Summary, []domain.JobOpportunity) {
	runID := uuid.NewString()
	started := time.Now()

	all := append([]domain.JobOpportunity(nil), existing...)
	done := make(map[string]bool, len(existing))
	for _, opp := range existing {
		done[opp.SourceKey()] = true
	}
	if len(existing) > 0 {
		o.log.Info().Int("existing", len(existing)).Msg("resuming, already processed emails will be skipped")
	}

	sum := Summary{RunID: runID, Total: len(emails)}

	for i, e := range emails {
		if err := ctx.Err(); err != nil {
			o.log.Warn().Err(err).Int("remaining", len(emails)-i).Msg("extraction interrupted")
			break
		}
		sum.Processed++

		lg := o.log.With().Int("n", i+1).Int("of", len(emails)).Logger()
		lg.Info().Str("subject", util.Truncate(e.Subject, 60)).Str("from", util.Truncate(e.From, 60)).Msg("processing email")

		if done[e.SourceKey()] {
			sum.Skipped++
			lg.Info().Msg("skipped, already processed")
			continue
		}

		opps, err := o.extractSafe(ctx, e)
		switch {
		case err != nil:
			sum.fail(e, err)
			lg.Warn().Err(err).Msg("extraction failed")
		default:
			all = append(all, opps...)
			done[e.SourceKey()] = true
			sum.Successful++
			for _, opp := range opps {
				lg.Info().
					Str("title", util.Truncate(domain.StrVal(opp.Title), 50)).
					Str("company", domain.StrVal(opp.Company)).
					Str("location", domain.StrVal(opp.Location)).
					Msg("opportunity extracted")
			}
			o.publish(runID, events.OpportunityExtracted, map[string]any{
				"subject": e.Subject,
				"from":    e.From,
				"count":   len(opps),
			})

			if o.sink != nil {
				if err := o.sink.Save(ctx, all); err != nil {
					sum.Successful--
					sum.fail(e, persistError{err})
					lg.Error().Err(err).Msg("incremental save failed")
				}
			}
		}

		if i < len(emails)-1 && o.opts.ItemDelay > 0 {
			if !sleepCtx(ctx, o.opts.ItemDelay) {
				o.log.Warn().Msg("extraction interrupted during delay")
				break
			}
		}
	}

	sum.Opportunities = len(all)
	sum.Cost = o.costs.Snapshot()
	sum.Duration = time.Since(started)

	o.publish(runID, events.ExtractDone, sum)
	o.log.Info().
		Int("total", sum.Total).
		Int("skipped", sum.Skipped).
		Int("successful", sum.Successful).
		Int("failed", sum.Failed).
		Int("opportunities", sum.Opportunities).
		Str("cost", llm.FormatCost(sum.Cost.TotalCostUSD)).
		Msg("extraction finished")
	return sum, all
}

// Costs exposes the running LLM cost totals.
func (o *Orchestrator) Costs() *llm.CostSummary { return o.costs }

type persistError struct{ err error }

func (e persistError) Error() string { return "persist: " + e.err.Error() }
func (e persistError) Unwrap() error { return e.err }

type panicError struct{ val any }

func (e panicError) Error() string { return fmt.Sprintf("panic: %v", e.val) }

func (o *Orchestrator) extractSafe(ctx context.Context, e domain.EmailRecord) (opps []domain.JobOpportunity, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			o.log.Error().Interface("panic", rec).Str("subject", e.Subject).Msg("recovered from panic")
			opps, err = nil, panicError{rec}
		}
	}()
	return o.extractOne(ctx, e)
}

func (o *Orchestrator) extractOne(ctx context.Context, e domain.EmailRecord) ([]domain.JobOpportunity, error) {
	if o.cadremploi != nil && o.cadremploi.CanHandle(e.From, e.Subject) {
		o.log.Debug().Msg("cadremploi alert, trying regex extraction")
		if opps := o.cadremploi.ExtractJobOpportunities(ctx, e.Content, e.Subject); len(opps) > 0 {
			for i := range opps {
				opps[i].SetProvenance(e)
			}
			o.log.Info().Int("jobs", len(opps)).Msg("regex extraction succeeded, llm skipped")
			return opps, nil
		}
		o.log.Info().Msg("regex extraction found nothing, falling back to llm")
	}

	outcome := o.registry.Extract(e.From, e.Subject, e.Content)
	portal := extractor.PortalOf(outcome)
	if f, ok := outcome.(extractor.Failed); ok {
		o.log.Debug().Err(f.Err).Str("extractor", f.Extractor).Msg("url pre-extraction failed")
	}

	if o.llm == nil {
		return nil, errors.New("no LLM configured")
	}

	content := e.Content
	if o.opts.CleanHTML && IsHTML(content) {
		if cleaned, err := llm.CleanHTML(content); err == nil {
			content = cleaned
		} else {
			o.log.Debug().Err(err).Msg("html cleaning failed, sending raw content")
		}
	}

	comp, err := o.llm.Complete(ctx, llm.Request{
		System:      SystemPrompt(),
		User:        UserPrompt(e, content),
		Temperature: o.opts.Temperature,
		MaxTokens:   o.opts.MaxTokens,
	})
	if comp.Model != "" {
		o.costs.Add(comp)
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(comp.Text) == "" {
		return nil, errExtraction{llm.ErrEmptyResponse.Error()}
	}

	opps, err := ParseResponse(comp.Text)
	if err != nil {
		o.log.Warn().Str("preview", util.Truncate(comp.Text, 200)).Int("length", len(comp.Text)).Msg("unparseable llm response")
		return nil, errExtraction{err.Error()}
	}
	if len(opps) == 0 {
		return nil, errExtraction{llm.ErrEmptyResponse.Error()}
	}

	resolved, hasResolved := outcome.(extractor.Resolved)
	for i := range opps {
		opp := &opps[i]
		opp.SetProvenance(e)
		if portal != "" && opp.JobPortalName == nil {
			opp.JobPortalName = domain.Str(portal)
		}
		if hasResolved {
			mergeResolved(opp, resolved.Result)
		}
		o.validateURLs(opp)
	}
	return opps, nil
}

// mergeResolved lets deterministic extraction win over the model's guesses.
func mergeResolved(opp *domain.JobOpportunity, r extractor.Result) {
	if r.Portal != "" && opp.JobPortalName == nil {
		opp.JobPortalName = domain.Str(r.Portal)
	}
	set := func(dst **string, v string) {
		if v != "" {
			*dst = domain.Str(v)
		}
	}
	set(&opp.ApplyOnPortal, r.ApplyOnPortal)
	set(&opp.ApplyOnCompany, r.ApplyOnCompany)
	set(&opp.DescriptionOnPortal, r.DescriptionOnPortal)
	set(&opp.DescriptionOnCompany, r.DescriptionOnCompany)
	set(&opp.Company, r.Company)
	set(&opp.Location, r.Location)
	set(&opp.Salary, r.Salary)
}

func (o *Orchestrator) validateURLs(opp *domain.JobOpportunity) {
	for _, f := range opp.URLFields() {
		v := domain.StrVal(*f.Ptr)
		if v == "" {
			*f.Ptr = nil
			continue
		}
		if ok, reason := util.ValidateURL(v); !ok {
			o.log.Warn().Str("field", f.Label).Str("reason", reason).Str("url", util.Truncate(v, 80)).Msg("invalid url removed")
			*f.Ptr = nil
			continue
		}
		*f.Ptr = domain.Str(v)
	}
}

func (o *Orchestrator) publish(runID, typ string, data any) {
	if o.pub == nil {
		return
	}
	o.pub.Emit(runID, typ, data)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
