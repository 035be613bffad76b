package extract

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"jobmail-engine/internal/domain"
	"jobmail-engine/internal/events"
	"jobmail-engine/internal/llm"
	"jobmail-engine/internal/scrape/cadremploi"
	"jobmail-engine/internal/scrape/extractor"
	"jobmail-engine/internal/scrape/fetch"
	"jobmail-engine/internal/scrape/linkedin"
)

type scriptedLLM struct {
	mu    sync.Mutex
	steps []func(req llm.Request) (llm.Completion, error)
	reqs  []llm.Request
}

func (s *scriptedLLM) Complete(_ context.Context, req llm.Request) (llm.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	if len(s.steps) == 0 {
		return llm.Completion{}, errors.New("no scripted response")
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	return step(req)
}

func reply(text string) func(llm.Request) (llm.Completion, error) {
	return func(llm.Request) (llm.Completion, error) {
		return llm.Completion{Text: text, Model: "gpt-4o-mini", InputTokens: 100, OutputTokens: 20, CostUSD: 0.0001}, nil
	}
}

type memorySink struct {
	saves [][]domain.JobOpportunity
	err   error
}

func (m *memorySink) Save(_ context.Context, opps []domain.JobOpportunity) error {
	if m.err != nil {
		return m.err
	}
	m.saves = append(m.saves, append([]domain.JobOpportunity(nil), opps...))
	return nil
}

type recorder struct{ events []string }

func (r *recorder) Emit(_, typ string, _ any) { r.events = append(r.events, typ) }

func email(subject, from, content string) domain.EmailRecord {
	d := time.Date(2025, 1, 6, 9, 30, 0, 0, time.UTC)
	return domain.EmailRecord{Subject: subject, From: from, Content: content, SentDate: &d, RelevanceScore: 20}
}

func TestRunSuccessMergesAndValidates(t *testing.T) {
	fake := &scriptedLLM{steps: []func(llm.Request) (llm.Completion, error){
		reply("```json\n" + `[{"title":"Platform Lead","company":"Acme","job_portal_name":"Indeed",
"job_offer_url_description_portal":"https://llm.example.com/guess",
"job_offer_url_apply_company":"not a url",
"job_offer_url_apply_portal":"https://indeed.example.com/apply/1"}]` + "\n```"),
	}}
	sink := &memorySink{}
	pub := &recorder{}
	o := New(Deps{LLM: fake, Sink: sink, Publisher: pub}, Options{}, zerolog.Nop())

	in := email("Platform Lead at Acme", "jobs@indeed.example.com", "Apply here: https://jobs.example.com/o/1. Thanks")
	sum, all := o.Run(context.Background(), []domain.EmailRecord{in}, nil)

	if sum.Successful != 1 || sum.Failed != 0 || sum.Opportunities != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	opp := all[0]
	if domain.StrVal(opp.DescriptionOnPortal) != "https://jobs.example.com/o/1" {
		t.Errorf("expected regex url to win, got %q", domain.StrVal(opp.DescriptionOnPortal))
	}
	if opp.ApplyOnCompany != nil {
		t.Errorf("expected invalid url nulled, got %q", *opp.ApplyOnCompany)
	}
	if domain.StrVal(opp.ApplyOnPortal) != "https://indeed.example.com/apply/1" {
		t.Errorf("expected valid url kept, got %q", domain.StrVal(opp.ApplyOnPortal))
	}
	if domain.StrVal(opp.JobPortalName) != "Indeed" {
		t.Errorf("expected llm portal kept, got %q", domain.StrVal(opp.JobPortalName))
	}
	if domain.StrVal(opp.SourceEmailSubject) != in.Subject || domain.StrVal(opp.SourceEmailFrom) != in.From {
		t.Error("expected provenance stamped")
	}
	if domain.StrVal(opp.SourceEmailDate) != "Mon Jan 06 09:30:00 UTC 2025" {
		t.Errorf("unexpected source date %q", domain.StrVal(opp.SourceEmailDate))
	}

	if len(sink.saves) != 1 || len(sink.saves[0]) != 1 {
		t.Errorf("expected one incremental save, got %d", len(sink.saves))
	}
	req := fake.reqs[0]
	if req.Temperature == nil || *req.Temperature != 0.1 || req.MaxTokens != 6000 || req.System != SystemPrompt() {
		t.Errorf("unexpected request %+v", req)
	}
	if sum.Cost.Calls != 1 {
		t.Errorf("expected cost tracked, got %+v", sum.Cost)
	}
	if len(pub.events) != 2 || pub.events[0] != events.OpportunityExtracted || pub.events[1] != events.ExtractDone {
		t.Errorf("unexpected events %v", pub.events)
	}
}

func TestRunResumeSkipsProcessed(t *testing.T) {
	fake := &scriptedLLM{steps: []func(llm.Request) (llm.Completion, error){
		reply(`{"title":"Second"}`),
	}}
	first := email("First", "a@example.com", "body one")
	second := email("Second", "b@example.com", "body two")

	prev := domain.JobOpportunity{Title: domain.Str("First")}
	prev.SetProvenance(first)

	o := New(Deps{LLM: fake}, Options{}, zerolog.Nop())
	sum, all := o.Run(context.Background(), []domain.EmailRecord{first, second}, []domain.JobOpportunity{prev})

	if sum.Skipped != 1 || sum.Successful != 1 || sum.NewlyProcessed() != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if len(fake.reqs) != 1 {
		t.Errorf("expected 1 llm call, got %d", len(fake.reqs))
	}
	if len(all) != 2 || domain.StrVal(all[1].Title) != "Second" {
		t.Errorf("unexpected records %+v", all)
	}
}

func TestRunFailureKinds(t *testing.T) {
	fake := &scriptedLLM{steps: []func(llm.Request) (llm.Completion, error){
		reply(""),
		func(llm.Request) (llm.Completion, error) { return llm.Completion{}, errors.New("429 rate limited") },
		reply("Sorry, I cannot help"),
		func(llm.Request) (llm.Completion, error) { panic("boom") },
		reply(`[{"title":"Ok"}]`),
		reply(`[{"title":"Also ok"}]`),
	}}
	emails := []domain.EmailRecord{
		email("empty", "a@x.com", "c"),
		email("error", "b@x.com", "c"),
		email("prose", "c@x.com", "c"),
		email("panic", "d@x.com", "c"),
		email("ok", "e@x.com", "c"),
	}
	o := New(Deps{LLM: fake}, Options{}, zerolog.Nop())
	sum, all := o.Run(context.Background(), emails, nil)

	if sum.Failed != 4 || sum.Successful != 1 || len(all) != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	want := []FailureKind{KindExtraction, KindLLM, KindExtraction, KindPanic}
	for i, k := range want {
		if sum.Failures[i].Kind != k {
			t.Errorf("failure %d: expected %s, got %s", i, k, sum.Failures[i].Kind)
		}
	}
	if sum.Failures[0].Message != "LLM returned null or empty response" {
		t.Errorf("unexpected message %q", sum.Failures[0].Message)
	}

	groups := sum.FailuresByKind()
	if len(groups) != 3 || groups[0].Kind != KindExtraction || len(groups[0].Failures) != 2 || groups[1].Kind != KindLLM || groups[2].Kind != KindPanic {
		t.Errorf("unexpected grouping %+v", groups)
	}

	var buf bytes.Buffer
	sum.Report(&buf)
	out := buf.String()
	for _, s := range []string{"ExtractionFailure (2 errors):", "Failed extractions:           4", "Total Errors: 4"} {
		if !strings.Contains(out, s) {
			t.Errorf("expected report to contain %q", s)
		}
	}
}

func TestRunPersistFailure(t *testing.T) {
	fake := &scriptedLLM{steps: []func(llm.Request) (llm.Completion, error){reply(`{"title":"A"}`)}}
	sink := &memorySink{err: errors.New("disk full")}
	o := New(Deps{LLM: fake, Sink: sink}, Options{}, zerolog.Nop())

	sum, _ := o.Run(context.Background(), []domain.EmailRecord{email("s", "f@x.com", "c")}, nil)
	if sum.Successful != 0 || sum.Failed != 1 || sum.Failures[0].Kind != KindPersist {
		t.Errorf("unexpected summary %+v", sum)
	}
}

func TestRunNoDelayAfterLastEmail(t *testing.T) {
	fake := &scriptedLLM{steps: []func(llm.Request) (llm.Completion, error){reply(`{"title":"A"}`)}}
	o := New(Deps{LLM: fake}, Options{ItemDelay: 300 * time.Millisecond}, zerolog.Nop())

	start := time.Now()
	o.Run(context.Background(), []domain.EmailRecord{email("s", "f@x.com", "c")}, nil)
	if took := time.Since(start); took > 250*time.Millisecond {
		t.Errorf("expected no trailing delay, took %s", took)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	fake := &scriptedLLM{}
	o := New(Deps{LLM: fake}, Options{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, _ := o.Run(ctx, []domain.EmailRecord{email("s", "f@x.com", "c")}, nil)
	if sum.Processed != 0 || len(fake.reqs) != 0 {
		t.Errorf("expected nothing processed, got %+v", sum)
	}
}

func TestRunCadremploiFallsBackToLLM(t *testing.T) {
	fake := &scriptedLLM{steps: []func(llm.Request) (llm.Completion, error){reply(`[{"title":"Directeur"}]`)}}
	cadre := cadremploi.NewExtractor(nil, nil, false, zerolog.Nop())
	reg := extractor.NewRegistry(zerolog.Nop(), cadre)
	o := New(Deps{LLM: fake, Registry: reg, Cadremploi: cadre}, Options{}, zerolog.Nop())

	in := email("Vos offres", "Cadremploi <offres@alertes.cadremploi.fr>", "<html><body>aucune offre</body></html>")
	sum, all := o.Run(context.Background(), []domain.EmailRecord{in}, nil)

	if sum.Successful != 1 || len(fake.reqs) != 1 {
		t.Fatalf("expected llm fallback, got %+v", sum)
	}
	if domain.StrVal(all[0].JobPortalName) != cadremploi.PortalName {
		t.Errorf("expected delegated portal name, got %q", domain.StrVal(all[0].JobPortalName))
	}
}

func TestRunCleansHTMLWhenEnabled(t *testing.T) {
	fake := &scriptedLLM{steps: []func(llm.Request) (llm.Completion, error){reply(`{"title":"A"}`)}}
	o := New(Deps{LLM: fake}, Options{CleanHTML: true}, zerolog.Nop())

	in := email("s", "f@x.com", `<html><head><style>.x{}</style></head><body><script>t()</script><a href="https://a.example.com/1">Job</a></body></html>`)
	o.Run(context.Background(), []domain.EmailRecord{in}, nil)

	user := fake.reqs[0].User
	if strings.Contains(user, "t()") || strings.Contains(user, ".x{}") {
		t.Error("expected scripts and styles stripped")
	}
	if !strings.Contains(user, `href="https://a.example.com/1"`) {
		t.Error("expected anchors kept")
	}
}

type offlineTransport struct{}

func (offlineTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("network unreachable")
}

func TestRunCadremploiRegexFirstWithLongHTMLFlag(t *testing.T) {
	fake := &scriptedLLM{}
	client := fetch.New(fetch.Options{Transport: offlineTransport{}}, zerolog.Nop())
	pages := cadremploi.NewPageParser(client, cadremploi.DefaultSite(), 5, zerolog.Nop())
	resolver := cadremploi.NewResolver(client, pages, cadremploi.ResolverOptions{}, zerolog.Nop())
	cadre := cadremploi.NewExtractor(resolver, pages, true, zerolog.Nop())
	reg := extractor.NewRegistry(zerolog.Nop(), cadre)
	o := New(Deps{LLM: fake, Registry: reg, Cadremploi: cadre}, Options{}, zerolog.Nop())

	tracker := "https://r.emails3.alertes.cadremploi.fr/tr/cl/abc123"
	html := `<html><body><table><a href="` + tracker + `" target="_blank" title="Directeur technique H/F">Directeur technique H/F</a></table></body></html>`
	in := email("Vos offres du jour", "Cadremploi <offres@alertes.cadremploi.fr>", html)

	sum, all := o.Run(context.Background(), []domain.EmailRecord{in}, nil)

	if len(fake.reqs) != 0 {
		t.Errorf("expected no llm call, got %d", len(fake.reqs))
	}
	if sum.Successful != 1 || len(all) != 1 {
		t.Fatalf("expected one regex opportunity, got %+v", sum)
	}
	opp := all[0]
	if domain.StrVal(opp.Title) != "Directeur technique H/F" {
		t.Errorf("expected alert title, got %q", domain.StrVal(opp.Title))
	}
	if domain.StrVal(opp.DescriptionOnPortal) != tracker {
		t.Errorf("expected tracking url kept when offline, got %q", domain.StrVal(opp.DescriptionOnPortal))
	}
	if domain.StrVal(opp.SourceEmailSubject) != in.Subject {
		t.Error("expected provenance stamped")
	}
}

func TestRunLinkedInCardDetailsWin(t *testing.T) {
	fake := &scriptedLLM{steps: []func(llm.Request) (llm.Completion, error){
		reply(`{"title":"Senior Platform Engineer","company":"Acme Holdings","location":"France","salary":null}`),
	}}
	reg := extractor.NewRegistry(zerolog.Nop(), linkedin.Extractor{})
	o := New(Deps{LLM: fake, Registry: reg}, Options{}, zerolog.Nop())

	html := `<html><body><table><tr><td>
<a href="https://www.linkedin.com/comm/jobs/view/4012345678/?trackingId=abc">Senior Platform Engineer</a>
<p>Acme · Paris, Île-de-France</p>
<p>€60K - €75K / year</p>
</td></tr></table></body></html>`
	in := email("Senior Platform Engineer at Acme", "LinkedIn Job Alerts <jobalerts-noreply@linkedin.com>", html)

	sum, all := o.Run(context.Background(), []domain.EmailRecord{in}, nil)
	if sum.Successful != 1 || len(all) != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	opp := all[0]
	if domain.StrVal(opp.Company) != "Acme" {
		t.Errorf("expected company from the card, got %q", domain.StrVal(opp.Company))
	}
	if domain.StrVal(opp.Location) != "Paris, Île-de-France" {
		t.Errorf("expected location from the card, got %q", domain.StrVal(opp.Location))
	}
	if domain.StrVal(opp.Salary) != "€60K - €75K / year" {
		t.Errorf("expected salary from the card, got %q", domain.StrVal(opp.Salary))
	}
	if domain.StrVal(opp.DescriptionOnPortal) != "https://www.linkedin.com/jobs/view/4012345678/" {
		t.Errorf("expected canonical url, got %q", domain.StrVal(opp.DescriptionOnPortal))
	}
	if domain.StrVal(opp.JobPortalName) != linkedin.PortalName {
		t.Errorf("expected portal %q, got %q", linkedin.PortalName, domain.StrVal(opp.JobPortalName))
	}
}
