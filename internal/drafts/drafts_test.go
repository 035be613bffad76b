package drafts

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"jobmail-engine/internal/domain"
	"jobmail-engine/internal/llm"
	email_scrape "jobmail-engine/internal/scrape/email"
)

type fakeLLM struct {
	reqs []llm.Request
	fail map[string]bool // by substring of the user prompt
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (llm.Completion, error) {
	f.reqs = append(f.reqs, req)
	for k := range f.fail {
		if strings.Contains(req.User, k) {
			return llm.Completion{}, errors.New("rate limited")
		}
	}
	return llm.Completion{Text: "  Merci, je suis intéressé.  "}, nil
}

type fakeMailbox struct{ drafts []email_scrape.Draft }

func (f *fakeMailbox) AppendDraft(_ context.Context, d email_scrape.Draft) error {
	f.drafts = append(f.drafts, d)
	return nil
}

func TestReplyAddress(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Jane Recruiter <jane@acme.fr>", "jane@acme.fr"},
		{"jane@acme.fr", "jane@acme.fr"},
		{"  <jobs@x.io>  ", "jobs@x.io"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ReplyAddress(tt.in); got != tt.want {
			t.Errorf("ReplyAddress(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestRun(t *testing.T) {
	emails := []domain.EmailRecord{
		{From: "A <a@acme.fr>", Subject: "CTO role", Content: "content-a", RelevanceScore: 25},
		{From: "b@globex.com", Subject: "VP Eng", Content: "content-b", RelevanceScore: 18},
		{From: "c@initech.com", Subject: "Head of", Content: "content-c", RelevanceScore: 15},
		{From: "d@low.com", Subject: "meh", Content: "content-d", RelevanceScore: 4},
	}
	c := &fakeLLM{fail: map[string]bool{"content-b": true}}
	mb := &fakeMailbox{}

	w := New(c, mb, nil, Options{
		TopN:      5,
		MinScore:  10,
		Signature: "Best regards,\nMe",
		Criteria:  JobCriteria{Position: "CTO", Skills: "Go, Kubernetes", Remote: true},
	}, zerolog.Nop())

	res, err := w.Run(context.Background(), emails)
	if err != nil {
		t.Fatal(err)
	}
	if res.Considered != 3 || res.Created != 2 || len(res.Failures) != 1 || res.Failures[0].Subject != "VP Eng" {
		t.Errorf("unexpected result %+v", res)
	}
	if len(mb.drafts) != 2 {
		t.Fatalf("expected 2 drafts, got %d", len(mb.drafts))
	}
	d := mb.drafts[0]
	if d.To != "a@acme.fr" || d.Subject != "Re: CTO role" || d.Body != "Merci, je suis intéressé." || d.Signature != "Best regards,\nMe" {
		t.Errorf("unexpected draft %+v", d)
	}

	req := c.reqs[0]
	if req.MaxTokens != DefaultMaxTokens {
		t.Errorf("expected max tokens %d, got %d", DefaultMaxTokens, req.MaxTokens)
	}
	if !strings.Contains(req.System, "interested in CTO roles") {
		t.Errorf("unexpected system prompt %q", req.System)
	}
	if !strings.Contains(req.User, "Mention relevant experience with: Go, Kubernetes") || !strings.Contains(req.User, "remote work") {
		t.Errorf("unexpected user prompt %q", req.User)
	}
	if strings.Contains(req.User, "compensation") {
		t.Error("expected no salary line without min salary")
	}
}

func TestSelectTopN(t *testing.T) {
	w := New(nil, &fakeMailbox{}, nil, Options{TopN: 1}, zerolog.Nop())
	got := w.Select([]domain.EmailRecord{{Subject: "a", RelevanceScore: 9}, {Subject: "b", RelevanceScore: 12}, {Subject: "c", RelevanceScore: 30}})
	if len(got) != 1 || got[0].Subject != "b" {
		t.Errorf("expected first email above default min score, got %+v", got)
	}
}
