package extractor

import (
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"jobmail-engine/internal/domain"
)

type stubExtractor struct {
	name   string
	match  string
	result Result
	panics bool
}

func (s stubExtractor) Name() string { return s.name }

func (s stubExtractor) CanHandle(from, _ string) bool { return strings.Contains(from, s.match) }

func (s stubExtractor) ExtractURLs(string, string) Result {
	if s.panics {
		panic("boom")
	}
	return s.result
}

func TestDefaultExtractor(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		ok      bool
	}{
		{name: "first url wins", content: "See https://jobs.acme.io/42. Or http://other.io", want: "https://jobs.acme.io/42", ok: true},
		{name: "punctuation stripped", content: "(https://a.io/x);", want: "https://a.io/x", ok: true},
		{name: "uppercase scheme", content: "HTTPS://A.IO/job", want: "HTTPS://A.IO/job", ok: false},
		{name: "html attribute", content: `<a href="https://a.io/job?id=1">x</a>`, want: "https://a.io/job?id=1", ok: true},
		{name: "no url", content: "no links here", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Default{}.ExtractURLs(tt.content, "")
			if res.Success != tt.ok {
				t.Fatalf("expected success=%v, got %v (%s)", tt.ok, res.Success, res.Error)
			}
			if tt.ok && res.DescriptionOnPortal != tt.want {
				t.Errorf("expected %q, got %q", tt.want, res.DescriptionOnPortal)
			}
			if res.Method != domain.MethodRegex {
				t.Errorf("expected REGEX method, got %s", res.Method)
			}
		})
	}
}

func TestRegistryDispatch(t *testing.T) {
	portal := stubExtractor{
		name:   "portal",
		match:  "@portal.io",
		result: Result{Portal: "Portal", DescriptionOnPortal: "https://portal.io/1", Success: true, Method: domain.MethodRegex},
	}
	delegating := stubExtractor{
		name:   "delegating",
		match:  "@alerts.io",
		result: Failure("Alerts", domain.MethodLLM, "needs llm"),
	}
	r := NewRegistry(zerolog.Nop(), portal, delegating)

	t.Run("specialized resolved", func(t *testing.T) {
		out := r.Extract("jobs@portal.io", "s", "body")
		res, ok := out.(Resolved)
		if !ok {
			t.Fatalf("expected Resolved, got %T", out)
		}
		if res.Result.Portal != "Portal" {
			t.Errorf("expected portal name, got %q", res.Result.Portal)
		}
	})

	t.Run("specialized delegates", func(t *testing.T) {
		out := r.Extract("x@alerts.io", "s", "body https://ignored.io")
		d, ok := out.(Delegate)
		if !ok {
			t.Fatalf("expected Delegate, got %T", out)
		}
		if d.Portal != "Alerts" || d.Reason != "needs llm" {
			t.Errorf("unexpected delegate %+v", d)
		}
		if PortalOf(out) != "Alerts" {
			t.Errorf("expected PortalOf to report Alerts")
		}
	})

	t.Run("default resolves", func(t *testing.T) {
		out := r.Extract("someone@else.io", "s", "visit https://acme.io/jobs/1")
		res, ok := out.(Resolved)
		if !ok {
			t.Fatalf("expected Resolved, got %T", out)
		}
		if res.Result.DescriptionOnPortal != "https://acme.io/jobs/1" {
			t.Errorf("unexpected url %q", res.Result.DescriptionOnPortal)
		}
	})

	t.Run("default delegates without url", func(t *testing.T) {
		if _, ok := r.Extract("someone@else.io", "s", "plain text").(Delegate); !ok {
			t.Fatal("expected Delegate")
		}
	})

	t.Run("empty content fails", func(t *testing.T) {
		out := r.Extract("jobs@portal.io", "s", "   ")
		f, ok := out.(Failed)
		if !ok {
			t.Fatalf("expected Failed, got %T", out)
		}
		if !errors.Is(f.Err, ErrEmptyContent) {
			t.Errorf("expected ErrEmptyContent, got %v", f.Err)
		}
	})
}

func TestRegistryRecoversPanics(t *testing.T) {
	r := NewRegistry(zerolog.Nop(), stubExtractor{name: "bad", match: "@bad.io", panics: true})
	out := r.Extract("x@bad.io", "s", "body")
	if _, ok := out.(Failed); !ok {
		t.Fatalf("expected Failed, got %T", out)
	}
}
