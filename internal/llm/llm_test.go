package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

func TestIsApology(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", true},
		{"   ", true},
		{".", true},
		{"...", true},
		{"I apologize, I don't have an answer for you at the moment.", true},
		{"[]", false},
		{`{"title":"x"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := IsApology(tt.text); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCost(t *testing.T) {
	tests := []struct {
		name      string
		model     string
		in, out   int
		want      float64
		wantKnown bool
	}{
		{"mini", "gpt-4o-mini", 1_000_000, 1_000_000, 0.75, true},
		{"case insensitive", "GPT-4o", 1_000_000, 0, 2.50, true},
		{"dated snapshot", "claude-3-5-haiku-20241022", 0, 1_000_000, 4.00, true},
		{"exact beats prefix", "gpt-4o-2024-05-13", 1_000_000, 0, 5.00, true},
		{"unknown falls back", "mystery-model", 1_000_000, 1_000_000, 0.75, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, known := Cost(tt.model, tt.in, tt.out)
			if known != tt.wantKnown {
				t.Errorf("expected known=%v, got %v", tt.wantKnown, known)
			}
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("expected %f, got %f", tt.want, got)
			}
		})
	}
}

func TestFormatCost(t *testing.T) {
	tests := []struct {
		usd  float64
		want string
	}{
		{0.0001234, "$0.000123"},
		{0.005, "$0.0050"},
		{0.25, "$0.250"},
		{12.3456, "$12.35"},
	}
	for _, tt := range tests {
		if got := FormatCost(tt.usd); got != tt.want {
			t.Errorf("FormatCost(%v): expected %q, got %q", tt.usd, tt.want, got)
		}
	}
}

func TestCostSummaryConcurrent(t *testing.T) {
	s := NewCostSummary()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Add(Completion{Model: "gpt-4o-mini", InputTokens: 10, OutputTokens: 5, CostUSD: 0.001})
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	if snap.Calls != 50 || snap.TotalTokens != 750 || snap.Models["gpt-4o-mini"] != 50 {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	var buf bytes.Buffer
	s.Fprint(&buf)
	if !strings.Contains(buf.String(), "gpt-4o-mini: 50 calls") {
		t.Errorf("expected per-model line, got %q", buf.String())
	}
}

func TestCleanHTML(t *testing.T) {
	raw := `<!DOCTYPE html><html><head><title>Alert</title><style>p{}</style></head>
<body><!-- tracking --><script>track()</script>
<p>Offer: <a href="https://jobs.example.com/o/1">Lead Dev</a></p><svg><path d="M0"/></svg>
<noscript>enable js</noscript></body></html>`

	got, err := CleanHTML(raw)
	if err != nil {
		t.Fatal(err)
	}
	for _, gone := range []string{"track()", "tracking", "<title>", "p{}", "<svg", "enable js"} {
		if strings.Contains(got, gone) {
			t.Errorf("expected %q removed, got %q", gone, got)
		}
	}
	if !strings.Contains(got, `href="https://jobs.example.com/o/1"`) || !strings.Contains(got, "Lead Dev") {
		t.Errorf("expected anchor kept, got %q", got)
	}
}

func TestOpenAIClientComplete(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4o-mini",
"choices":[{"index":0,"message":{"role":"assistant","content":"[{\"title\":\"Dev\"}]"},"finish_reason":"stop"}],
"usage":{"prompt_tokens":1000,"completion_tokens":200,"total_tokens":1200}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL}, zerolog.Nop())
	got, err := c.Complete(context.Background(), Request{System: "sys", User: "usr", Temperature: Temp(0)})
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != `[{"title":"Dev"}]` {
		t.Errorf("unexpected text %q", got.Text)
	}
	if got.InputTokens != 1000 || got.OutputTokens != 200 || got.Model != "gpt-4o-mini" {
		t.Errorf("unexpected usage %+v", got)
	}
	if got.CostUSD <= 0 {
		t.Errorf("expected a cost, got %f", got.CostUSD)
	}
	if gotBody["max_tokens"] != float64(DefaultMaxTokens) {
		t.Errorf("expected default max tokens, got %v", gotBody["max_tokens"])
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Errorf("expected system and user messages, got %d", len(msgs))
	}
	if temp, ok := gotBody["temperature"].(float64); !ok || temp <= 0 || temp > 1e-6 {
		t.Errorf("expected a near-zero temperature on the wire, got %v", gotBody["temperature"])
	}
}

func TestWithDefaultsKeepsZeroTemperature(t *testing.T) {
	got := withDefaults(Request{Temperature: Temp(0)})
	if got.Temperature == nil || *got.Temperature != 0 {
		t.Errorf("expected temperature 0 kept, got %v", got.Temperature)
	}
	got = withDefaults(Request{})
	if got.Temperature == nil || *got.Temperature != DefaultTemperature {
		t.Errorf("expected default temperature, got %v", got.Temperature)
	}
}

func TestOpenAIClientApologyIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"..."}}],"usage":{"prompt_tokens":1,"completion_tokens":1}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL}, zerolog.Nop())
	got, err := c.Complete(context.Background(), Request{User: "u"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "" {
		t.Errorf("expected empty text, got %q", got.Text)
	}
}

func TestAnthropicClientComplete(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",
"content":[{"type":"text","text":"{\"title\":\"Dev\"}"}],"stop_reason":"end_turn",
"usage":{"input_tokens":300,"output_tokens":40}}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient(AnthropicConfig{APIKey: "k", BaseURL: srv.URL}, zerolog.Nop())
	got, err := c.Complete(context.Background(), Request{System: "sys", User: "usr", MaxTokens: 1000, Temperature: Temp(0)})
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != `{"title":"Dev"}` || got.InputTokens != 300 || got.OutputTokens != 40 {
		t.Errorf("unexpected completion %+v", got)
	}
	if gotBody["max_tokens"] != float64(1000) {
		t.Errorf("expected max_tokens 1000, got %v", gotBody["max_tokens"])
	}
	if _, ok := gotBody["system"]; !ok {
		t.Error("expected system prompt in request")
	}
	if temp, ok := gotBody["temperature"]; !ok || temp != float64(0) {
		t.Errorf("expected temperature 0, got %v", temp)
	}
}

type failingCompleter struct{ calls int }

func (f *failingCompleter) Complete(context.Context, Request) (Completion, error) {
	f.calls++
	return Completion{}, errors.New("upstream down")
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	next := &failingCompleter{}
	b := NewBreaker("test", next, 2, zerolog.Nop())

	for i := 0; i < 2; i++ {
		if _, err := b.Complete(context.Background(), Request{}); err == nil {
			t.Fatal("expected error")
		}
	}
	_, err := b.Complete(context.Background(), Request{})
	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("expected open breaker, got %v", err)
	}
	if next.calls != 2 {
		t.Errorf("expected 2 upstream calls, got %d", next.calls)
	}
	if b.State() != gobreaker.StateOpen {
		t.Errorf("expected open state, got %s", b.State())
	}
}

func TestNew(t *testing.T) {
	if _, err := New(Config{Provider: "openai"}, zerolog.Nop()); err == nil {
		t.Error("expected error without api key")
	}
	if _, err := New(Config{Provider: "mistral", APIKey: "k"}, zerolog.Nop()); err == nil {
		t.Error("expected error for unknown provider")
	}

	c, err := New(Config{Provider: "Anthropic", APIKey: "k"}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*AnthropicClient); !ok {
		t.Errorf("expected *AnthropicClient, got %T", c)
	}

	c, err = New(Config{APIKey: "k", Breaker: true}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*Breaker); !ok {
		t.Errorf("expected *Breaker, got %T", c)
	}
}
