// Package llm talks to chat-completion providers. Every provider sits behind
// Completer so the extraction and draft stages never see an SDK type.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	DefaultTimeout     = 60 * time.Second
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 6000

	// apology is what a provider hands back when it has nothing useful to say.
	apology = "I apologize, I don't have an answer for you at the moment."
)

var ErrEmptyResponse = errors.New("LLM returned null or empty response")

type Request struct {
	System string
	User   string
	// Temperature nil means DefaultTemperature. Zero is sent as zero.
	Temperature *float64
	MaxTokens   int
}

// Temp is a helper for Request.Temperature.
func Temp(v float64) *float64 { return &v }

type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	Model        string
}

func (c Completion) TotalTokens() int { return c.InputTokens + c.OutputTokens }

// Completer sends one system+user exchange. An empty Text with a nil error
// means the provider answered but said nothing usable.
type Completer interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}

// IsApology reports whether text carries no answer: empty, a lone ellipsis,
// or the provider's stock apology.
func IsApology(text string) bool {
	t := strings.TrimSpace(text)
	switch t {
	case "", ".", "...":
		return true
	}
	return strings.Contains(t, apology)
}

func normalize(text string) string {
	if IsApology(text) {
		return ""
	}
	return text
}

func withDefaults(req Request) Request {
	if req.Temperature == nil {
		req.Temperature = Temp(DefaultTemperature)
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	return req
}
