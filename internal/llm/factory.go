package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	Breaker   bool
	TripAfter uint32
}

// New builds the Completer for cfg.Provider, wrapped in a circuit breaker when
// asked to.
func New(cfg Config, log zerolog.Logger) (Completer, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderOpenAI
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("llm: api key is required for provider %q", provider)
	}

	var c Completer
	switch provider {
	case ProviderOpenAI:
		c = NewOpenAIClient(OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout}, log)
	case ProviderAnthropic:
		c = NewAnthropicClient(AnthropicConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout}, log)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}

	if cfg.Breaker {
		c = NewBreaker("llm-"+provider, c, cfg.TripAfter, log)
	}
	return c, nil
}
