package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
)

const DefaultAnthropicModel = "claude-3-5-haiku-latest"

type AnthropicClient struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

func NewAnthropicClient(cfg AnthropicConfig, log zerolog.Logger) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &AnthropicClient{
		client:  anthropic.NewClient(opts...),
		model:   model,
		timeout: timeout,
		log:     log,
	}
}

func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Completion, error) {
	req = withDefaults(req)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(*req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	started := time.Now()
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return Completion{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}

	out := Completion{
		Text:         normalize(text.String()),
		Model:        c.model,
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}
	usd, known := Cost(out.Model, out.InputTokens, out.OutputTokens)
	if !known {
		c.log.Warn().Str("model", out.Model).Msg("unknown model, using gpt-4o-mini pricing")
	}
	out.CostUSD = usd

	if resp.StopReason == anthropic.StopReasonMaxTokens {
		c.log.Warn().Int("max_tokens", req.MaxTokens).Msg("completion cut at token limit")
	}
	c.log.Debug().
		Str("model", c.model).
		Int("input_tokens", out.InputTokens).
		Int("output_tokens", out.OutputTokens).
		Str("cost", FormatCost(out.CostUSD)).
		Dur("took", time.Since(started)).
		Msg("completion")
	return out, nil
}
