package llm

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

const DefaultOpenAIModel = "gpt-4o-mini"

type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

func NewOpenAIClient(cfg OpenAIConfig, log zerolog.Logger) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(oc),
		model:   model,
		timeout: timeout,
		log:     log,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Completion, error) {
	req = withDefaults(req)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	// The request field is omitempty and the API reads a missing temperature
	// as 1, so zero goes out as the smallest positive float32.
	temp := float32(*req.Temperature)
	if temp == 0 {
		temp = math.SmallestNonzeroFloat32
	}

	started := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: temp,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("openai chat completion: %w", err)
	}

	out := Completion{
		Model:        c.model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	out.CostUSD = c.price(out)

	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		out.Text = normalize(choice.Message.Content)
		if choice.FinishReason == openai.FinishReasonLength {
			c.log.Warn().Int("max_tokens", req.MaxTokens).Msg("completion cut at token limit")
		}
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

func (c *OpenAIClient) price(out Completion) float64 {
	usd, known := Cost(out.Model, out.InputTokens, out.OutputTokens)
	if !known {
		c.log.Warn().Str("model", out.Model).Msg("unknown model, using gpt-4o-mini pricing")
	}
	return usd
}
