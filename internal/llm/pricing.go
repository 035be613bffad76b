package llm

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Price is USD per million tokens.
type Price struct {
	Input  float64
	Output float64
}

const fallbackModel = "gpt-4o-mini"

var prices = map[string]Price{
	"gpt-4o":                 {2.50, 10.00},
	"gpt-4o-2024-11-20":      {2.50, 10.00},
	"gpt-4o-2024-08-06":      {2.50, 10.00},
	"gpt-4o-2024-05-13":      {5.00, 15.00},
	"gpt-4o-mini":            {0.150, 0.600},
	"gpt-4o-mini-2024-07-18": {0.150, 0.600},
	"gpt-4":                  {30.00, 60.00},
	"gpt-4-turbo":            {10.00, 30.00},
	"gpt-4-turbo-2024-04-09": {10.00, 30.00},
	"gpt-4-turbo-preview":    {10.00, 30.00},
	"gpt-4-1106-preview":     {10.00, 30.00},
	"gpt-4-0125-preview":     {10.00, 30.00},
	"gpt-3.5-turbo":          {0.50, 1.50},
	"gpt-3.5-turbo-0125":     {0.50, 1.50},
	"gpt-3.5-turbo-1106":     {1.00, 2.00},
	"gpt-3.5-turbo-instruct": {1.50, 2.00},

	"claude-3-haiku":    {0.25, 1.25},
	"claude-3-5-haiku":  {0.80, 4.00},
	"claude-3-5-sonnet": {3.00, 15.00},
	"claude-3-7-sonnet": {3.00, 15.00},
	"claude-sonnet-4":   {3.00, 15.00},
	"claude-3-opus":     {15.00, 75.00},
	"claude-opus-4":     {15.00, 75.00},
}

// PriceFor looks model up exactly, then by its longest known family prefix
// (dated snapshots like "claude-3-5-haiku-20241022"). Unknown models are
// priced as gpt-4o-mini and reported with known=false.
func PriceFor(model string) (p Price, known bool) {
	m := strings.ToLower(strings.TrimSpace(model))
	if p, ok := prices[m]; ok {
		return p, true
	}
	best := ""
	for name := range prices {
		if strings.HasPrefix(m, name+"-") && len(name) > len(best) {
			best = name
		}
	}
	if best != "" {
		return prices[best], true
	}
	return prices[fallbackModel], false
}

// Cost prices a call. Input and output tokens are billed separately.
func Cost(model string, inputTokens, outputTokens int) (usd float64, known bool) {
	p, known := PriceFor(model)
	usd = float64(inputTokens)/1_000_000*p.Input + float64(outputTokens)/1_000_000*p.Output
	return usd, known
}

func FormatCost(usd float64) string {
	switch {
	case usd < 0.001:
		return fmt.Sprintf("$%.6f", usd)
	case usd < 0.01:
		return fmt.Sprintf("$%.4f", usd)
	case usd < 1.0:
		return fmt.Sprintf("$%.3f", usd)
	default:
		return fmt.Sprintf("$%.2f", usd)
	}
}

// CostSummary aggregates completions across a run. Safe for concurrent use.
type CostSummary struct {
	mu           sync.Mutex
	calls        int
	inputTokens  int
	outputTokens int
	totalCost    float64
	models       map[string]int
}

func NewCostSummary() *CostSummary {
	return &CostSummary{models: make(map[string]int)}
}

func (s *CostSummary) Add(c Completion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.models == nil {
		s.models = make(map[string]int)
	}
	s.calls++
	s.inputTokens += c.InputTokens
	s.outputTokens += c.OutputTokens
	s.totalCost += c.CostUSD
	if c.Model != "" {
		s.models[c.Model]++
	}
}

type CostSnapshot struct {
	Calls        int            `json:"calls"`
	InputTokens  int            `json:"inputTokens"`
	OutputTokens int            `json:"outputTokens"`
	TotalTokens  int            `json:"totalTokens"`
	TotalCostUSD float64        `json:"totalCostUsd"`
	Models       map[string]int `json:"models"`
}

func (s *CostSummary) Snapshot() CostSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	models := make(map[string]int, len(s.models))
	for k, v := range s.models {
		models[k] = v
	}
	return CostSnapshot{
		Calls:        s.calls,
		InputTokens:  s.inputTokens,
		OutputTokens: s.outputTokens,
		TotalTokens:  s.inputTokens + s.outputTokens,
		TotalCostUSD: s.totalCost,
		Models:       models,
	}
}

func (s *CostSummary) Fprint(w io.Writer) {
	snap := s.Snapshot()
	fmt.Fprintln(w, "LLM cost summary")
	fmt.Fprintf(w, "  api calls:     %d\n", snap.Calls)
	fmt.Fprintf(w, "  input tokens:  %d\n", snap.InputTokens)
	fmt.Fprintf(w, "  output tokens: %d\n", snap.OutputTokens)
	fmt.Fprintf(w, "  total tokens:  %d\n", snap.TotalTokens)
	fmt.Fprintf(w, "  total cost:    %s USD\n", FormatCost(snap.TotalCostUSD))

	names := make([]string, 0, len(snap.Models))
	for name := range snap.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  - %s: %d calls\n", name, snap.Models[name])
	}
}
