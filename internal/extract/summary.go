package extract

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"jobmail-engine/internal/domain"
	"jobmail-engine/internal/llm"
	"jobmail-engine/internal/scrape/util"
)

type FailureKind string

const (
	KindExtraction FailureKind = "ExtractionFailure"
	KindLLM        FailureKind = "LLMError"
	KindPersist    FailureKind = "PersistError"
	KindPanic      FailureKind = "Panic"
)

type Failure struct {
	Subject string      `json:"subject"`
	From    string      `json:"from"`
	Message string      `json:"message"`
	Kind    FailureKind `json:"kind"`
}

type Summary struct {
	RunID         string           `json:"runId"`
	Total         int              `json:"total"`
	Processed     int              `json:"processed"`
	Skipped       int              `json:"skipped"`
	Successful    int              `json:"successful"`
	Failed        int              `json:"failed"`
	Opportunities int              `json:"opportunities"`
	Failures      []Failure        `json:"failures"`
	Cost          llm.CostSnapshot `json:"cost"`
	Duration      time.Duration    `json:"durationNs"`
}

// NewlyProcessed counts emails that were not skipped.
func (s Summary) NewlyProcessed() int { return s.Processed - s.Skipped }

func (s *Summary) fail(e domain.EmailRecord, err error) {
	s.Failed++
	s.Failures = append(s.Failures, Failure{
		Subject: e.Subject,
		From:    e.From,
		Message: err.Error(),
		Kind:    kindOf(err),
	})
}

func kindOf(err error) FailureKind {
	var (
		ex errExtraction
		pe persistError
		pa panicError
	)
	switch {
	case errors.As(err, &pa):
		return KindPanic
	case errors.As(err, &pe):
		return KindPersist
	case errors.As(err, &ex):
		return KindExtraction
	}
	return KindLLM
}

type FailureGroup struct {
	Kind     FailureKind
	Failures []Failure
}

// FailuresByKind groups failures in order of each kind's first occurrence.
func (s Summary) FailuresByKind() []FailureGroup {
	var out []FailureGroup
	idx := map[FailureKind]int{}
	for _, f := range s.Failures {
		i, ok := idx[f.Kind]
		if !ok {
			i = len(out)
			idx[f.Kind] = i
			out = append(out, FailureGroup{Kind: f.Kind})
		}
		out[i].Failures = append(out[i].Failures, f)
	}
	return out
}

func (s Summary) Report(w io.Writer) {
	rule := strings.Repeat("=", 70)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "EXTRACTION SUMMARY")
	fmt.Fprintf(w, "  Total emails in input:        %d\n", s.Total)
	fmt.Fprintf(w, "  Already processed (skipped):  %d\n", s.Skipped)
	fmt.Fprintf(w, "  Newly processed:              %d\n", s.NewlyProcessed())
	fmt.Fprintf(w, "  Successfully extracted:       %d\n", s.Successful)
	fmt.Fprintf(w, "  Failed extractions:           %d\n", s.Failed)
	fmt.Fprintf(w, "  Total opportunities in file:  %d\n", s.Opportunities)
	fmt.Fprintln(w, rule)

	if len(s.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "ERROR REPORT")
		fmt.Fprintf(w, "Total Errors: %d\n\n", len(s.Failures))
		for _, g := range s.FailuresByKind() {
			fmt.Fprintf(w, "%s (%d errors):\n", g.Kind, len(g.Failures))
			fmt.Fprintln(w, strings.Repeat("-", 70))
			for i, f := range g.Failures {
				fmt.Fprintf(w, "  [%d] %s\n", i+1, util.Truncate(f.Subject, 55))
				fmt.Fprintf(w, "      From: %s\n", util.Truncate(f.From, 50))
				fmt.Fprintf(w, "      Error: %s\n\n", util.Truncate(f.Message, 60))
			}
		}
		fmt.Fprintln(w, rule)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "LLM cost summary")
	fmt.Fprintf(w, "  api calls:     %d\n", s.Cost.Calls)
	fmt.Fprintf(w, "  total tokens:  %d (in %d, out %d)\n", s.Cost.TotalTokens, s.Cost.InputTokens, s.Cost.OutputTokens)
	fmt.Fprintf(w, "  total cost:    %s USD\n", llm.FormatCost(s.Cost.TotalCostUSD))
}
