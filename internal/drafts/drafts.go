// Package drafts writes LLM-generated replies for the best queued emails to
// the mailbox Drafts folder. Nothing is ever sent.
package drafts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"jobmail-engine/internal/domain"
	"jobmail-engine/internal/events"
	"jobmail-engine/internal/llm"
	email_scrape "jobmail-engine/internal/scrape/email"
	"jobmail-engine/internal/scrape/util"
)

const (
	DefaultTopN      = 5
	DefaultMinScore  = 10
	DefaultMaxTokens = 700
	DefaultDelay     = time.Second
)

// Mailbox stores composed drafts.
type Mailbox interface {
	AppendDraft(ctx context.Context, d email_scrape.Draft) error
}

type Publisher interface {
	Emit(runID, typ string, data any)
}

// JobCriteria personalizes the reply prompt. Empty fields are left out.
type JobCriteria struct {
	Position  string `yaml:"position" json:"position"`
	Seniority string `yaml:"seniority" json:"seniority"`
	Location  string `yaml:"location" json:"location"`
	Skills    string `yaml:"skills" json:"skills"`
	MinSalary int    `yaml:"min_salary" json:"minSalary"`
	Remote    bool   `yaml:"remote" json:"remote"`
}

type Options struct {
	TopN      int
	MinScore  int
	Signature string
	Criteria  JobCriteria
	Delay     time.Duration
	MaxTokens int
}

type Failure struct {
	Subject string `json:"subject"`
	Error   string `json:"error"`
}

type Result struct {
	Considered int       `json:"considered"`
	Created    int       `json:"created"`
	Failures   []Failure `json:"failures,omitempty"`
}

type Writer struct {
	llm  llm.Completer
	mb   Mailbox
	pub  Publisher
	opts Options
	log  zerolog.Logger
}

func New(c llm.Completer, mb Mailbox, pub Publisher, opts Options, log zerolog.Logger) *Writer {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.MinScore <= 0 {
		opts.MinScore = DefaultMinScore
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	return &Writer{llm: c, mb: mb, pub: pub, opts: opts, log: log.With().Str("component", "drafts").Logger()}
}

// Select returns at most TopN emails scoring at least MinScore, keeping the
// queue order, which is already sorted by relevance.
func (w *Writer) Select(emails []domain.EmailRecord) []domain.EmailRecord {
	var out []domain.EmailRecord
	for _, e := range emails {
		if len(out) == w.opts.TopN {
			break
		}
		if e.RelevanceScore >= w.opts.MinScore {
			out = append(out, e)
		}
	}
	return out
}

// Run creates one draft per selected email. A failing email is recorded and
// the run moves on.
func (w *Writer) Run(ctx context.Context, emails []domain.EmailRecord) (Result, error) {
	picked := w.Select(emails)
	res := Result{Considered: len(picked)}
	w.log.Info().Int("queued", len(emails)).Int("selected", len(picked)).Int("min_score", w.opts.MinScore).Msg("creating drafts")

	for i, e := range picked {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := w.one(ctx, e); err != nil {
			w.log.Warn().Err(err).Str("subject", util.Truncate(e.Subject, 60)).Msg("draft failed")
			res.Failures = append(res.Failures, Failure{Subject: e.Subject, Error: err.Error()})
		} else {
			res.Created++
		}
		if i < len(picked)-1 && w.opts.Delay > 0 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(w.opts.Delay):
			}
		}
	}
	return res, nil
}

func (w *Writer) one(ctx context.Context, e domain.EmailRecord) error {
	to := ReplyAddress(e.From)
	if to == "" {
		return errors.New("no reply address")
	}
	if w.llm == nil {
		return errors.New("no LLM configured")
	}

	out, err := w.llm.Complete(ctx, llm.Request{
		System:    SystemPrompt(w.opts.Criteria),
		User:      UserPrompt(e.Content, w.opts.Criteria),
		MaxTokens: w.opts.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("generate reply: %w", err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return llm.ErrEmptyResponse
	}

	d := email_scrape.Draft{
		To:        to,
		Subject:   "Re: " + e.Subject,
		Body:      strings.TrimSpace(out.Text),
		Signature: w.opts.Signature,
	}
	if err := w.mb.AppendDraft(ctx, d); err != nil {
		return fmt.Errorf("append draft: %w", err)
	}
	if w.pub != nil {
		w.pub.Emit("", events.DraftCreated, map[string]string{"to": to, "subject": d.Subject})
	}
	return nil
}

// ReplyAddress pulls the address out of "Name <addr>" or returns from as is.
func ReplyAddress(from string) string {
	from = strings.TrimSpace(from)
	if i := strings.Index(from, "<"); i >= 0 {
		if j := strings.Index(from[i:], ">"); j > 0 {
			return strings.TrimSpace(from[i+1 : i+j])
		}
	}
	return from
}

func SystemPrompt(c JobCriteria) string {
	var b strings.Builder
	b.WriteString("You are a senior technology executive responding to job opportunities. ")
	if c.Position != "" {
		fmt.Fprintf(&b, "You are interested in %s roles. ", c.Position)
	}
	if c.Seniority != "" {
		fmt.Fprintf(&b, "You have %s-level experience and are looking for similar positions. ", c.Seniority)
	}
	if c.Location != "" {
		fmt.Fprintf(&b, "You prefer positions in %s. ", c.Location)
	}
	b.WriteString("Generate responses that are professional yet personable, showing genuine interest " +
		"while subtly qualifying the opportunity to ensure it meets your senior-level expectations. " +
		"Be concise but thorough, and always end with a clear next step.")
	return b.String()
}

func UserPrompt(content string, c JobCriteria) string {
	var b strings.Builder
	b.WriteString("Here is an email about a job opportunity. Please analyze it and generate a professional, " +
		"personalized response that shows genuine interest while maintaining professionalism:\n\n")
	b.WriteString("Email 1:\n")
	b.WriteString(content)
	b.WriteString("\n\n")

	b.WriteString("\nImportant points to address in your response:\n")
	if c.Skills != "" {
		fmt.Fprintf(&b, "- Mention relevant experience with: %s\n", c.Skills)
	}
	if c.MinSalary > 0 {
		b.WriteString("- Politely inquire about compensation range to ensure alignment with expectations\n")
	}
	if c.Remote {
		b.WriteString("- Confirm remote work arrangements and flexibility\n")
	}
	b.WriteString("- Ask about the team structure and technical challenges\n")
	b.WriteString("- Express enthusiasm while remaining professional\n")
	return b.String()
}
