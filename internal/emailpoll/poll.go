// Package emailpoll is the search stage: it finds candidate job emails in the
// mailbox, scores them and keeps the queue file current.
package emailpoll

import (
	"context"
	"fmt"

	"github.com/emersion/go-imap/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"jobmail-engine/internal/domain"
	"jobmail-engine/internal/events"
	"jobmail-engine/internal/rank"
	email_scrape "jobmail-engine/internal/scrape/email"
	"jobmail-engine/internal/scrape/util"
	"jobmail-engine/internal/store"
)

const (
	DefaultMaxProcess = 10000
	DefaultMaxResults = 100
	DefaultBatchSize  = 25
)

// Mailbox is the part of the IMAP client the search stage needs.
type Mailbox interface {
	Search(ctx context.Context, c email_scrape.Criteria) ([]imap.UID, error)
	FetchContent(ctx context.Context, uids []imap.UID) ([]domain.EmailRecord, error)
}

type Publisher interface {
	Emit(runID, typ string, data any)
}

type Options struct {
	Topic      string
	Keywords   []string // search terms for the IMAP query
	Senders    []string
	DaysBack   int
	MaxProcess int
	MaxResults int
	BatchSize  int
	QueuePath  string
	Publisher  Publisher
}

func (o Options) withDefaults() Options {
	if o.Topic == "" {
		o.Topic = "job"
	}
	if len(o.Keywords) == 0 {
		o.Keywords = []string{o.Topic}
	}
	if o.MaxProcess <= 0 {
		o.MaxProcess = DefaultMaxProcess
	}
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	return o
}

// Result counts what one search did. Emails is the sorted, truncated queue.
type Result struct {
	Matched    int                  `json:"matched"`
	Processed  int                  `json:"processed"`
	Kept       int                  `json:"kept"`
	Rejected   int                  `json:"rejected"`
	Duplicates int                  `json:"duplicates"`
	Emails     []domain.EmailRecord `json:"-"`
}

// RunSearch appends newly found relevant emails to the queue at
// opts.QueuePath. The file is flushed after every kept email so an
// interrupted run loses nothing; the final sorted, truncated list is written
// last.
func RunSearch(ctx context.Context, mb Mailbox, scorer rank.Scorer, opts Options, log zerolog.Logger) (Result, error) {
	opts = opts.withDefaults()
	log = log.With().Str("component", "search").Logger()
	runID := uuid.NewString()

	var res Result
	queue := store.LoadEmailsOrEmpty(opts.QueuePath, log)
	log.Info().Int("existing", len(queue)).Str("topic", opts.Topic).Msg("loaded queue")

	uids, err := mb.Search(ctx, email_scrape.Criteria{
		Keywords: opts.Keywords,
		DaysBack: opts.DaysBack,
		Senders:  opts.Senders,
	})
	if err != nil {
		return res, fmt.Errorf("search: %w", err)
	}
	res.Matched = len(uids)
	if len(uids) > opts.MaxProcess {
		log.Info().Int("matched", len(uids)).Int("max_process", opts.MaxProcess).Msg("limiting processed messages")
		uids = uids[:opts.MaxProcess]
	}

	for start := 0; start < len(uids); start += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		end := min(start+opts.BatchSize, len(uids))

		batch, err := mb.FetchContent(ctx, uids[start:end])
		if err != nil {
			return res, fmt.Errorf("fetch: %w", err)
		}

		for _, rec := range batch {
			res.Processed++
			rec.RelevanceScore = scorer.Score(rec, opts.Topic)

			l := log.Debug().Int("n", res.Processed).Str("subject", util.Truncate(rec.Subject, 60)).Int("score", rec.RelevanceScore)
			switch {
			case rec.RelevanceScore <= 0:
				res.Rejected++
				l.Msg("rejected")
				continue
			case rank.IsDuplicate(rec, queue):
				res.Duplicates++
				l.Msg("duplicate")
				continue
			}

			queue = append(queue, rec)
			res.Kept++
			l.Msg("kept")
			if err := store.SaveEmails(opts.QueuePath, queue); err != nil {
				return res, fmt.Errorf("save queue: %w", err)
			}
		}
	}

	rank.SortByRelevance(queue)
	if len(queue) > opts.MaxResults {
		queue = queue[:opts.MaxResults]
	}
	if err := store.SaveEmails(opts.QueuePath, queue); err != nil {
		return res, fmt.Errorf("save queue: %w", err)
	}
	res.Emails = queue

	log.Info().
		Int("matched", res.Matched).
		Int("processed", res.Processed).
		Int("kept", res.Kept).
		Int("rejected", res.Rejected).
		Int("duplicates", res.Duplicates).
		Int("queue", len(queue)).
		Msg("search done")

	if opts.Publisher != nil {
		opts.Publisher.Emit(runID, events.SearchDone, res)
	}
	return res, nil
}
