package httpapi

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"jobmail-engine/internal/config"
	"jobmail-engine/internal/keywords"
	"jobmail-engine/internal/rank"
	"jobmail-engine/internal/store"
)

// QueueHandler serves the email queue file written by the search stage.
type QueueHandler struct {
	CfgVal  *atomic.Value // config.Config
	Catalog *keywords.Catalog
	Log     zerolog.Logger
}

func (h QueueHandler) Emails(c echo.Context) error {
	cfg := h.CfgVal.Load().(config.Config)
	emails, err := store.LoadEmails(cfg.EmailsPath())
	if errors.Is(err, store.ErrInputMissing) {
		return WriteError(c, http.StatusNotFound, "not_found", "no email queue yet; run a search first")
	}
	if err != nil {
		return WriteError(c, http.StatusInternalServerError, "queue_read_failed", err.Error())
	}
	return c.JSON(http.StatusOK, emails)
}

type categorySummary struct {
	Name     string   `json:"name"`
	Count    int      `json:"count"`
	Subjects []string `json:"subjects"`
}

// Summary buckets the queued emails the way the CLI report does.
func (h QueueHandler) Summary(c echo.Context) error {
	cfg := h.CfgVal.Load().(config.Config)
	emails := store.LoadEmailsOrEmpty(cfg.EmailsPath(), h.Log)

	buckets := rank.Categorize(emails, h.Catalog)
	out := make([]categorySummary, 0, len(rank.Categories))
	for _, name := range rank.Categories {
		s := categorySummary{Name: name, Count: len(buckets[name]), Subjects: []string{}}
		for _, e := range buckets[name] {
			s.Subjects = append(s.Subjects, e.Subject)
		}
		out = append(out, s)
	}
	return c.JSON(http.StatusOK, map[string]any{"total": len(emails), "categories": out})
}

type OpportunitiesHandler struct {
	DB *store.DB
}

func (h OpportunitiesHandler) List(c echo.Context) error {
	if h.DB == nil {
		return WriteError(c, http.StatusServiceUnavailable, "unavailable", "the SQLite mirror is disabled (paths.db)")
	}
	ctx := c.Request().Context()
	rows, err := h.DB.ListOpportunities(ctx, queryInt(c, "limit", 100))
	if err != nil {
		return WriteError(c, http.StatusInternalServerError, "db_error", err.Error())
	}
	total, err := h.DB.CountOpportunities(ctx)
	if err != nil {
		return WriteError(c, http.StatusInternalServerError, "db_error", err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"total": total, "items": rows})
}
