package store

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"jobmail-engine/internal/domain"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Opportunity is one mirrored record as served by the API.
type Opportunity struct {
	ID               int64           `db:"id" json:"id"`
	Title            string          `db:"title" json:"title"`
	Company          string          `db:"company" json:"company"`
	Portal           string          `db:"portal" json:"portal"`
	Location         string          `db:"location" json:"location"`
	URL              string          `db:"url" json:"url"`
	URLReferenceType string          `db:"url_reference_type" json:"urlReferenceType"`
	FitScore         sql.NullFloat64 `db:"fit_score" json:"-"`
	SourceSubject    string          `db:"source_subject" json:"sourceSubject"`
	SourceFrom       string          `db:"source_from" json:"sourceFrom"`
	SourceDate       string          `db:"source_date" json:"sourceDate"`
	CreatedAt        string          `db:"created_at" json:"createdAt"`

	Score *float64 `db:"-" json:"fitScore"`
}

// SourceID identifies a record across runs: same email, same title, same
// target URL.
func SourceID(o domain.JobOpportunity) string {
	key := strings.Join([]string{
		domain.StrVal(o.SourceEmailSubject),
		domain.StrVal(o.SourceEmailFrom),
		strings.ToLower(domain.StrVal(o.Title)),
		primaryURL(o),
	}, "|")
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

func primaryURL(o domain.JobOpportunity) string {
	for _, p := range []*string{o.DescriptionOnPortal, o.ApplyOnPortal, o.DescriptionOnCompany, o.ApplyOnCompany} {
		if v := domain.StrVal(p); v != "" {
			return v
		}
	}
	return ""
}

// InsertOpportunities mirrors opps, ignoring records already present. It
// returns how many rows were new.
func (d *DB) InsertOpportunities(ctx context.Context, opps []domain.JobOpportunity) (added int, err error) {
	tx, err := d.X.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, o := range opps {
		payload, err := json.Marshal(o)
		if err != nil {
			return 0, fmt.Errorf("encode opportunity: %w", err)
		}
		var ref string
		if o.URLReferenceType != nil {
			ref = string(*o.URLReferenceType)
		}
		var fit sql.NullFloat64
		if o.FitScore != nil {
			fit = sql.NullFloat64{Float64: *o.FitScore, Valid: true}
		}

		// relies on unique index on source_id WHERE source_id != ''
		res, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO opportunities
  (source_id, title, company, portal, location, url, url_reference_type, fit_score,
   source_subject, source_from, source_date, payload, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
			SourceID(o),
			domain.StrVal(o.Title),
			domain.StrVal(o.Company),
			domain.StrVal(o.JobPortalName),
			domain.StrVal(o.Location),
			primaryURL(o),
			ref,
			fit,
			domain.StrVal(o.SourceEmailSubject),
			domain.StrVal(o.SourceEmailFrom),
			domain.StrVal(o.SourceEmailDate),
			string(payload),
			now,
		)
		if err != nil {
			return 0, fmt.Errorf("insert opportunity: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			added++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

// ListOpportunities returns the newest mirrored records first.
func (d *DB) ListOpportunities(ctx context.Context, limit int) ([]Opportunity, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var out []Opportunity
	err := d.X.SelectContext(ctx, &out, `
SELECT id, title, company, portal, location, url, url_reference_type, fit_score,
       source_subject, source_from, source_date, created_at
FROM opportunities
ORDER BY id DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}
	for i := range out {
		if out[i].FitScore.Valid {
			f := out[i].FitScore.Float64
			out[i].Score = &f
		}
	}
	return out, nil
}

func (d *DB) CountOpportunities(ctx context.Context) (int, error) {
	var n int
	if err := d.X.GetContext(ctx, &n, `SELECT COUNT(*) FROM opportunities;`); err != nil {
		return 0, fmt.Errorf("count opportunities: %w", err)
	}
	return n, nil
}

// PruneOpportunities drops mirrored rows older than age. The JSON file is
// left alone.
func (d *DB) PruneOpportunities(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-age).Format(time.RFC3339)
	res, err := d.X.ExecContext(ctx, `DELETE FROM opportunities WHERE created_at < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune opportunities: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
