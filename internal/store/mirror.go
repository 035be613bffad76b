package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"jobmail-engine/internal/domain"
)

// Mirror persists extraction output: the JSON file first, then the SQLite
// mirror when one is configured.
type Mirror struct {
	path string
	db   *DB
	log  zerolog.Logger
}

func NewMirror(path string, db *DB, log zerolog.Logger) *Mirror {
	return &Mirror{path: path, db: db, log: log}
}

func (m *Mirror) Save(ctx context.Context, opps []domain.JobOpportunity) error {
	if err := SaveOpportunities(m.path, opps); err != nil {
		return fmt.Errorf("save %s: %w", m.path, err)
	}
	if m.db == nil {
		return nil
	}
	added, err := m.db.InsertOpportunities(ctx, opps)
	if err != nil {
		return fmt.Errorf("mirror to sqlite: %w", err)
	}
	if added > 0 {
		m.log.Debug().Int("added", added).Msg("opportunities mirrored")
	}
	return nil
}
