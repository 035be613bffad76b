package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"jobmail-engine/internal/domain"
)

// ErrInputMissing means the stage input file does not exist yet, usually
// because the search stage has not run.
var ErrInputMissing = errors.New("input file not found")

// LoadEmails reads the email queue written by the search stage.
func LoadEmails(path string) ([]domain.EmailRecord, error) {
	var out []domain.EmailRecord
	if err := readJSON(path, &out); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputMissing, path)
		}
		return nil, fmt.Errorf("read email queue: %w", err)
	}
	return out, nil
}

// LoadEmailsOrEmpty is LoadEmails for callers that are about to create the
// queue anyway.
func LoadEmailsOrEmpty(path string, log zerolog.Logger) []domain.EmailRecord {
	out, err := LoadEmails(path)
	if err != nil {
		if !errors.Is(err, ErrInputMissing) {
			log.Warn().Err(err).Str("path", path).Msg("email queue unreadable, starting fresh")
		}
		return []domain.EmailRecord{}
	}
	return out
}

func SaveEmails(path string, emails []domain.EmailRecord) error {
	if emails == nil {
		emails = []domain.EmailRecord{}
	}
	return writeJSONAtomic(path, emails)
}

// LoadOpportunities reads previous extraction output for resuming. A missing
// file is an empty list; a corrupt one is logged and ignored.
func LoadOpportunities(path string, log zerolog.Logger) []domain.JobOpportunity {
	var out []domain.JobOpportunity
	if err := readJSON(path, &out); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("could not load existing opportunities, starting fresh")
		}
		return []domain.JobOpportunity{}
	}
	return out
}

func SaveOpportunities(path string, opps []domain.JobOpportunity) error {
	if opps == nil {
		opps = []domain.JobOpportunity{}
	}
	return writeJSONAtomic(path, opps)
}

func readJSON(path string, v any) error {
	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err == nil {
		defer func() { _ = lock.Unlock() }()
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// writeJSONAtomic replaces path under an advisory lock so a concurrent reader
// never sees a half-written file.
func writeJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = lock.Unlock() }()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
