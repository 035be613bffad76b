package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const schemaVersion = 1

func (d *DB) Migrate(ctx context.Context) error {
	tx, err := d.X.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.GetContext(ctx, &v, `PRAGMA user_version;`); err != nil {
		return err
	}
	if v >= schemaVersion {
		return tx.Commit()
	}

	// ---- Schema v1 ----

	if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS opportunities (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  source_id TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL DEFAULT '',
  company TEXT NOT NULL DEFAULT '',
  portal TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  url TEXT NOT NULL DEFAULT '',
  url_reference_type TEXT NOT NULL DEFAULT '',
  fit_score REAL,
  source_subject TEXT NOT NULL DEFAULT '',
  source_from TEXT NOT NULL DEFAULT '',
  source_date TEXT NOT NULL DEFAULT '',
  payload TEXT NOT NULL DEFAULT '{}',
  created_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
CREATE UNIQUE INDEX IF NOT EXISTS idx_opportunities_source_id
ON opportunities(source_id)
WHERE source_id != '';
`); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
CREATE INDEX IF NOT EXISTS idx_opportunities_created_at
ON opportunities(created_at);
`); err != nil {
		return err
	}

	// Databases created before the payload column was added.
	if !columnExists(ctx, tx, "opportunities", "payload") {
		if _, err := tx.ExecContext(ctx, `ALTER TABLE opportunities ADD COLUMN payload TEXT NOT NULL DEFAULT '{}';`); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

func columnExists(ctx context.Context, q sqlx.QueryerContext, table, col string) bool {
	query := fmt.Sprintf(`
SELECT 1
FROM pragma_table_info('%s')
WHERE name = ?
LIMIT 1;
`, table)

	var one int
	return sqlx.GetContext(ctx, q, &one, query, col) == nil
}
