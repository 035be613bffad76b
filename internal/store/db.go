package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DB is the SQLite mirror of the opportunities file. The JSON files stay the
// source of truth; the mirror serves queries.
type DB struct {
	X *sqlx.DB
}

// Open opens path, or an in-memory database for ":memory:".
func Open(path string) (*DB, error) {
	memory := path == ":memory:"

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	if memory {
		dsn = ":memory:"
	}

	x, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// sqlite wants a single writer, and an in-memory database lives only as
	// long as its one connection.
	x.SetMaxOpenConns(1)
	if !memory {
		x.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := x.PingContext(ctx); err != nil {
		_ = x.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	return &DB{X: x}, nil
}

// OpenMigrated opens path and brings its schema up to date.
func OpenMigrated(ctx context.Context, path string) (*DB, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

func (d *DB) Close() error {
	if d == nil || d.X == nil {
		return nil
	}
	return d.X.Close()
}
