package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultPath = "data/arb.db"
)

// Store wraps a SQLite DB connection.
type Store struct {
	path string
	db   *sql.DB
}

// Open creates (if needed) and opens the SQLite database, ensuring the schema exists.
func Open(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := ensureWAL(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	s := &Store{path: path, db: db}
	if err := s.CreateTables(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func ensureWAL(db *sql.DB) error {
	const (
		maxAttempts = 5
		delay       = 200 * time.Millisecond
	)
	for i := 0; i < maxAttempts; i++ {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			if strings.Contains(err.Error(), "database is locked") {
				time.Sleep(delay)
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("database is locked after retries")
}

// Path returns the path backing the store.
func (s *Store) Path() string {
	return s.path
}

// Close closes the DB.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateTables ensures the opportunity tables exist.
func (s *Store) CreateTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

// DropTables removes the opportunity tables.
func (s *Store) DropTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS opportunities; DROP TABLE IF EXISTS opportunity_history;`)
	return err
}

// ClearTables truncates the opportunity tables.
func (s *Store) ClearTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM opportunities; DELETE FROM opportunity_history;`)
	return err
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS opportunities (
	match_key TEXT NOT NULL,
	sport TEXT NOT NULL,
	run_id TEXT,
	question TEXT NOT NULL,
	event_date TEXT NOT NULL,
	kalshi TEXT,
	polymarket TEXT,
	leg1_outcome TEXT,
	leg1_venue TEXT,
	leg1_price REAL,
	leg2_outcome TEXT,
	leg2_venue TEXT,
	leg2_price REAL,
	total_cost REAL,
	profit REAL NOT NULL,
	kalshi_link TEXT,
	polymarket_link TEXT,
	detected_at TEXT,
	PRIMARY KEY (sport, match_key)
);
CREATE INDEX IF NOT EXISTS opportunities_profit_idx ON opportunities(sport, profit DESC);
CREATE TABLE IF NOT EXISTS opportunity_history (
	fingerprint TEXT PRIMARY KEY,
	match_key TEXT NOT NULL,
	sport TEXT NOT NULL,
	run_id TEXT,
	question TEXT,
	event_date TEXT,
	kalshi TEXT,
	polymarket TEXT,
	total_cost REAL,
	profit REAL,
	detected_at TEXT,
	recorded_at TEXT
);
CREATE INDEX IF NOT EXISTS opportunity_history_key_idx ON opportunity_history(match_key, detected_at);
`
