// Package postgres mirrors published opportunities into a PostgreSQL table
// shaped like the hosted "sports" table.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hetulpatel/sportsarb/internal/arb"
)

const defaultTable = "sports"

// Config holds connection parameters.
type Config struct {
	DSN      string
	Table    string
	MaxConns int
}

// Store writes opportunities through a pgx pool.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

var tableNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Open connects, pings and ensures the table exists.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres: dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	s := &Store{pool: pool, table: table}
	if _, err := pool.Exec(ctx, schemaSQL(table)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: create table: %w", err)
	}
	return s, nil
}

func tableName(raw string) (string, error) {
	if raw == "" {
		return defaultTable, nil
	}
	if !tableNameRe.MatchString(raw) {
		return "", fmt.Errorf("postgres: invalid table name %q", raw)
	}
	return raw, nil
}

func schemaSQL(table string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id BIGSERIAL PRIMARY KEY,
	match_key TEXT NOT NULL,
	sport TEXT NOT NULL,
	run_id TEXT,
	question TEXT NOT NULL,
	date TEXT NOT NULL,
	kalshi TEXT,
	polymarket TEXT,
	total_cost DOUBLE PRECISION,
	profit DOUBLE PRECISION NOT NULL,
	kalshi_link TEXT,
	polymarket_link TEXT,
	detected_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS %[1]s_sport_idx ON %[1]s (sport);`, table)
}

func (s *Store) Name() string {
	return "postgres"
}

// Publish replaces the sport's rows with opps in one transaction.
func (s *Store) Publish(ctx context.Context, sport string, opps []arb.Opportunity) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE sport = $1`, s.table), sport); err != nil {
		return fmt.Errorf("postgres: delete %s: %w", sport, err)
	}

	if len(opps) > 0 {
		batch := &pgx.Batch{}
		insert := insertSQL(s.table)
		for _, o := range opps {
			batch.Queue(insert,
				o.MatchKey, sport, o.RunID, o.Question, o.Date, o.Kalshi, o.Polymarket,
				o.TotalCost, o.Profit, o.KalshiLink, o.PolymarketLink, o.DetectedAt,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("postgres: insert %s: %w", sport, err)
		}
	}
	return tx.Commit(ctx)
}

func insertSQL(table string) string {
	return fmt.Sprintf(`
INSERT INTO %s (
	match_key, sport, run_id, question, date, kalshi, polymarket,
	total_cost, profit, kalshi_link, polymarket_link, detected_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`, table)
}

// Close shuts down the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
