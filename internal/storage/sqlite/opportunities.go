package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hetulpatel/sportsarb/internal/arb"
	"github.com/hetulpatel/sportsarb/internal/collectors"
	"github.com/hetulpatel/sportsarb/internal/hashutil"
)

func (s *Store) Name() string {
	return "sqlite"
}

// Publish replaces the sport's current opportunities with opps.
func (s *Store) Publish(ctx context.Context, sport string, opps []arb.Opportunity) error {
	return s.ReplaceOpportunities(ctx, sport, opps)
}

// ReplaceOpportunities deletes the sport's rows and inserts opps in one transaction.
func (s *Store) ReplaceOpportunities(ctx context.Context, sport string, opps []arb.Opportunity) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialized")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM opportunities WHERE sport = ?`, sport); err != nil {
		tx.Rollback()
		return fmt.Errorf("delete %s: %w", sport, err)
	}
	stmt, err := tx.PrepareContext(ctx, insertOpportunitySQL)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, o := range opps {
		if _, err := stmt.ExecContext(ctx,
			o.MatchKey, sport, o.RunID, o.Question, o.Date, o.Kalshi, o.Polymarket,
			o.Legs[0].Outcome, string(o.Legs[0].Venue), o.Legs[0].Price,
			o.Legs[1].Outcome, string(o.Legs[1].Venue), o.Legs[1].Price,
			o.TotalCost, o.Profit, o.KalshiLink, o.PolymarketLink, formatTime(o.DetectedAt),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %s: %w", o.MatchKey, err)
		}
	}
	return tx.Commit()
}

const insertOpportunitySQL = `
INSERT OR REPLACE INTO opportunities (
	match_key, sport, run_id, question, event_date, kalshi, polymarket,
	leg1_outcome, leg1_venue, leg1_price, leg2_outcome, leg2_venue, leg2_price,
	total_cost, profit, kalshi_link, polymarket_link, detected_at
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
`

// ListOpportunities returns the sport's current opportunities, best first.
func (s *Store) ListOpportunities(ctx context.Context, sport string) ([]arb.Opportunity, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT match_key, sport, run_id, question, event_date, kalshi, polymarket,
	leg1_outcome, leg1_venue, leg1_price, leg2_outcome, leg2_venue, leg2_price,
	total_cost, profit, kalshi_link, polymarket_link, detected_at
FROM opportunities WHERE sport = ? ORDER BY profit DESC, match_key`, sport)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []arb.Opportunity
	for rows.Next() {
		var (
			o                  arb.Opportunity
			runID, detectedAt  sql.NullString
			venue1, venue2     string
			kalshi, polymarket sql.NullString
			kLink, pLink       sql.NullString
		)
		if err := rows.Scan(
			&o.MatchKey, &o.Sport, &runID, &o.Question, &o.Date, &kalshi, &polymarket,
			&o.Legs[0].Outcome, &venue1, &o.Legs[0].Price,
			&o.Legs[1].Outcome, &venue2, &o.Legs[1].Price,
			&o.TotalCost, &o.Profit, &kLink, &pLink, &detectedAt,
		); err != nil {
			return nil, err
		}
		o.RunID = runID.String
		o.Kalshi, o.Polymarket = kalshi.String, polymarket.String
		o.KalshiLink, o.PolymarketLink = kLink.String, pLink.String
		o.Legs[0].Venue, o.Legs[1].Venue = collectors.Venue(venue1), collectors.Venue(venue2)
		if detectedAt.String != "" {
			if ts, err := time.Parse(time.RFC3339Nano, detectedAt.String); err == nil {
				o.DetectedAt = ts
			}
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// RecordOpportunity appends an opportunity to the history table. Redelivered
// records (same run and match) are ignored.
func (s *Store) RecordOpportunity(ctx context.Context, o arb.Opportunity) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialized")
	}
	fingerprint := hashutil.HashStrings(o.RunID, o.Sport, o.MatchKey)
	_, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO opportunity_history (
	fingerprint, match_key, sport, run_id, question, event_date, kalshi, polymarket,
	total_cost, profit, detected_at, recorded_at
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		fingerprint, o.MatchKey, o.Sport, o.RunID, o.Question, o.Date, o.Kalshi, o.Polymarket,
		o.TotalCost, o.Profit, formatTime(o.DetectedAt), time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// CountHistory returns the number of recorded history rows for a sport.
func (s *Store) CountHistory(ctx context.Context, sport string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM opportunity_history WHERE sport = ?`, sport).Scan(&n)
	return n, err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
