package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hetulpatel/sportsarb/internal/arb"
	"github.com/hetulpatel/sportsarb/internal/logging"
)

// OpportunityRecord captures the best result seen for a match.
type OpportunityRecord struct {
	Question   string    `json:"question"`
	Date       string    `json:"date"`
	Kalshi     string    `json:"kalshi"`
	Polymarket string    `json:"polymarket"`
	Profit     float64   `json:"profit"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RedisOpportunityCache keeps the latest batch per sport plus the best
// record per match key.
type RedisOpportunityCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisOpportunityCache builds a cache keyed by match key.
func NewRedisOpportunityCache(addr, password string, db int, ttl time.Duration, prefix string) (*RedisOpportunityCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if prefix == "" {
		prefix = "sports_arb"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisOpportunityCache{client: client, ttl: ttl, prefix: prefix}, nil
}

func (c *RedisOpportunityCache) key(matchKey string) string {
	return fmt.Sprintf("%s:best:%s", c.prefix, matchKey)
}

func (c *RedisOpportunityCache) latestKey(sport string) string {
	return fmt.Sprintf("%s:latest:%s", c.prefix, sport)
}

func (c *RedisOpportunityCache) Get(ctx context.Context, matchKey string) (*OpportunityRecord, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, c.key(matchKey)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var record OpportunityRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false, err
	}
	return &record, true, nil
}

func (c *RedisOpportunityCache) Set(ctx context.Context, matchKey string, record OpportunityRecord) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(matchKey), payload, c.ttl).Err()
}

func (c *RedisOpportunityCache) Name() string {
	return "redis"
}

// Publish overwrites the sport's latest batch and raises per-match bests.
func (c *RedisOpportunityCache) Publish(ctx context.Context, sport string, opps []arb.Opportunity) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(opps)
	if err != nil {
		return fmt.Errorf("marshal %s batch: %w", sport, err)
	}
	if err := c.client.Set(ctx, c.latestKey(sport), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("set %s batch: %w", sport, err)
	}

	improved := 0
	for _, o := range opps {
		prev, ok, err := c.Get(ctx, o.MatchKey)
		if err != nil {
			return fmt.Errorf("get best %s: %w", o.MatchKey, err)
		}
		if !improves(prev, ok, o) {
			continue
		}
		if err := c.Set(ctx, o.MatchKey, recordFrom(o)); err != nil {
			return fmt.Errorf("set best %s: %w", o.MatchKey, err)
		}
		improved++
	}
	if improved > 0 {
		logging.Debugf("[redis] %s: %d new best opportunities", sport, improved)
	}
	return nil
}

func improves(prev *OpportunityRecord, found bool, o arb.Opportunity) bool {
	return !found || prev == nil || o.Profit > prev.Profit
}

func recordFrom(o arb.Opportunity) OpportunityRecord {
	updated := o.DetectedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	return OpportunityRecord{
		Question:   o.Question,
		Date:       o.Date,
		Kalshi:     o.Kalshi,
		Polymarket: o.Polymarket,
		Profit:     o.Profit,
		UpdatedAt:  updated,
	}
}

func (c *RedisOpportunityCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
