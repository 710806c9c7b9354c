package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/sportsarb/internal/arb"
	"github.com/hetulpatel/sportsarb/internal/sink"
)

var _ sink.Sink = (*RedisOpportunityCache)(nil)

func TestKeys(t *testing.T) {
	c, err := NewRedisOpportunityCache("localhost:6379", "", 0, 0, "")
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "sports_arb:best:abc", c.key("abc"))
	assert.Equal(t, "sports_arb:latest:nba", c.latestKey("nba"))
	assert.Equal(t, 24*time.Hour, c.ttl)
}

func TestNewRequiresAddr(t *testing.T) {
	_, err := NewRedisOpportunityCache("", "", 0, time.Minute, "x")
	assert.Error(t, err)
}

func TestImproves(t *testing.T) {
	o := arb.Opportunity{Profit: 0.02}
	assert.True(t, improves(nil, false, o))
	assert.True(t, improves(&OpportunityRecord{Profit: 0.01}, true, o))
	assert.False(t, improves(&OpportunityRecord{Profit: 0.02}, true, o))
}

func TestRecordFrom(t *testing.T) {
	ts := time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)
	r := recordFrom(arb.Opportunity{Question: "Celtics vs Lakers", Kalshi: "Celtics|0.42", Profit: 0.03, DetectedAt: ts})
	assert.Equal(t, ts, r.UpdatedAt)
	assert.Equal(t, 0.03, r.Profit)
	assert.Equal(t, "Celtics|0.42", r.Kalshi)
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *RedisOpportunityCache
	assert.NoError(t, c.Publish(context.Background(), "nba", nil))
	assert.NoError(t, c.Close())
}
