package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/sportsarb/internal/arb"
	"github.com/hetulpatel/sportsarb/internal/collectors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "arb.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func opportunity(key string, profit float64) arb.Opportunity {
	return arb.Opportunity{
		RunID:      "run-1",
		MatchKey:   key,
		Sport:      "nba",
		Question:   "Celtics vs Lakers",
		Date:       "2025-11-03",
		Kalshi:     "Celtics|0.42",
		Polymarket: "Lakers|0.55",
		Legs: [2]arb.Leg{
			{Outcome: "Celtics", Venue: collectors.VenueKalshi, Price: 0.42},
			{Outcome: "Lakers", Venue: collectors.VenuePolymarket, Price: 0.55},
		},
		TotalCost:  0.97,
		Profit:     profit,
		KalshiLink: "https://kalshi.com/markets/x",
		DetectedAt: time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC),
	}
}

func TestReplaceOpportunitiesReplacesBySport(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Publish(ctx, "nba", []arb.Opportunity{opportunity("a", 0.01), opportunity("b", 0.03)}))
	nhl := opportunity("c", 0.02)
	nhl.Sport = "nhl"
	require.NoError(t, store.Publish(ctx, "nhl", []arb.Opportunity{nhl}))

	got, err := store.ListOpportunities(ctx, "nba")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].MatchKey)
	assert.Equal(t, opportunity("b", 0.03), got[0])

	require.NoError(t, store.Publish(ctx, "nba", []arb.Opportunity{opportunity("d", 0.05)}))
	got, err = store.ListOpportunities(ctx, "nba")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d", got[0].MatchKey)

	got, err = store.ListOpportunities(ctx, "nhl")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, store.Publish(ctx, "nba", nil))
	got, err = store.ListOpportunities(ctx, "nba")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecordOpportunityIgnoresRedelivery(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	o := opportunity("a", 0.01)
	require.NoError(t, store.RecordOpportunity(ctx, o))
	require.NoError(t, store.RecordOpportunity(ctx, o))
	o.RunID = "run-2"
	require.NoError(t, store.RecordOpportunity(ctx, o))

	n, err := store.CountHistory(ctx, "nba")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestClearAndDropTables(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Publish(ctx, "nba", []arb.Opportunity{opportunity("a", 0.01)}))
	require.NoError(t, store.ClearTables(ctx))
	got, err := store.ListOpportunities(ctx, "nba")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.DropTables(ctx))
	_, err = store.ListOpportunities(ctx, "nba")
	assert.Error(t, err)
	require.NoError(t, store.CreateTables(ctx))
}
