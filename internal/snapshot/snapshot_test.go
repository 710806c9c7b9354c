package snapshot

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/sportsarb/internal/arb"
	"github.com/hetulpatel/sportsarb/internal/canonical"
	"github.com/hetulpatel/sportsarb/internal/collectors"
)

func TestTruthy(t *testing.T) {
	for _, v := range []string{"1", "true", "True"} {
		assert.True(t, Truthy(v), v)
	}
	for _, v := range []string{"", "0", "TRUE", "yes", "false"} {
		assert.False(t, Truthy(v), v)
	}
}

func TestEnabledReadsSave(t *testing.T) {
	t.Setenv("SAVE", "True")
	assert.True(t, Enabled())
	t.Setenv("SAVE", "no")
	assert.False(t, Enabled())
}

func TestPublishWritesSportFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w := NewWriter(dir)
	assert.Equal(t, "snapshot", w.Name())

	opps := []arb.Opportunity{{MatchKey: "k1", Question: "Celtics vs Lakers", Profit: 0.03}}
	require.NoError(t, w.Publish(context.Background(), "nba", opps))

	data, err := os.ReadFile(filepath.Join(dir, "arbitrage_opportunities_nba.json"))
	require.NoError(t, err)
	var got []arb.Opportunity
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Celtics vs Lakers", got[0].Question)
}

func TestPublishEmptyBatchWritesEmptyList(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewWriter(dir).Publish(context.Background(), "nfl", nil))
	data, err := os.ReadFile(filepath.Join(dir, "arbitrage_opportunities_nfl.json"))
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestSaveEntries(t *testing.T) {
	dir := t.TempDir()
	e := collectors.NewEntry(collectors.VenueKalshi, canonical.SportNBA, "Lakers", "Celtics", "2025-11-03")
	require.NoError(t, NewWriter(dir).SaveEntries(collectors.VenueKalshi, "nba", collectors.ByKey([]collectors.Entry{e})))

	_, err := os.Stat(filepath.Join(dir, "normalized_kalshi_nba.json"))
	assert.NoError(t, err)
}

func TestSaveRawWritesNamedFile(t *testing.T) {
	dir := t.TempDir()
	e := collectors.NewEntry(collectors.VenuePolymarket, canonical.SportNHL, "Red Wings", "Maple Leafs", "2025-11-03")
	require.NoError(t, NewWriter(dir).SaveRaw("nhl_markets_polymarket", []collectors.Entry{e}))

	data, err := os.ReadFile(filepath.Join(dir, "nhl_markets_polymarket.json"))
	require.NoError(t, err)
	var got []collectors.Entry
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Maple Leafs vs Red Wings", got[0].Question)
}
