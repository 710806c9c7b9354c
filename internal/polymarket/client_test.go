package polymarket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/sportsarb/internal/canonical"
	"github.com/hetulpatel/sportsarb/internal/collectors"
	"github.com/hetulpatel/sportsarb/internal/httpclient"
)

func newTestServer(t *testing.T, markets []market, prices map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/markets", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "745", r.URL.Query().Get("tag_id"))
		assert.Equal(t, "moneyline", r.URL.Query().Get("sports_market_types"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(markets)
	})
	mux.HandleFunc("/price", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SELL", r.URL.Query().Get("side"))
		price, ok := prices[r.URL.Query().Get("token_id")]
		if !ok {
			http.Error(w, "no book", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"price":"` + price + `"}`))
	})
	return httptest.NewServer(mux)
}

func newTestClient(url string) *Client {
	return NewClient(Config{
		GammaURL: url,
		ClobURL:  url,
		HTTP:     httpclient.Config{Retries: -1},
		Now:      func() time.Time { return time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC) },
	})
}

func TestFetchBuildsEntries(t *testing.T) {
	markets := []market{
		{ID: "1", Question: "Lakers vs. Celtics", Slug: "nba-lal-bos-2025-11-03", EndDate: "2025-11-04T02:00:00Z", ClobTokenIds: `["t1","t2"]`, Active: true, AcceptingOrders: true},
		{ID: "2", Question: "Knicks vs. Heat", Slug: "closed", EndDate: "2025-11-04T02:00:00Z", ClobTokenIds: `["t3","t4"]`, Closed: true},
		{ID: "3", Question: "Who wins the title?", Slug: "futures", EndDate: "2025-11-04T02:00:00Z", ClobTokenIds: `["t5","t6"]`, AcceptingOrders: true},
	}
	srv := newTestServer(t, markets, map[string]string{"t1": "0.45", "t2": "0.52"})
	defer srv.Close()

	entries, err := newTestClient(srv.URL).Fetch(context.Background(), collectors.FetchOptions{Sport: canonical.SportNBA})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "Celtics vs Lakers", e.Question)
	// 02:00 UTC on the 4th is still the 3rd in New York.
	assert.Equal(t, "2025-11-03", e.EventDate)
	assert.Equal(t, canonical.BuildMatchKey("Celtics vs Lakers", "2025-11-03"), e.Key)
	assert.Equal(t, "https://polymarket.com/event/nba-lal-bos-2025-11-03", e.Link)

	lakers, ok := e.Price("Lakers")
	require.True(t, ok)
	assert.Equal(t, 0.45, lakers)
	celtics, ok := e.Price("Celtics")
	require.True(t, ok)
	assert.Equal(t, 0.52, celtics)
}

func TestFetchKeepsEntryWhenPriceFails(t *testing.T) {
	markets := []market{
		{ID: "1", Question: "Lakers vs. Celtics", Slug: "s", EndDate: "2025-11-04T02:00:00Z", ClobTokenIds: `["t1","t2"]`, AcceptingOrders: true},
	}
	srv := newTestServer(t, markets, map[string]string{"t1": "0.45"})
	defer srv.Close()

	entries, err := newTestClient(srv.URL).Fetch(context.Background(), collectors.FetchOptions{Sport: canonical.SportNBA})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"Lakers"}, entries[0].PricedNames())
}

func TestFetchDiscoveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background(), collectors.FetchOptions{Sport: canonical.SportNBA})
	assert.ErrorIs(t, err, collectors.ErrDiscovery)
}

func TestFetchZeroMarketsIsEmpty(t *testing.T) {
	srv := newTestServer(t, []market{}, nil)
	defer srv.Close()

	entries, err := newTestClient(srv.URL).Fetch(context.Background(), collectors.FetchOptions{Sport: canonical.SportNBA})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetchZeroQuoteIsAbsent(t *testing.T) {
	markets := []market{
		{ID: "1", Question: "Lakers vs. Celtics", Slug: "s", EndDate: "2025-11-04T02:00:00Z", ClobTokenIds: `["t1","t2"]`, AcceptingOrders: true},
	}
	srv := newTestServer(t, markets, map[string]string{"t1": "0", "t2": "0.52"})
	defer srv.Close()

	entries, err := newTestClient(srv.URL).Fetch(context.Background(), collectors.FetchOptions{Sport: canonical.SportNBA})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, ok := entries[0].Price("Lakers")
	assert.False(t, ok)
	assert.Equal(t, []string{"Celtics"}, entries[0].PricedNames())
}

func TestFetchUnknownSport(t *testing.T) {
	_, err := NewClient(Config{TagIDs: map[canonical.Sport]string{}}).Fetch(context.Background(), collectors.FetchOptions{Sport: canonical.SportNHL})
	assert.ErrorIs(t, err, collectors.ErrDiscovery)
}

func TestPriceResponseValue(t *testing.T) {
	cases := map[string]struct {
		raw string
		ok  bool
		v   float64
	}{
		"string": {`"0.41"`, true, 0.41},
		"number": {`0.6`, true, 0.6},
		"null":   {`null`, false, 0},
		"range":  {`"1.7"`, false, 0},
		"zero":   {`"0"`, false, 0},
		"one":    {`1`, true, 1},
		"junk":   {`"abc"`, false, 0},
	}
	for name, tc := range cases {
		v, ok := priceResponse{Price: json.RawMessage(tc.raw)}.value()
		assert.Equal(t, tc.ok, ok, name)
		assert.Equal(t, tc.v, v, name)
	}
}
