package supabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/sportsarb/internal/arb"
	"github.com/hetulpatel/sportsarb/internal/httpclient"
)

type recorded struct {
	method string
	query  string
	auth   string
	apikey string
	body   []byte
}

func newRecorder(t *testing.T, status int) (*httptest.Server, *[]recorded) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/sports", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recorded{r.Method, r.URL.RawQuery, r.Header.Get("Authorization"), r.Header.Get("apikey"), body})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	return srv, &reqs
}

func TestPublishDeletesThenInserts(t *testing.T) {
	srv, reqs := newRecorder(t, http.StatusNoContent)
	defer srv.Close()

	c, err := NewClient(Config{URL: srv.URL + "/", ServiceKey: "secret", HTTP: httpclient.Config{Retries: -1}})
	require.NoError(t, err)

	opps := []arb.Opportunity{{Question: "Celtics vs Lakers", Date: "2025-11-03", Kalshi: "Celtics|0.42", Polymarket: "Lakers|0.55", Profit: 0.03}}
	require.NoError(t, c.Publish(context.Background(), "nba", opps))

	require.Len(t, *reqs, 2)
	del, ins := (*reqs)[0], (*reqs)[1]
	assert.Equal(t, http.MethodDelete, del.method)
	assert.Equal(t, "sport=eq.nba", del.query)
	assert.Equal(t, "Bearer secret", del.auth)
	assert.Equal(t, "secret", del.apikey)

	assert.Equal(t, http.MethodPost, ins.method)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(ins.body, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "nba", rows[0]["sport"])
	assert.Equal(t, "Celtics|0.42", rows[0]["kalshi"])
	assert.Equal(t, 0.03, rows[0]["profit"])
}

func TestPublishEmptyOnlyDeletes(t *testing.T) {
	srv, reqs := newRecorder(t, http.StatusNoContent)
	defer srv.Close()

	c, err := NewClient(Config{URL: srv.URL, ServiceKey: "k", HTTP: httpclient.Config{Retries: -1}})
	require.NoError(t, err)
	require.NoError(t, c.Publish(context.Background(), "nhl", nil))
	assert.Len(t, *reqs, 1)
}

func TestPublishReportsFailure(t *testing.T) {
	srv, _ := newRecorder(t, http.StatusUnauthorized)
	defer srv.Close()

	c, err := NewClient(Config{URL: srv.URL, ServiceKey: "k", HTTP: httpclient.Config{Retries: -1}})
	require.NoError(t, err)
	assert.Error(t, c.Publish(context.Background(), "nba", nil))
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{URL: "https://x.supabase.co"})
	assert.Error(t, err)
}
