package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchObserverCountsOutcomes(t *testing.T) {
	observe := FetchObserver("metrics-test")
	okBefore := testutil.ToFloat64(FetchTasks.WithLabelValues("metrics-test", "ok"))
	errBefore := testutil.ToFloat64(FetchTasks.WithLabelValues("metrics-test", "error"))

	observe(nil, 10*time.Millisecond)
	observe(nil, 20*time.Millisecond)
	observe(errors.New("boom"), time.Millisecond)

	assert.Equal(t, okBefore+2, testutil.ToFloat64(FetchTasks.WithLabelValues("metrics-test", "ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(FetchTasks.WithLabelValues("metrics-test", "error")))
}

func TestHandlerServesHealthAndMetrics(t *testing.T) {
	SinkFailures.WithLabelValues("handler-test").Inc()
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "sports_arb_sink_failures_total")
}
