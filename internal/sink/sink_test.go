package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/sportsarb/internal/arb"
	"github.com/hetulpatel/sportsarb/internal/metrics"
)

type recordingSink struct {
	name     string
	err      error
	closeErr error
	batches  map[string][]arb.Opportunity
	closed   bool
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Publish(_ context.Context, sport string, opps []arb.Opportunity) error {
	if r.err != nil {
		return r.err
	}
	if r.batches == nil {
		r.batches = map[string][]arb.Opportunity{}
	}
	r.batches[sport] = opps
	return nil
}

func (r *recordingSink) Close() error {
	r.closed = true
	return r.closeErr
}

func TestMultiContinuesPastFailures(t *testing.T) {
	bad := &recordingSink{name: "bad-sink-test", err: errors.New("down")}
	good := &recordingSink{name: "good"}
	m := NewMulti(bad, nil, good)
	require.Equal(t, 2, m.Len())
	assert.Equal(t, []string{"bad-sink-test", "good"}, m.Names())

	before := testutil.ToFloat64(metrics.SinkFailures.WithLabelValues("bad-sink-test"))
	opps := []arb.Opportunity{{MatchKey: "k", Profit: 0.02}}
	assert.Equal(t, 1, m.Publish(context.Background(), "nba", opps))

	assert.Equal(t, opps, good.batches["nba"])
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SinkFailures.WithLabelValues("bad-sink-test")))
}

func TestMultiPublishesEmptyBatch(t *testing.T) {
	good := &recordingSink{name: "good"}
	m := NewMulti(good)
	assert.Equal(t, 1, m.Publish(context.Background(), "nhl", nil))
	_, seen := good.batches["nhl"]
	assert.True(t, seen)
}

func TestMultiCloseJoinsErrors(t *testing.T) {
	a := &recordingSink{name: "a", closeErr: errors.New("a failed")}
	b := &recordingSink{name: "b"}
	err := NewMulti(a, b).Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a failed")
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
