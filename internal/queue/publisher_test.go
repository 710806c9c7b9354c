package queue

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/sportsarb/internal/arb"
)

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublisherWritesOneMessagePerOpportunity(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisher(w)
	ts := time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)

	opps := []arb.Opportunity{
		{MatchKey: "k1", Question: "Celtics vs Lakers", Profit: 0.03, DetectedAt: ts},
		{MatchKey: "k2", Question: "Heat vs Knicks", Profit: -0.01, DetectedAt: ts},
	}
	require.NoError(t, p.Publish(context.Background(), "nba", opps))
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "k1", string(w.msgs[0].Key))
	assert.Equal(t, ts, w.msgs[0].Time)

	decoded, err := DecodeOpportunity(w.msgs[1])
	require.NoError(t, err)
	assert.Equal(t, "nba", decoded.Sport)
	assert.Equal(t, "Heat vs Knicks", decoded.Question)
	assert.Equal(t, -0.01, decoded.Profit)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishSkipsEmptyBatch(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, PublishOpportunities(context.Background(), w, "nba", nil))
	assert.Empty(t, w.msgs)
}

func TestDecodeOpportunityRejectsGarbage(t *testing.T) {
	_, err := DecodeOpportunity(kafka.Message{Value: []byte("{")})
	assert.Error(t, err)
}
