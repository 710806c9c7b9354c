package collectors

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/sportsarb/internal/canonical"
)

type stubCollector struct {
	entries []Entry
	err     error
}

func (s stubCollector) Name() string { return "stub" }

func (s stubCollector) Fetch(context.Context, FetchOptions) ([]Entry, error) {
	return s.entries, s.err
}

func TestNewEntryDerivesQuestionAndKey(t *testing.T) {
	e := NewEntry(VenueKalshi, canonical.SportNBA, "Lakers", "Celtics", "2025-11-03")

	assert.Equal(t, "Celtics vs Lakers", e.Question)
	assert.Equal(t, canonical.BuildMatchKey("Celtics vs Lakers", "2025-11-03"), e.Key)
	assert.Empty(t, e.PricedNames())

	e.OutcomePrices["Lakers"] = Float(0.55)
	p, ok := e.Price("Lakers")
	require.True(t, ok)
	assert.Equal(t, 0.55, p)
	assert.Equal(t, []string{"Lakers"}, e.PricedNames())
}

func TestCollectDegradesDiscoveryFailure(t *testing.T) {
	err := DiscoveryError(VenueKalshi, errors.New("503"))
	assert.ErrorIs(t, err, ErrDiscovery)

	assert.Nil(t, Collect(context.Background(), stubCollector{err: err}, FetchOptions{Sport: canonical.SportNBA}))

	want := []Entry{{Key: "k"}}
	assert.Equal(t, want, Collect(context.Background(), stubCollector{entries: want}, FetchOptions{}))
}

func TestRunLoopRunsImmediatelyAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	done := make(chan struct{})
	go func() {
		RunLoop(ctx, "test", time.Hour, func(context.Context) error {
			if atomic.AddInt32(&calls, 1) == 1 {
				cancel()
			}
			return errors.New("ignored")
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
