package sink

import (
	"context"
	"errors"
	"time"

	"github.com/hetulpatel/sportsarb/internal/arb"
	"github.com/hetulpatel/sportsarb/internal/logging"
	"github.com/hetulpatel/sportsarb/internal/metrics"
)

// Sink receives the full opportunity batch of one sport after each cycle.
type Sink interface {
	Name() string
	Publish(ctx context.Context, sport string, opps []arb.Opportunity) error
	Close() error
}

// Multi publishes to every sink in order. A failing sink is logged and
// counted; it never blocks the others and is not retried.
type Multi struct {
	sinks []Sink
}

func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *Multi) Len() int {
	return len(m.sinks)
}

func (m *Multi) Names() []string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return names
}

// Publish returns the number of sinks that accepted the batch.
func (m *Multi) Publish(ctx context.Context, sport string, opps []arb.Opportunity) int {
	ok := 0
	for _, s := range m.sinks {
		start := time.Now()
		if err := s.Publish(ctx, sport, opps); err != nil {
			metrics.SinkFailures.WithLabelValues(s.Name()).Inc()
			logging.Errorf("[sink] %s publish %s (%d opportunities): %v", s.Name(), sport, len(opps), err)
			continue
		}
		ok++
		logging.Debugf("[sink] %s published %d %s opportunities in %s", s.Name(), len(opps), sport, time.Since(start).Round(time.Millisecond))
	}
	return ok
}

func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
