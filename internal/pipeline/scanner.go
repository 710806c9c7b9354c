// Package pipeline runs the per-sport scan cycle: collect both venues,
// match on key, evaluate and publish.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hetulpatel/sportsarb/internal/arb"
	"github.com/hetulpatel/sportsarb/internal/canonical"
	"github.com/hetulpatel/sportsarb/internal/collectors"
	"github.com/hetulpatel/sportsarb/internal/logging"
	"github.com/hetulpatel/sportsarb/internal/matcher"
	"github.com/hetulpatel/sportsarb/internal/metrics"
	"github.com/hetulpatel/sportsarb/internal/sink"
)

const defaultInterval = 30 * time.Second

// EntryRecorder receives each venue's entry list as fetched and its keyed
// map after normalization.
type EntryRecorder interface {
	SaveRaw(name string, payload any) error
	SaveEntries(venue collectors.Venue, sport string, entries map[string]collectors.Entry) error
}

type Options struct {
	Polymarket collectors.Collector
	Kalshi     collectors.Collector
	Sinks      *sink.Multi
	Entries    EntryRecorder
	Sports     []canonical.Sport
	Interval   time.Duration
	Once       bool
	// MinProfit, when non-nil, drops opportunities below it before publishing.
	MinProfit *float64
	Now       func() time.Time
	NewRunID  func() string
}

type Scanner struct {
	polymarket collectors.Collector
	kalshi     collectors.Collector
	sinks      *sink.Multi
	entries    EntryRecorder
	sports     []canonical.Sport
	interval   time.Duration
	once       bool
	minProfit  *float64
	now        func() time.Time
	newRunID   func() string
}

// CycleReport summarizes one cycle for logs and tests.
type CycleReport struct {
	RunID             string
	Sport             canonical.Sport
	PolymarketEntries int
	KalshiEntries     int
	Pairs             int
	Opportunities     []arb.Opportunity
	SinksOK           int
	Elapsed           time.Duration
}

func New(opts Options) *Scanner {
	s := &Scanner{
		polymarket: opts.Polymarket,
		kalshi:     opts.Kalshi,
		sinks:      opts.Sinks,
		entries:    opts.Entries,
		sports:     opts.Sports,
		interval:   opts.Interval,
		once:       opts.Once,
		minProfit:  opts.MinProfit,
		now:        opts.Now,
		newRunID:   opts.NewRunID,
	}
	if s.sinks == nil {
		s.sinks = sink.NewMulti()
	}
	if len(s.sports) == 0 {
		s.sports = canonical.Sports()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newRunID == nil {
		s.newRunID = uuid.NewString
	}
	return s
}

// Cycle runs one scan for sport. Venue failures surface as empty entry sets,
// so the only error returned is ctx cancellation, in which case nothing is
// published.
func (s *Scanner) Cycle(ctx context.Context, sport canonical.Sport) (CycleReport, error) {
	start := s.now()
	report := CycleReport{RunID: s.newRunID(), Sport: sport}
	opts := collectors.FetchOptions{Sport: sport}

	var polyEntries, kalshiEntries []collectors.Entry
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		polyEntries = collectors.Collect(gctx, s.polymarket, opts)
		return nil
	})
	g.Go(func() error {
		kalshiEntries = collectors.Collect(gctx, s.kalshi, opts)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return report, err
	}

	polyByKey := collectors.ByKey(polyEntries)
	kalshiByKey := collectors.ByKey(kalshiEntries)
	report.PolymarketEntries = len(polyByKey)
	report.KalshiEntries = len(kalshiByKey)
	metrics.VenueEntries.WithLabelValues(string(collectors.VenuePolymarket), string(sport)).Set(float64(report.PolymarketEntries))
	metrics.VenueEntries.WithLabelValues(string(collectors.VenueKalshi), string(sport)).Set(float64(report.KalshiEntries))
	s.recordRaw(sport, collectors.VenuePolymarket, polyEntries)
	s.recordRaw(sport, collectors.VenueKalshi, kalshiEntries)
	s.recordEntries(sport, polyByKey, kalshiByKey)

	pairs := matcher.Match(polyByKey, kalshiByKey)
	report.Pairs = len(pairs)
	metrics.MatchedPairs.WithLabelValues(string(sport)).Set(float64(len(pairs)))

	opps := arb.EvaluateAll(pairs, start.UTC())
	for i := range opps {
		opps[i].RunID = report.RunID
	}
	if s.minProfit != nil {
		opps = arb.FilterMinProfit(opps, *s.minProfit)
	}
	report.Opportunities = opps
	metrics.Opportunities.WithLabelValues(string(sport)).Set(float64(len(opps)))

	report.SinksOK = s.sinks.Publish(ctx, string(sport), opps)
	report.Elapsed = s.now().Sub(start)
	metrics.CycleDuration.WithLabelValues(string(sport)).Observe(report.Elapsed.Seconds())

	fields := logrus.Fields{
		"run_id":        report.RunID,
		"sport":         sport,
		"polymarket":    report.PolymarketEntries,
		"kalshi":        report.KalshiEntries,
		"pairs":         report.Pairs,
		"opportunities": len(opps),
		"sinks_ok":      report.SinksOK,
		"elapsed":       report.Elapsed.Round(time.Millisecond).String(),
	}
	if len(opps) > 0 {
		fields["best_profit"] = opps[0].Profit
	}
	logging.WithFields(fields).Info("[pipeline] cycle complete")
	return report, nil
}

func (s *Scanner) recordRaw(sport canonical.Sport, venue collectors.Venue, entries []collectors.Entry) {
	if s.entries == nil {
		return
	}
	if entries == nil {
		entries = []collectors.Entry{}
	}
	if err := s.entries.SaveRaw(fmt.Sprintf("%s_markets_%s", sport, venue), entries); err != nil {
		logging.Errorf("[pipeline] save raw %s entries: %v", venue, err)
	}
}

func (s *Scanner) recordEntries(sport canonical.Sport, poly, kalshi map[string]collectors.Entry) {
	if s.entries == nil {
		return
	}
	if err := s.entries.SaveEntries(collectors.VenuePolymarket, string(sport), poly); err != nil {
		logging.Errorf("[pipeline] save polymarket entries: %v", err)
	}
	if err := s.entries.SaveEntries(collectors.VenueKalshi, string(sport), kalshi); err != nil {
		logging.Errorf("[pipeline] save kalshi entries: %v", err)
	}
}

// Run scans every configured sport in its own loop until ctx is cancelled.
// In once mode each sport runs a single cycle.
func (s *Scanner) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, sport := range s.sports {
		g.Go(func() error {
			if s.once {
				_, err := s.Cycle(gctx, sport)
				return err
			}
			collectors.RunLoop(gctx, "pipeline "+string(sport), s.interval, func(ctx context.Context) error {
				_, err := s.Cycle(ctx, sport)
				return err
			})
			return nil
		})
	}
	return g.Wait()
}
