package collectors

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hetulpatel/sportsarb/internal/canonical"
)

// Venue identifies the platform an entry was listed on.
type Venue string

const (
	VenuePolymarket Venue = "polymarket"
	VenueKalshi     Venue = "kalshi"
)

// ErrDiscovery marks a failure to list a venue's events at all.
var ErrDiscovery = errors.New("venue discovery failed")

// FetchOptions select what a collector fetches per run.
type FetchOptions struct {
	Sport canonical.Sport
}

// Collector is implemented by venue adapters (Polymarket, Kalshi, ...).
// Fetch returns an error only when the venue could not be queried at all;
// per-event failures are absorbed and simply yield fewer entries.
type Collector interface {
	Name() string
	Fetch(ctx context.Context, opts FetchOptions) ([]Entry, error)
}

// Entry is one venue's normalized view of a two-sided match.
type Entry struct {
	Key        string
	Sport      canonical.Sport
	Question   string
	EventDate  string
	Venue      Venue
	ExternalID string
	Link       string
	// OutcomePrices maps canonical name to buy price in (0,1]; nil means the
	// venue had no usable quote.
	OutcomePrices map[string]*float64
}

// NewEntry builds an entry for two canonical names, deriving the question and key.
func NewEntry(venue Venue, sport canonical.Sport, nameA, nameB, date string) Entry {
	q := canonical.BuildQuestion(nameA, nameB)
	return Entry{
		Key:           canonical.BuildMatchKey(q, date),
		Sport:         sport,
		Question:      q,
		EventDate:     date,
		Venue:         venue,
		OutcomePrices: map[string]*float64{nameA: nil, nameB: nil},
	}
}

// PricedNames returns the sorted names carrying a present price.
func (e Entry) PricedNames() []string {
	names := make([]string, 0, len(e.OutcomePrices))
	for name, p := range e.OutcomePrices {
		if p != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Price returns the buy price for name, if present.
func (e Entry) Price(name string) (float64, bool) {
	p, ok := e.OutcomePrices[name]
	if !ok || p == nil {
		return 0, false
	}
	return *p, true
}

// ByKey indexes entries by match key. A later duplicate replaces an earlier one.
func ByKey(entries []Entry) map[string]Entry {
	out := make(map[string]Entry, len(entries))
	for _, e := range entries {
		out[e.Key] = e
	}
	return out
}

// DiscoveryError wraps err as a venue-level failure.
func DiscoveryError(venue Venue, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDiscovery, venue, err)
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
