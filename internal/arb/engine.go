package arb

import (
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hetulpatel/sportsarb/internal/collectors"
	"github.com/hetulpatel/sportsarb/internal/matcher"
)

// ProfitPlaces is the precision reported profits are rounded to.
const ProfitPlaces = 4

// Pick selects, for one outcome, the venue quoting the lower or the higher price.
type Pick int

const (
	Lower Pick = iota
	Higher
)

func (p Pick) String() string {
	if p == Higher {
		return "higher"
	}
	return "lower"
}

// Leg is one outcome bought on one venue.
type Leg struct {
	Outcome string           `json:"outcome"`
	Venue   collectors.Venue `json:"venue"`
	Price   float64          `json:"price"`
}

func (l Leg) String() string {
	return l.Outcome + "|" + strconv.FormatFloat(l.Price, 'f', -1, 64)
}

// Strategy is one of the four ways of buying both outcomes.
type Strategy struct {
	Picks     [2]Pick
	Legs      [2]Leg
	TotalCost float64
	Profit    float64
	profit    decimal.Decimal
}

// UsesBothVenues reports whether the legs are split across venues.
func (s Strategy) UsesBothVenues() bool {
	return s.Legs[0].Venue != s.Legs[1].Venue
}

// enumeration fixes the evaluation order, which also decides ties.
var enumeration = [4][2]Pick{
	{Lower, Lower},
	{Higher, Lower},
	{Lower, Higher},
	{Higher, Higher},
}

// Strategies builds the four candidate strategies for a pair. Equal prices
// resolve to Polymarket for both picks.
func Strategies(p matcher.Pair) [4]Strategy {
	var out [4]Strategy
	for i, picks := range enumeration {
		s := Strategy{Picks: picks}
		cost := decimal.Zero
		for j, outcome := range p.Outcomes {
			leg := choose(picks[j], outcome, p.A, p.B)
			s.Legs[j] = leg
			cost = cost.Add(decimal.NewFromFloat(leg.Price))
		}
		s.profit = decimal.NewFromInt(1).Sub(cost)
		s.TotalCost = cost.InexactFloat64()
		s.Profit = s.profit.InexactFloat64()
		out[i] = s
	}
	return out
}

func choose(pick Pick, outcome string, poly, kalshi collectors.Entry) Leg {
	pp, _ := poly.Price(outcome)
	kp, _ := kalshi.Price(outcome)
	useKalshi := kp < pp
	if pick == Higher {
		useKalshi = kp > pp
	}
	if useKalshi {
		return Leg{Outcome: outcome, Venue: collectors.VenueKalshi, Price: kp}
	}
	return Leg{Outcome: outcome, Venue: collectors.VenuePolymarket, Price: pp}
}

// Best returns the highest-profit cross-venue strategy. The first one
// enumerated wins ties.
func Best(strategies []Strategy) (Strategy, bool) {
	var (
		best  Strategy
		found bool
	)
	for _, s := range strategies {
		if !s.UsesBothVenues() {
			continue
		}
		if !found || s.profit.GreaterThan(best.profit) {
			best, found = s, true
		}
	}
	return best, found
}

// Dominated reports whether one venue is strictly cheaper on both outcomes,
// in which case no cross-venue trade is worth reporting.
func Dominated(p matcher.Pair) bool {
	polyCheaper, kalshiCheaper := 0, 0
	for _, outcome := range p.Outcomes {
		pp, _ := p.A.Price(outcome)
		kp, _ := p.B.Price(outcome)
		switch {
		case pp < kp:
			polyCheaper++
		case kp < pp:
			kalshiCheaper++
		}
	}
	return polyCheaper == 2 || kalshiCheaper == 2
}

// Opportunity is a selected cross-venue strategy ready for the sinks.
type Opportunity struct {
	RunID          string    `json:"run_id,omitempty"`
	MatchKey       string    `json:"match_key"`
	Sport          string    `json:"sport"`
	Question       string    `json:"question"`
	Date           string    `json:"date"`
	Kalshi         string    `json:"kalshi"`
	Polymarket     string    `json:"polymarket"`
	Legs           [2]Leg    `json:"legs"`
	TotalCost      float64   `json:"total_cost"`
	Profit         float64   `json:"profit"`
	KalshiLink     string    `json:"kalshi_link"`
	PolymarketLink string    `json:"polymarket_link"`
	DetectedAt     time.Time `json:"detected_at"`
}

// Evaluate selects the best cross-venue strategy for a matched pair. Any
// non-zero profit is reported, negative included, even when it rounds to zero.
func Evaluate(p matcher.Pair) (Opportunity, bool) {
	question := firstNonEmpty(p.B.Question, p.A.Question)
	date := firstNonEmpty(p.B.EventDate, p.A.EventDate)
	if question == "" || date == "" {
		return Opportunity{}, false
	}
	if Dominated(p) {
		return Opportunity{}, false
	}

	all := Strategies(p)
	best, ok := Best(all[:])
	if !ok {
		return Opportunity{}, false
	}
	if best.profit.IsZero() {
		return Opportunity{}, false
	}
	profit := best.profit.Round(ProfitPlaces)

	opp := Opportunity{
		MatchKey:       p.Key,
		Sport:          firstNonEmpty(string(p.B.Sport), string(p.A.Sport)),
		Question:       question,
		Date:           date,
		Legs:           best.Legs,
		TotalCost:      best.TotalCost,
		Profit:         profit.InexactFloat64(),
		KalshiLink:     p.B.Link,
		PolymarketLink: p.A.Link,
	}
	for _, leg := range best.Legs {
		switch leg.Venue {
		case collectors.VenueKalshi:
			opp.Kalshi = leg.String()
		case collectors.VenuePolymarket:
			opp.Polymarket = leg.String()
		}
	}
	return opp, true
}

// EvaluateAll evaluates every pair and orders the opportunities by profit, best first.
func EvaluateAll(pairs []matcher.Pair, now time.Time) []Opportunity {
	out := make([]Opportunity, 0, len(pairs))
	for _, p := range pairs {
		if opp, ok := Evaluate(p); ok {
			opp.DetectedAt = now
			out = append(out, opp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Profit > out[j].Profit
	})
	return out
}

// FilterMinProfit keeps opportunities whose profit is at least threshold.
func FilterMinProfit(opps []Opportunity, threshold float64) []Opportunity {
	out := opps[:0:0]
	for _, o := range opps {
		if o.Profit >= threshold {
			out = append(out, o)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
