package kalshi

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hetulpatel/sportsarb/internal/canonical"
	"github.com/hetulpatel/sportsarb/internal/collectors"
	"github.com/hetulpatel/sportsarb/internal/fetch"
	"github.com/hetulpatel/sportsarb/internal/httpclient"
	"github.com/hetulpatel/sportsarb/internal/logging"
)

const (
	defaultBaseURL     = "https://api.elections.kalshi.com/trade-api/v2"
	defaultPageSize    = 200
	defaultMaxPages    = 10
	defaultConcurrency = 16
)

// Series names a league's game series and the public page prefix its events live under.
type Series struct {
	Ticker   string
	LinkBase string
}

// DefaultSeries maps each sport to its Kalshi game series.
var DefaultSeries = map[canonical.Sport]Series{
	canonical.SportNBA: {Ticker: "KXNBAGAME", LinkBase: "https://kalshi.com/markets/kxnbagame/professional-basketball-game/"},
	canonical.SportNFL: {Ticker: "KXNFLGAME", LinkBase: "https://kalshi.com/markets/kxnflgame/professional-football-game/"},
	canonical.SportNHL: {Ticker: "KXNHLGAME", LinkBase: "https://kalshi.com/markets/kxnhlgame/nhl-game/"},
}

// Client talks to the Kalshi Trade API.
type Client struct {
	baseURL     string
	series      map[canonical.Sport]Series
	pageSize    int
	maxPages    int
	concurrency int
	timeout     time.Duration
	observe     func(error, time.Duration)
	http        *httpclient.Client
}

// Config provides optional overrides.
type Config struct {
	BaseURL     string
	Series      map[canonical.Sport]Series
	PageSize    int
	MaxPages    int
	Concurrency int
	Timeout     time.Duration
	HTTP        httpclient.Config
	Observe     func(err error, elapsed time.Duration)
}

// NewClient builds a configured Kalshi API client.
func NewClient(cfg Config) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		series:      cfg.Series,
		pageSize:    cfg.PageSize,
		maxPages:    cfg.MaxPages,
		concurrency: cfg.Concurrency,
		timeout:     cfg.Timeout,
		observe:     cfg.Observe,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.series == nil {
		c.series = DefaultSeries
	}
	if c.pageSize <= 0 || c.pageSize > 200 {
		c.pageSize = defaultPageSize
	}
	if c.maxPages <= 0 {
		c.maxPages = defaultMaxPages
	}
	if c.concurrency <= 0 {
		c.concurrency = defaultConcurrency
	}
	if c.timeout <= 0 {
		c.timeout = fetch.DefaultTimeout
	}
	httpCfg := cfg.HTTP
	httpCfg.Name = "kalshi"
	if httpCfg.Timeout <= 0 {
		httpCfg.Timeout = c.timeout
	}
	c.http = httpclient.New(httpCfg)
	return c
}

func (c *Client) Name() string {
	return "kalshi"
}

// Fetch lists the open events of the sport's game series, loads each event's
// markets concurrently and pairs the two team markets of every game.
func (c *Client) Fetch(ctx context.Context, opts collectors.FetchOptions) ([]collectors.Entry, error) {
	series, ok := c.series[opts.Sport]
	if !ok || series.Ticker == "" {
		return nil, collectors.DiscoveryError(collectors.VenueKalshi, fmt.Errorf("no series for sport %q", opts.Sport))
	}

	events, err := c.listEvents(ctx, series.Ticker)
	if err != nil {
		return nil, collectors.DiscoveryError(collectors.VenueKalshi, err)
	}
	logging.Debugf("[kalshi] %s: %d open events", opts.Sport, len(events))

	tasks := make([]fetch.Task[[]market], len(events))
	for i, ev := range events {
		tasks[i] = func(ctx context.Context) ([]market, error) {
			return c.listMarkets(ctx, ev.Ticker)
		}
	}
	results := fetch.Run(ctx, fetch.Options{Limit: c.concurrency, Timeout: c.timeout, Observe: c.observe}, tasks)

	var entries []collectors.Entry
	for i, r := range results {
		if r.Err != nil {
			logging.Errorf("[kalshi] skip event %s: %v", events[i].Ticker, r.Err)
			continue
		}
		entries = append(entries, c.buildEntries(opts.Sport, series, events[i], r.Value)...)
	}
	return entries, nil
}

func (c *Client) listEvents(ctx context.Context, seriesTicker string) ([]event, error) {
	var (
		all    []event
		cursor string
	)
	for page := 0; page < c.maxPages; page++ {
		params := map[string]string{
			"series_ticker": seriesTicker,
			"status":        "open",
			"limit":         strconv.Itoa(c.pageSize),
		}
		if cursor != "" {
			params["cursor"] = cursor
		}
		var out eventsResponse
		if err := c.http.GetJSON(ctx, c.baseURL+"/events", params, &out); err != nil {
			if page == 0 {
				return nil, err
			}
			logging.Errorf("[kalshi] events page %d: %v", page, err)
			break
		}
		all = append(all, out.Events...)
		cursor = out.Cursor
		if cursor == "" || len(out.Events) == 0 {
			break
		}
	}
	return all, nil
}

func (c *Client) listMarkets(ctx context.Context, eventTicker string) ([]market, error) {
	var out marketsResponse
	params := map[string]string{"event_ticker": eventTicker}
	if err := c.http.GetJSON(ctx, c.baseURL+"/markets", params, &out); err != nil {
		return nil, err
	}
	return out.Markets, nil
}

type sideQuote struct {
	name   string
	price  *float64
	ticker string
}

// buildEntries groups an event's markets by game date and keeps games with
// exactly two markets whose team codes both resolve.
func (c *Client) buildEntries(sport canonical.Sport, series Series, ev event, markets []market) []collectors.Entry {
	byDate := make(map[string][]market)
	var dates []string
	for _, m := range markets {
		date, err := tickerDate(m.Ticker)
		if err != nil {
			logging.Debugf("[kalshi] market %s: %v", m.Ticker, err)
			continue
		}
		if _, seen := byDate[date]; !seen {
			dates = append(dates, date)
		}
		byDate[date] = append(byDate[date], m)
	}
	sort.Strings(dates)

	var out []collectors.Entry
	for _, date := range dates {
		group := byDate[date]
		if len(group) != 2 {
			logging.Debugf("[kalshi] event %s on %s has %d markets", ev.Ticker, date, len(group))
			continue
		}
		sides := make([]sideQuote, 0, 2)
		for _, m := range group {
			name, ok := canonical.Lookup(teamCode(m.Ticker), sport)
			if !ok {
				break
			}
			sides = append(sides, sideQuote{name: name, price: m.buyPrice(), ticker: m.Ticker})
		}
		if len(sides) != 2 || sides[0].name == sides[1].name {
			logging.Debugf("[kalshi] event %s: unresolved team codes", ev.Ticker)
			continue
		}

		e := collectors.NewEntry(collectors.VenueKalshi, sport, sides[0].name, sides[1].name, date)
		e.ExternalID = ev.Ticker
		e.Link = series.LinkBase + gameTicker(sides[0].ticker)
		for _, s := range sides {
			e.OutcomePrices[s.name] = s.price
		}
		out = append(out, e)
	}
	return out
}

var months = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March, "APR": time.April,
	"MAY": time.May, "JUN": time.June, "JUL": time.July, "AUG": time.August,
	"SEP": time.September, "OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// tickerDate reads the YYMMMDD prefix of a ticker's second segment,
// e.g. KXNBAGAME-25NOV03LALBOS-LAL -> 2025-11-03.
func tickerDate(ticker string) (string, error) {
	parts := strings.Split(ticker, "-")
	if len(parts) < 2 || len(parts[1]) < 7 {
		return "", fmt.Errorf("no date segment in %q", ticker)
	}
	seg := strings.ToUpper(parts[1][:7])
	year, err := strconv.Atoi(seg[:2])
	if err != nil {
		return "", fmt.Errorf("bad year in %q", ticker)
	}
	month, ok := months[seg[2:5]]
	if !ok {
		return "", fmt.Errorf("bad month in %q", ticker)
	}
	day, err := strconv.Atoi(seg[5:7])
	if err != nil || day < 1 || day > 31 {
		return "", fmt.Errorf("bad day in %q", ticker)
	}
	d := time.Date(2000+year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day {
		return "", fmt.Errorf("invalid date in %q", ticker)
	}
	return d.Format("2006-01-02"), nil
}

func teamCode(ticker string) string {
	idx := strings.LastIndex(ticker, "-")
	if idx < 0 {
		return ""
	}
	return ticker[idx+1:]
}

func gameTicker(ticker string) string {
	parts := strings.Split(ticker, "-")
	if len(parts) < 2 {
		return ticker
	}
	return parts[0] + "-" + parts[1]
}

func centsToFloat(v int64) float64 {
	return float64(v) / 100.0
}

type eventsResponse struct {
	Events []event `json:"events"`
	Cursor string  `json:"cursor"`
}

type event struct {
	Ticker       string `json:"event_ticker"`
	SeriesTicker string `json:"series_ticker"`
	Title        string `json:"title"`
}

type marketsResponse struct {
	Markets []market `json:"markets"`
	Cursor  string   `json:"cursor"`
}

type market struct {
	Ticker        string `json:"ticker"`
	Status        string `json:"status"`
	YesAsk        *int64 `json:"yes_ask"`
	YesAskDollars string `json:"yes_ask_dollars"`
}

// buyPrice is the yes ask in dollars rounded to cents. Quotes outside
// (0, 1] mean there is nothing to buy.
func (m market) buyPrice() *float64 {
	var p float64
	switch {
	case m.YesAsk != nil:
		p = centsToFloat(*m.YesAsk)
	case m.YesAskDollars != "":
		f, err := strconv.ParseFloat(m.YesAskDollars, 64)
		if err != nil {
			return nil
		}
		p = math.Round(f*100) / 100
	default:
		return nil
	}
	if p <= 0 || p > 1 {
		return nil
	}
	return &p
}
