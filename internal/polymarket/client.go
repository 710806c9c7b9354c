package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/hetulpatel/sportsarb/internal/canonical"
	"github.com/hetulpatel/sportsarb/internal/collectors"
	"github.com/hetulpatel/sportsarb/internal/fetch"
	"github.com/hetulpatel/sportsarb/internal/httpclient"
	"github.com/hetulpatel/sportsarb/internal/logging"
)

const (
	defaultGammaURL = "https://gamma-api.polymarket.com"
	defaultClobURL  = "https://clob.polymarket.com"
	defaultEventURL = "https://polymarket.com/event/"

	defaultWindow   = 21 * 24 * time.Hour
	defaultPageSize = 100
	defaultMaxPages = 5

	// priceSide is the CLOB book side whose top level a taker buys from.
	priceSide = "SELL"
)

// DefaultTagIDs are the Gamma tag ids of each league's game markets.
var DefaultTagIDs = map[canonical.Sport]string{
	canonical.SportNBA: "745",
	canonical.SportNFL: "450",
	canonical.SportNHL: "899",
}

// Client discovers moneyline game markets on Gamma and prices each outcome
// token against the CLOB.
type Client struct {
	gammaURL    string
	clobURL     string
	eventURL    string
	tags        map[canonical.Sport]string
	window      time.Duration
	pageSize    int
	maxPages    int
	concurrency int
	timeout     time.Duration
	observe     func(error, time.Duration)
	now         func() time.Time
	location    *time.Location
	http        *httpclient.Client
}

// Config provides optional overrides.
type Config struct {
	GammaURL    string
	ClobURL     string
	EventURL    string
	TagIDs      map[canonical.Sport]string
	Window      time.Duration
	PageSize    int
	MaxPages    int
	Concurrency int
	Timeout     time.Duration
	HTTP        httpclient.Config
	Observe     func(err error, elapsed time.Duration)
	Now         func() time.Time
}

// NewClient builds a Polymarket client with sane defaults.
func NewClient(cfg Config) *Client {
	c := &Client{
		gammaURL:    strings.TrimRight(orDefault(cfg.GammaURL, defaultGammaURL), "/"),
		clobURL:     strings.TrimRight(orDefault(cfg.ClobURL, defaultClobURL), "/"),
		eventURL:    orDefault(cfg.EventURL, defaultEventURL),
		tags:        cfg.TagIDs,
		window:      cfg.Window,
		pageSize:    cfg.PageSize,
		maxPages:    cfg.MaxPages,
		concurrency: cfg.Concurrency,
		timeout:     cfg.Timeout,
		observe:     cfg.Observe,
		now:         cfg.Now,
	}
	if c.tags == nil {
		c.tags = DefaultTagIDs
	}
	if c.window <= 0 {
		c.window = defaultWindow
	}
	if c.pageSize <= 0 {
		c.pageSize = defaultPageSize
	}
	if c.maxPages <= 0 {
		c.maxPages = defaultMaxPages
	}
	if c.concurrency <= 0 {
		c.concurrency = fetch.DefaultLimit
	}
	if c.timeout <= 0 {
		c.timeout = fetch.DefaultTimeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("EST", -5*60*60)
	}
	c.location = loc

	httpCfg := cfg.HTTP
	httpCfg.Name = "polymarket"
	if httpCfg.Timeout <= 0 {
		httpCfg.Timeout = c.timeout
	}
	c.http = httpclient.New(httpCfg)
	return c
}

func (c *Client) Name() string {
	return "polymarket"
}

// Fetch lists the sport's upcoming game markets and prices both outcomes of
// each. Markets whose prices cannot be fetched are still returned with nil
// prices.
func (c *Client) Fetch(ctx context.Context, opts collectors.FetchOptions) ([]collectors.Entry, error) {
	tag, ok := c.tags[opts.Sport]
	if !ok || tag == "" {
		return nil, collectors.DiscoveryError(collectors.VenuePolymarket, fmt.Errorf("no tag id for sport %q", opts.Sport))
	}

	markets, err := c.listMarkets(ctx, tag)
	if err != nil {
		return nil, collectors.DiscoveryError(collectors.VenuePolymarket, err)
	}

	candidates := make([]candidate, 0, len(markets))
	for _, m := range markets {
		cand, err := c.toCandidate(m, opts.Sport)
		if err != nil {
			logging.Debugf("[polymarket] skip market %s: %v", m.ID, err)
			continue
		}
		candidates = append(candidates, cand)
	}

	tasks := make([]fetch.Task[*float64], 0, 2*len(candidates))
	for _, cand := range candidates {
		for _, token := range cand.tokens {
			tasks = append(tasks, func(ctx context.Context) (*float64, error) {
				return c.fetchPrice(ctx, token)
			})
		}
	}
	results := fetch.Run(ctx, fetch.Options{Limit: c.concurrency, Timeout: c.timeout, Observe: c.observe}, tasks)
	if failed := fetch.Failures(results); failed > 0 {
		logging.Infof("[polymarket] %s: %d of %d price requests failed", opts.Sport, failed, len(results))
	}

	entries := make([]collectors.Entry, 0, len(candidates))
	for i, cand := range candidates {
		e := collectors.NewEntry(collectors.VenuePolymarket, opts.Sport, cand.names[0], cand.names[1], cand.date)
		e.ExternalID = cand.marketID
		e.Link = c.eventURL + cand.slug
		for j, name := range cand.names {
			r := results[2*i+j]
			if r.Err != nil {
				logging.Debugf("[polymarket] price %s (%s): %v", cand.tokens[j], name, r.Err)
				continue
			}
			e.OutcomePrices[name] = r.Value
		}
		entries = append(entries, e)
	}
	return entries, nil
}

type candidate struct {
	marketID string
	slug     string
	date     string
	names    [2]string
	tokens   [2]string
}

func (c *Client) toCandidate(m market, sport canonical.Sport) (candidate, error) {
	if m.Closed || !m.AcceptingOrders {
		return candidate{}, fmt.Errorf("not accepting orders")
	}
	rawA, rawB, ok := canonical.ParseMatchup(m.Question)
	if !ok {
		return candidate{}, fmt.Errorf("unparseable question %q", m.Question)
	}
	a, b := canonical.Canonicalize(rawA, sport), canonical.Canonicalize(rawB, sport)
	if a == b {
		return candidate{}, fmt.Errorf("both sides resolve to %q", a)
	}
	tokens := parseClobTokenIDs(m.ClobTokenIds)
	if len(tokens) != 2 || tokens[0] == "" || tokens[1] == "" {
		return candidate{}, fmt.Errorf("expected 2 clob tokens, got %d", len(tokens))
	}
	date, err := c.easternDate(m.EndDate)
	if err != nil {
		return candidate{}, err
	}
	return candidate{
		marketID: m.ID,
		slug:     m.Slug,
		date:     date,
		names:    [2]string{a, b},
		tokens:   [2]string{tokens[0], tokens[1]},
	}, nil
}

func (c *Client) listMarkets(ctx context.Context, tag string) ([]market, error) {
	now := c.now().UTC()
	var all []market
	for page := 0; page < c.maxPages; page++ {
		params := map[string]string{
			"end_date_min":        now.Format(time.RFC3339),
			"end_date_max":        now.Add(c.window).Format(time.RFC3339),
			"sports_market_types": "moneyline",
			"tag_id":              tag,
			"limit":               strconv.Itoa(c.pageSize),
			"offset":              strconv.Itoa(page * c.pageSize),
		}
		var batch []market
		if err := c.http.GetJSON(ctx, c.gammaURL+"/markets", params, &batch); err != nil {
			if page == 0 {
				return nil, err
			}
			logging.Errorf("[polymarket] markets page %d: %v", page, err)
			break
		}
		all = append(all, batch...)
		if len(batch) < c.pageSize {
			break
		}
	}
	return all, nil
}

func (c *Client) fetchPrice(ctx context.Context, tokenID string) (*float64, error) {
	var out priceResponse
	params := map[string]string{"token_id": tokenID, "side": priceSide}
	if err := c.http.GetJSON(ctx, c.clobURL+"/price", params, &out); err != nil {
		return nil, err
	}
	p, ok := out.value()
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (c *Client) easternDate(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("missing end date")
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return "", fmt.Errorf("parse end date %q: %w", raw, err)
	}
	return ts.In(c.location).Format("2006-01-02"), nil
}

func parseClobTokenIDs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	return ids
}

func parseDecimal(val string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

type market struct {
	ID              string `json:"id"`
	Question        string `json:"question"`
	Slug            string `json:"slug"`
	EndDate         string `json:"endDate"`
	ClobTokenIds    string `json:"clobTokenIds"`
	Active          bool   `json:"active"`
	Closed          bool   `json:"closed"`
	AcceptingOrders bool   `json:"acceptingOrders"`
}

type priceResponse struct {
	Price json.RawMessage `json:"price"`
}

// value accepts both "0.55" and 0.55; anything outside (0,1] is treated as absent.
func (p priceResponse) value() (float64, bool) {
	raw := strings.Trim(string(p.Price), `"`)
	if raw == "" || raw == "null" {
		return 0, false
	}
	f, ok := parseDecimal(raw)
	if !ok || f <= 0 || f > 1 {
		return 0, false
	}
	return f, true
}
