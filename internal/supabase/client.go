// Package supabase writes opportunities to a Supabase (PostgREST) table.
package supabase

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hetulpatel/sportsarb/internal/arb"
	"github.com/hetulpatel/sportsarb/internal/httpclient"
	"github.com/hetulpatel/sportsarb/internal/logging"
)

const defaultTable = "sports"

// Config identifies the project and credentials.
type Config struct {
	URL        string
	ServiceKey string
	Table      string
	Timeout    time.Duration
	HTTP       httpclient.Config
}

// Client is an opportunity sink backed by the Supabase REST API.
type Client struct {
	restURL string
	key     string
	table   string
	http    *httpclient.Client
}

// row mirrors the columns of the hosted table.
type row struct {
	Question       string  `json:"question"`
	Date           string  `json:"date"`
	Kalshi         string  `json:"kalshi"`
	Polymarket     string  `json:"polymarket"`
	Profit         float64 `json:"profit"`
	KalshiLink     string  `json:"kalshi_link"`
	PolymarketLink string  `json:"polymarket_link"`
	Sport          string  `json:"sport"`
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" || cfg.ServiceKey == "" {
		return nil, fmt.Errorf("supabase url and service role key are required")
	}
	table := cfg.Table
	if table == "" {
		table = defaultTable
	}
	httpCfg := cfg.HTTP
	httpCfg.Name = "supabase"
	if httpCfg.Timeout <= 0 {
		httpCfg.Timeout = cfg.Timeout
	}
	return &Client{
		restURL: strings.TrimRight(cfg.URL, "/") + "/rest/v1/",
		key:     cfg.ServiceKey,
		table:   table,
		http:    httpclient.New(httpCfg),
	}, nil
}

func (c *Client) Name() string {
	return "supabase"
}

// Publish deletes the sport's rows and inserts opps as one batch.
func (c *Client) Publish(ctx context.Context, sport string, opps []arb.Opportunity) error {
	if err := c.deleteBySport(ctx, sport); err != nil {
		return err
	}
	if len(opps) == 0 {
		logging.Debugf("[supabase] no %s opportunities to write", sport)
		return nil
	}
	rows := make([]row, 0, len(opps))
	for _, o := range opps {
		rows = append(rows, row{
			Question:       o.Question,
			Date:           o.Date,
			Kalshi:         o.Kalshi,
			Polymarket:     o.Polymarket,
			Profit:         o.Profit,
			KalshiLink:     o.KalshiLink,
			PolymarketLink: o.PolymarketLink,
			Sport:          sport,
		})
	}
	req := c.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "return=minimal").
		SetBody(rows)
	if err := c.http.Do(req, http.MethodPost, c.restURL+c.table, nil); err != nil {
		return fmt.Errorf("insert %d %s rows: %w", len(rows), sport, err)
	}
	logging.Infof("[supabase] wrote %d %s opportunities", len(rows), sport)
	return nil
}

func (c *Client) deleteBySport(ctx context.Context, sport string) error {
	req := c.request(ctx).SetQueryParam("sport", "eq."+sport)
	if err := c.http.Do(req, http.MethodDelete, c.restURL+c.table, nil); err != nil {
		return fmt.Errorf("delete %s rows: %w", sport, err)
	}
	return nil
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.Request(ctx).
		SetHeader("apikey", c.key).
		SetAuthToken(c.key)
}

func (c *Client) Close() error {
	return nil
}
