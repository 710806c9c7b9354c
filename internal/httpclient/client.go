package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Config tunes a venue client. Zero values take the defaults below.
type Config struct {
	Name      string
	Timeout   time.Duration
	Retries   int
	RetryWait time.Duration
	MaxWait   time.Duration
	UserAgent string
}

const (
	defaultTimeout   = 30 * time.Second
	defaultRetries   = 4
	defaultRetryWait = time.Second
	defaultMaxWait   = 30 * time.Second
)

// Client is a thin JSON GET/POST wrapper with retry on transport errors,
// 429 and 5xx.
type Client struct {
	name string
	r    *resty.Client
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retries == 0 {
		cfg.Retries = defaultRetries
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = defaultRetryWait
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "sportsarb/1.0"
	}

	r := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.MaxWait).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", cfg.UserAgent).
		AddRetryCondition(shouldRetry)

	return &Client{name: cfg.Name, r: r}
}

func shouldRetry(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return false
	}
	status := resp.StatusCode()
	return status == http.StatusTooManyRequests || status >= 500
}

// Request starts a request bound to ctx for callers needing custom verbs or headers.
func (c *Client) Request(ctx context.Context) *resty.Request {
	return c.r.R().SetContext(ctx)
}

// GetJSON issues a GET and decodes a 2xx body into dst.
func (c *Client) GetJSON(ctx context.Context, url string, params map[string]string, dst any) error {
	resp, err := c.Request(ctx).SetQueryParams(params).Get(url)
	return c.decode(resp, err, dst)
}

// Do sends req (built from Request) and decodes a 2xx body into dst when dst is non-nil.
func (c *Client) Do(req *resty.Request, method, url string, dst any) error {
	resp, err := req.Execute(method, url)
	return c.decode(resp, err, dst)
}

func (c *Client) decode(resp *resty.Response, err error, dst any) error {
	if err != nil {
		return fmt.Errorf("%s request: %w", c.name, err)
	}
	if resp.IsError() {
		body := resp.Body()
		if len(body) > 2048 {
			body = body[:2048]
		}
		return &StatusError{Service: c.name, Code: resp.StatusCode(), Body: string(body)}
	}
	if dst == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), dst); err != nil {
		return fmt.Errorf("%s decode: %w", c.name, err)
	}
	return nil
}

// StatusError reports a non-2xx reply.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API %d %s: %s", e.Service, e.Code, http.StatusText(e.Code), e.Body)
}
