package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/xhad/foiabias/internal/errs"
)

// Config describes a records API endpoint and how politely to speak to it.
type Config struct {
	BaseURL string
	// Token enables authenticated requests and lifts the rate limit.
	Token string
	// RateLimitSeconds is the delay between unauthenticated requests.
	RateLimitSeconds float64
	Timeout          time.Duration
}

// Client issues authenticated or unauthenticated GET requests against a
// cursor-paginated records API. A single client is safe to share: the rate
// gate is one limiter across all callers, not per worker.
type Client struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
}

func NewWithConfig(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	// A credential grants full-speed access; anonymous callers get gated at
	// one request per configured interval.
	var limiter *rate.Limiter
	if config.Token == "" && config.RateLimitSeconds > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Duration(config.RateLimitSeconds*float64(time.Second))), 1)
	}

	return &Client{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: limiter,
	}
}

// BaseURL returns the configured endpoint root.
func (c *Client) BaseURL() string { return c.config.BaseURL }

type page struct {
	Results []json.RawMessage `json:"results"`
	Next    *string           `json:"next"`
}

// Pages walks cursor-based pagination until exhausted, calling emit once per
// result row. Query parameters are sent only on the first request; later
// pages follow the server-supplied absolute "next" URL verbatim.
func (c *Client) Pages(ctx context.Context, path string, params url.Values, emit func(json.RawMessage) error) error {
	next := c.config.BaseURL + path
	first := true

	for next != "" {
		var body []byte
		var err error
		if first {
			body, err = c.get(ctx, next, params)
			first = false
		} else {
			body, err = c.get(ctx, next, nil)
		}
		if err != nil {
			return err
		}

		var pg page
		if err := json.Unmarshal(body, &pg); err != nil {
			return fmt.Errorf("decode page %s: %w", next, err)
		}
		for _, row := range pg.Results {
			if err := emit(row); err != nil {
				return err
			}
		}

		if pg.Next == nil {
			break
		}
		next = *pg.Next
	}
	return nil
}

// GetJSON fetches a single resource (e.g. a record detail view) into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, params url.Values, v any) error {
	body, err := c.get(ctx, rawURL, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

// Fetch opens a raw GET stream, used by the download cache for file bytes.
// The caller owns the returned body.
func (c *Client) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	if err := c.wait(ctx); err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	c.authorize(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, 0, &errs.TransportError{Status: resp.StatusCode, URL: rawURL}
	}
	return resp.Body, resp.ContentLength, nil
}

func (c *Client) get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	if len(params) > 0 {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse url %s: %w", rawURL, err)
		}
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Set(k, v)
			}
		}
		u.RawQuery = q.Encode()
		rawURL = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &errs.TransportError{Status: resp.StatusCode, URL: rawURL}
	}
	return io.ReadAll(resp.Body)
}

// authorize attaches the token only to requests for the API's own host.
// File bodies often live on a separate storage host that must not see it.
func (c *Client) authorize(req *http.Request) {
	if c.config.Token == "" {
		return
	}
	if base, err := url.Parse(c.config.BaseURL); err == nil && base.Host != "" && base.Host != req.URL.Host {
		return
	}
	req.Header.Set("Authorization", "Token "+c.config.Token)
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}
