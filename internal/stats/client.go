package stats

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	logx "hrbot/pkg/logx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodyBytes = 8 << 20

// Observer receives one call per upstream request. result is "ok" or "error".
type Observer interface {
	ObserveRequest(endpoint, result string, d time.Duration)
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RatePerSec int
	UserAgent  string

	HTTPClient *http.Client
	Observer   Observer
	Logger     logx.Logger
}

// Client reads the MLB Stats API. All methods are read-only and never retry.
type Client struct {
	http    *http.Client
	base    string
	ua      string
	limiter *rate.Limiter
	flight  singleflight.Group
	obs     Observer
	log     logx.Logger
}

func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "https://statsapi.mlb.com"
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = "hrbot/1.0"
	}
	return &Client{
		http:    hc,
		base:    base,
		ua:      ua,
		limiter: lim,
		obs:     cfg.Observer,
		log:     cfg.Logger.With(logx.String("comp", "stats")),
	}
}

// getJSON fetches base+path and decodes it into target. Identical concurrent
// requests share one round trip.
func (c *Client) getJSON(ctx context.Context, endpoint, path string, q url.Values, target any) error {
	full := c.base + path
	if enc := q.Encode(); enc != "" {
		full += "?" + enc
	}
	v, err, _ := c.flight.Do(full, func() (any, error) {
		return c.fetch(ctx, endpoint, full, "application/json")
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(v.([]byte), target); err != nil {
		return fmt.Errorf("%w: %s: decode: %v", ErrUnavailable, endpoint, err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, endpoint, full, accept string) ([]byte, error) {
	return fetchBody(ctx, c.http, c.limiter, c.ua, endpoint, full, accept, c.observe)
}

func (c *Client) observe(endpoint, result string, d time.Duration) {
	if c.obs != nil {
		c.obs.ObserveRequest(endpoint, result, d)
	}
}

// fetchBody performs one rate-limited GET. Any failure is wrapped in ErrUnavailable.
func fetchBody(ctx context.Context, hc *http.Client, lim *rate.Limiter, ua, endpoint, full, accept string, observe func(string, string, time.Duration)) ([]byte, error) {
	if err := lim.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, endpoint, err)
	}
	start := time.Now()
	body, err := doGet(ctx, hc, ua, full, accept)
	result := "ok"
	if err != nil {
		result = "error"
	}
	observe(endpoint, result, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, endpoint, err)
	}
	return body, nil
}

func doGet(ctx context.Context, hc *http.Client, ua, full, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", ua)

	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, abbreviate(body))
	}
	return body, nil
}

func abbreviate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 160 {
		return s[:160] + "..."
	}
	return s
}

// IsUnavailable reports whether err came from a failed upstream read.
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }
