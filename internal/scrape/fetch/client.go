// Package fetch is the browser-like HTTP client used to walk tracking
// redirects and read job portal pages.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"jobmail-engine/internal/scrape/util"
)

const (
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	DefaultAcceptLanguage = "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7"

	DefaultHopTimeout  = 5 * time.Second
	DefaultPageTimeout = 10 * time.Second

	maxPageBytes = 8 << 20
)

type Options struct {
	UserAgent   string
	HopTimeout  time.Duration
	PageTimeout time.Duration
	Limiter     *util.HostLimiter
	// Transport is used by tests to route requests; nil means the default.
	Transport http.RoundTripper
}

// Client issues GETs with browser headers. Hop never follows redirects; Page
// and Accessible follow them like a browser would.
type Client struct {
	ua      string
	hop     *http.Client
	page    *http.Client
	probe   *http.Client
	limiter *util.HostLimiter
	log     zerolog.Logger
}

// Hop is the outcome of a single non-following GET.
type Hop struct {
	Status   int
	Location string
}

func (h Hop) IsRedirect() bool { return h.Status >= 300 && h.Status < 400 }

func New(opts Options, log zerolog.Logger) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.HopTimeout <= 0 {
		opts.HopTimeout = DefaultHopTimeout
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = DefaultPageTimeout
	}

	noFollow := func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	return &Client{
		ua:      opts.UserAgent,
		hop:     &http.Client{Timeout: opts.HopTimeout, Transport: opts.Transport, CheckRedirect: noFollow},
		page:    &http.Client{Timeout: opts.PageTimeout, Transport: opts.Transport},
		probe:   &http.Client{Timeout: opts.HopTimeout, Transport: opts.Transport},
		limiter: opts.Limiter,
		log:     log,
	}
}

func (c *Client) newRequest(ctx context.Context, raw string) (*http.Request, error) {
	if err := c.limiter.WaitURL(ctx, raw); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.ua)
	req.Header.Set("Accept", DefaultAccept)
	req.Header.Set("Accept-Language", DefaultAcceptLanguage)
	return req, nil
}

// Hop performs one GET without following redirects.
func (c *Client) Hop(ctx context.Context, raw string) (Hop, error) {
	req, err := c.newRequest(ctx, raw)
	if err != nil {
		return Hop{}, fmt.Errorf("hop request: %w", err)
	}
	resp, err := c.hop.Do(req)
	if err != nil {
		return Hop{}, fmt.Errorf("hop %s: %w", raw, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return Hop{Status: resp.StatusCode, Location: resp.Header.Get("Location")}, nil
}

var ErrNotOK = errors.New("non-200 response")

// Page returns the body of raw when the final response is 200.
func (c *Client) Page(ctx context.Context, raw string) (string, error) {
	req, err := c.newRequest(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("page request: %w", err)
	}
	resp, err := c.page.Do(req)
	if err != nil {
		return "", fmt.Errorf("page %s: %w", raw, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		c.log.Debug().Str("url", raw).Int("status", resp.StatusCode).Msg("page fetch not ok")
		return "", fmt.Errorf("page %s: %w (%d)", raw, ErrNotOK, resp.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("page %s read: %w", raw, err)
	}
	return string(b), nil
}

// Accessible reports whether a GET on raw ends in 200.
func (c *Client) Accessible(ctx context.Context, raw string) bool {
	req, err := c.newRequest(ctx, raw)
	if err != nil {
		return false
	}
	resp, err := c.probe.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("url", raw).Msg("accessibility probe failed")
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode == http.StatusOK
}
