// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/pyq-crawler/internal/crawler"
)

const (
	defaultTimeout = 30 * time.Second
	maxRedirects   = 10
)

// ErrOffHostRedirect is returned when a fetch confined to one host is
// redirected elsewhere.
var ErrOffHostRedirect = errors.New("redirect leaves allowed host")

type allowedHostKey struct{}

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	// MaxBodySize caps downloads when a request carries no limit of its own.
	MaxBodySize int64
	// RobotsBackoff is the wait before each robots.txt retry; nil uses
	// DefaultRobotsBackoff and an empty slice disables retries.
	RobotsBackoff []time.Duration
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	robots        *robotsLedger
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. Revisits are allowed because the crawl frontier
// owns deduplication.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
	)
	var robots *robotsLedger
	if cfg.RespectRobots {
		robots = newRobotsLedger()
		c.WithTransport(newRobotsTransport(newHTTPTransport(), cfg.RobotsBackoff, robots))
	} else {
		c.WithTransport(newHTTPTransport())
	}
	// Clones share the base http.Client, so the policy travels on the
	// request context rather than in per-clone state.
	c.SetRedirectHandler(checkRedirect)

	return &Fetcher{
		cfg:           cfg,
		robots:        robots,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET using Colly. Non-2xx statuses are errors.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	var (
		result   crawler.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(ctx, request, start, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, request.URL, &fetchErr); err != nil {
		return crawler.FetchResponse{}, err
	}
	f.robots.annotate(&result, hostname(request.URL))
	return result, nil
}

func (f *Fetcher) buildCollector(
	ctx context.Context,
	request crawler.FetchRequest,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.AllowURLRevisit = true
	collector.Context = context.WithValue(ctx, allowedHostKey{}, request.AllowedHost)
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots

	timeout := request.Timeout
	if timeout <= 0 {
		timeout = f.cfg.Timeout
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	collector.SetRequestTimeout(timeout)

	maxBytes := request.MaxBytes
	if maxBytes <= 0 {
		maxBytes = f.cfg.MaxBodySize
	}
	if maxBytes > 0 {
		collector.MaxBodySize = int(maxBytes)
	}

	f.configureCollectorHooks(collector, request, start, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request crawler.FetchRequest,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		copyHeaders(request.Headers, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		var headers http.Header
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		body := append([]byte(nil), r.Body...)
		*result = crawler.FetchResponse{
			URL:          r.Request.URL.String(),
			StatusCode:   r.StatusCode,
			Headers:      headers,
			Body:         body,
			ContentType:  headers.Get("Content-Type"),
			DeclaredSize: declaredSize(headers, len(body)),
			Duration:     time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, rawURL string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

// checkRedirect caps the redirect chain and, for host-confined requests,
// refuses any hop to a different hostname.
func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	host, _ := req.Context().Value(allowedHostKey{}).(string)
	if host != "" && !strings.EqualFold(req.URL.Hostname(), host) {
		return fmt.Errorf("%w: %s", ErrOffHostRedirect, req.URL.Host)
	}
	return nil
}

func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func copyHeaders(headers http.Header, r *colly.Request) {
	for key, values := range headers {
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

// declaredSize prefers Content-Length, which survives body truncation.
func declaredSize(headers http.Header, bodyLen int) int64 {
	if headers != nil {
		if n, err := strconv.ParseInt(headers.Get("Content-Length"), 10, 64); err == nil && n >= 0 {
			return n
		}
	}
	return int64(bodyLen)
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
