package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/pyq-crawler/internal/crawler"
	"github.com/JakeFAU/pyq-crawler/internal/metrics"
)

const (
	reasonRobotsTimeout = "robots.txt timed out"
	allowAllRobots      = "User-agent: *\nAllow: /"
)

// DefaultRobotsBackoff is the wait before each robots.txt retry. Exam
// portals are often slow to finish TLS handshakes and answer 503 under load.
var DefaultRobotsBackoff = []time.Duration{
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

// robotsLedger remembers hosts whose robots.txt could not be read and was
// treated as allow-all. Colly caches robots rules per host for every clone of
// a collector, so one fallback covers all later fetches on that host.
type robotsLedger struct {
	mu     sync.Mutex
	byHost map[string]string
}

func newRobotsLedger() *robotsLedger {
	return &robotsLedger{byHost: make(map[string]string)}
}

// markFallback records reason for host and reports whether it was new.
func (l *robotsLedger) markFallback(host, reason string) bool {
	host = strings.ToLower(host)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byHost[host]; ok {
		return false
	}
	l.byHost[host] = reason
	return true
}

func (l *robotsLedger) fallbackReason(host string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	reason, ok := l.byHost[strings.ToLower(host)]
	return reason, ok
}

// annotate flags resp as fetched without real robots rules when its host
// fell back to allow-all.
func (l *robotsLedger) annotate(resp *crawler.FetchResponse, host string) {
	if l == nil || resp == nil || host == "" {
		return
	}
	if reason, ok := l.fallbackReason(host); ok {
		resp.RobotsStatus = crawler.RobotsStatusIndeterminate
		resp.RobotsReason = reason
	}
}

// robotsTransport retries robots.txt lookups on timeouts and server errors.
// Every other request goes straight to base.
type robotsTransport struct {
	base    http.RoundTripper
	backoff []time.Duration
	ledger  *robotsLedger
}

func newRobotsTransport(base http.RoundTripper, backoff []time.Duration, ledger *robotsLedger) *robotsTransport {
	if backoff == nil {
		backoff = DefaultRobotsBackoff
	}
	return &robotsTransport{base: base, backoff: backoff, ledger: ledger}
}

func (t *robotsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil || req.URL == nil {
		return nil, errors.New("robots transport: nil request")
	}
	if !strings.EqualFold(req.URL.Path, "/robots.txt") {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, fmt.Errorf("roundtrip %s: %w", req.URL.Host, err)
		}
		return resp, nil
	}
	return t.lookup(req)
}

// lookup fetches robots.txt. A host that keeps timing out is treated as
// allow-all and recorded in the ledger. A persistent 5xx is returned as is,
// which colly reads as disallow-all.
func (t *robotsTransport) lookup(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := t.base.RoundTrip(req.Clone(req.Context()))
		last := attempt == len(t.backoff)
		switch {
		case err == nil && resp.StatusCode < http.StatusInternalServerError:
			return resp, nil
		case err == nil:
			if last {
				return resp, nil
			}
			drain(resp)
		case !isTimeout(err):
			return nil, fmt.Errorf("robots.txt %s: %w", req.URL.Host, err)
		case last:
			if t.ledger.markFallback(req.URL.Hostname(), reasonRobotsTimeout) {
				metrics.ObserveRobotsFallback(reasonRobotsTimeout)
			}
			return allowAllResponse(req), nil
		}
		if err := wait(req.Context(), t.backoff[attempt]); err != nil {
			return nil, fmt.Errorf("robots.txt %s: %w", req.URL.Host, err)
		}
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}

func wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func allowAllResponse(req *http.Request) *http.Response {
	return &http.Response{
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Body:          io.NopCloser(strings.NewReader(allowAllRobots)),
		ContentLength: int64(len(allowAllRobots)),
		Header:        http.Header{"Content-Type": {"text/plain"}},
		Request:       req,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "tls: handshake timeout")
}
