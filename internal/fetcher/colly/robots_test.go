package collyfetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pyq-crawler/internal/crawler"
)

func robotsRequest(host string) *http.Request {
	return httptest.NewRequest(http.MethodGet, "https://"+host+"/robots.txt", nil)
}

func TestRobotsTimeoutFallsBackToAllowAll(t *testing.T) {
	t.Parallel()

	ledger := newRobotsLedger()
	base := &stubRoundTripper{results: []roundTripResult{{err: context.DeadlineExceeded}}}
	transport := newRobotsTransport(base, []time.Duration{0, 0}, ledger)

	resp, err := transport.RoundTrip(robotsRequest("upsc.gov.in"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, resp.Body.Close()) })

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, allowAllRobots, string(body))
	require.Equal(t, 3, base.calls)

	reason, ok := ledger.fallbackReason("UPSC.gov.in")
	require.True(t, ok)
	require.Equal(t, reasonRobotsTimeout, reason)
	require.False(t, ledger.markFallback("upsc.gov.in", "again"))

	var page crawler.FetchResponse
	ledger.annotate(&page, "upsc.gov.in")
	require.Equal(t, crawler.RobotsStatusIndeterminate, page.RobotsStatus)
	require.Equal(t, reasonRobotsTimeout, page.RobotsReason)

	var other crawler.FetchResponse
	ledger.annotate(&other, "ssc.gov.in")
	require.Equal(t, crawler.RobotsStatusUnknown, other.RobotsStatus)
}

func TestRobotsRetriesUntilAnswered(t *testing.T) {
	t.Parallel()

	ledger := newRobotsLedger()
	base := &stubRoundTripper{results: []roundTripResult{
		{err: context.DeadlineExceeded},
		{resp: statusResponse(http.StatusServiceUnavailable)},
		{resp: statusResponse(http.StatusOK)},
	}}
	transport := newRobotsTransport(base, []time.Duration{0, 0, 0}, ledger)

	resp, err := transport.RoundTrip(robotsRequest("ssc.nic.in"))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 3, base.calls)
	_, ok := ledger.fallbackReason("ssc.nic.in")
	require.False(t, ok)
}

func TestRobotsPersistentServerErrorIsReturned(t *testing.T) {
	t.Parallel()

	ledger := newRobotsLedger()
	base := &stubRoundTripper{results: []roundTripResult{{resp: statusResponse(http.StatusBadGateway)}}}
	transport := newRobotsTransport(base, []time.Duration{0}, ledger)

	resp, err := transport.RoundTrip(robotsRequest("tnpsc.gov.in"))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.Equal(t, 2, base.calls)
	_, ok := ledger.fallbackReason("tnpsc.gov.in")
	require.False(t, ok)
}

func TestRobotsPermanentErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	base := &stubRoundTripper{results: []roundTripResult{{err: errors.New("connection refused")}}}
	transport := newRobotsTransport(base, nil, newRobotsLedger())

	_, err := transport.RoundTrip(robotsRequest("upsc.gov.in")) //nolint:bodyclose // error path returns no body
	require.ErrorContains(t, err, "connection refused")
	require.Equal(t, 1, base.calls)
}

func TestRobotsBackoffHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	base := &stubRoundTripper{results: []roundTripResult{{err: context.DeadlineExceeded}}}
	transport := newRobotsTransport(base, []time.Duration{time.Hour}, newRobotsLedger())

	_, err := transport.RoundTrip(robotsRequest("upsc.gov.in").WithContext(ctx)) //nolint:bodyclose // error path returns no body
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, base.calls)
}

func TestRobotsTransportPassesOtherRequests(t *testing.T) {
	t.Parallel()

	base := &stubRoundTripper{results: []roundTripResult{{err: context.DeadlineExceeded}}}
	transport := newRobotsTransport(base, nil, newRobotsLedger())

	req := httptest.NewRequest(http.MethodGet, "https://upsc.gov.in/papers", nil)
	_, err := transport.RoundTrip(req) //nolint:bodyclose // error path returns no body
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, base.calls)
}

func TestFetchRetriesFlakyRobots(t *testing.T) {
	t.Parallel()

	var robotsHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		if robotsHits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>papers</html>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f := New(Config{RespectRobots: true, Timeout: 5 * time.Second, RobotsBackoff: []time.Duration{0}})

	resp, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL + "/papers"})
	require.NoError(t, err)
	require.Contains(t, string(resp.Body), "papers")
	require.Equal(t, crawler.RobotsStatusUnknown, resp.RobotsStatus)

	_, err = f.Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL + "/private/qp.pdf"})
	require.ErrorIs(t, err, colly.ErrRobotsTxtBlocked)
	require.Equal(t, int32(2), robotsHits.Load())
}

func statusResponse(code int) *http.Response {
	return &http.Response{
		StatusCode: code,
		Status:     http.StatusText(code),
		Body:       io.NopCloser(strings.NewReader("")),
		Header:     make(http.Header),
	}
}

type roundTripResult struct {
	resp *http.Response
	err  error
}

type stubRoundTripper struct {
	results []roundTripResult
	calls   int
}

func (s *stubRoundTripper) RoundTrip(_ *http.Request) (*http.Response, error) {
	defer func() { s.calls++ }()
	idx := s.calls
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	res := s.results[idx]
	return res.resp, res.err
}
