// Package metrics exposes Prometheus collectors for the ingestion service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for OCR attempts.
const (
	OutcomeSuccess      = "success"
	OutcomeInsufficient = "insufficient"
	OutcomeError        = "error"
)

var (
	pagesTotal                 *prometheus.CounterVec
	bytesTotal                 *prometheus.CounterVec
	documentsTotal             *prometheus.CounterVec
	ocrAttemptsTotal           *prometheus.CounterVec
	recordsInsertedTotal       prometheus.Counter
	jobRunsTotal               *prometheus.CounterVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	robotsFallbacksTotal       *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pyq_pages_total",
				Help: "Total number of pages fetched, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		bytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pyq_bytes_total",
				Help: "Total number of bytes downloaded, labeled by site.",
			},
			[]string{"site"},
		)

		documentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pyq_documents_total",
				Help: "Documents processed, labeled by the extraction method that produced text.",
			},
			[]string{"method"},
		)

		ocrAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pyq_ocr_attempts_total",
				Help: "OCR fallback attempts, labeled by service and outcome.",
			},
			[]string{"service", "outcome"},
		)

		recordsInsertedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pyq_records_inserted_total",
				Help: "Question records written to the corpus.",
			},
		)

		jobRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pyq_job_runs_total",
				Help: "Crawl, dedup and cleanup runs, labeled by kind and status.",
			},
			[]string{"kind", "status"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pyq_rate_limit_delays_seconds",
				Help:    "Histogram of politeness wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		robotsFallbacksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pyq_robots_fallbacks_total",
				Help: "robots.txt probes that fell back to allow-all, labeled by reason.",
			},
			[]string{"reason"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObservePage records one page or document fetch.
func ObservePage(site string, status string, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	pagesTotal.WithLabelValues(sanitizedSite, status).Inc()
	if bytesFetched > 0 {
		bytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveDocument records the extraction method that handled a document.
// An empty method means the document was discarded.
func ObserveDocument(method string) {
	Init()
	if method == "" {
		method = "none"
	}
	documentsTotal.WithLabelValues(method).Inc()
}

// ObserveOCRAttempt records one fallback tier attempt.
func ObserveOCRAttempt(service, outcome string) {
	Init()
	ocrAttemptsTotal.WithLabelValues(service, outcome).Inc()
}

// AddRecordsInserted adds n to the inserted record counter.
func AddRecordsInserted(n int) {
	Init()
	if n > 0 {
		recordsInsertedTotal.Add(float64(n))
	}
}

// ObserveJobRun counts one finished job run.
func ObserveJobRun(kind, status string) {
	Init()
	jobRunsTotal.WithLabelValues(kind, status).Inc()
}

// ObserveRateLimitDelay records the duration of a politeness wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveRobotsFallback counts a robots.txt probe treated as allow-all.
func ObserveRobotsFallback(reason string) {
	Init()
	robotsFallbacksTotal.WithLabelValues(reason).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
