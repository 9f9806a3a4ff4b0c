package crawler

import (
	"net/http"
	"time"
)

// FetchKind tells the fetcher what is being downloaded.
type FetchKind int

// Fetch kinds.
const (
	KindPage FetchKind = iota
	KindDocument
)

func (k FetchKind) String() string {
	if k == KindDocument {
		return "document"
	}
	return "page"
}

// RobotsStatus reports how robots.txt was evaluated for a fetch.
type RobotsStatus string

// Robots statuses.
const (
	RobotsStatusUnknown       RobotsStatus = ""
	RobotsStatusIndeterminate RobotsStatus = "indeterminate"
)

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL      string
	Kind     FetchKind
	Timeout  time.Duration
	MaxBytes int64
	Headers  http.Header
	// AllowedHost, when set, confines redirects to that hostname.
	AllowedHost string
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	ContentType  string
	DeclaredSize int64
	Duration     time.Duration
	RobotsStatus RobotsStatus
	RobotsReason string
}

// CrawlParams describes one crawl invocation and the metadata stamped on
// every record it produces.
type CrawlParams struct {
	RootURL      string
	MaxDepth     int
	MaxPages     int
	Exam         string
	Level        string
	Paper        string
	Theme        string
	YearFallback *int
	Lang         string
}

// CrawlTask is one queued page.
type CrawlTask struct {
	URL   string
	Depth int
}

// CrawlResult summarizes a finished crawl.
type CrawlResult struct {
	PagesVisited       int      `json:"pagesVisited"`
	PagesFailed        int      `json:"pagesFailed"`
	RecordsInserted    int      `json:"recordsInserted"`
	RecordsFailed      int      `json:"recordsFailed"`
	DocumentsSeen      int      `json:"documentsSeen"`
	DocumentsProcessed int      `json:"documentsProcessed"`
	DocumentsDiscarded int      `json:"documentsDiscarded"`
	DocumentsFailed    int      `json:"documentsFailed"`
	QuestionsSegmented int      `json:"questionsSegmented"`
	Visited            []string `json:"visited,omitempty"`
}

// DocumentOutcome is what a DocumentHandler reports for one document.
type DocumentOutcome struct {
	Method    string
	Questions int
	Inserted  int
	Failed    int
	Discarded bool
}
