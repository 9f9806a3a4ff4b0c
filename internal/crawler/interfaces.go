package crawler

import (
	"context"
	"io"
	"time"

	"github.com/JakeFAU/pyq-crawler/internal/extract"
	"github.com/JakeFAU/pyq-crawler/internal/question"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Limiter paces requests per host.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// DocumentHandler ingests one discovered document.
type DocumentHandler interface {
	HandleDocument(ctx context.Context, docURL string, params CrawlParams) (DocumentOutcome, error)
}

// TextExtractor turns a downloaded document into text.
type TextExtractor interface {
	Extract(ctx context.Context, doc extract.Document) (extract.Result, error)
}

// RecordInserter persists question records.
type RecordInserter interface {
	Insert(ctx context.Context, rec question.Record) error
}

// BlobStore archives raw documents and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs.
type IDGenerator interface {
	NewID() (string, error)
}
