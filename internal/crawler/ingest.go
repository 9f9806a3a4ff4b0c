package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pyq-crawler/internal/enrich"
	"github.com/JakeFAU/pyq-crawler/internal/extract"
	"github.com/JakeFAU/pyq-crawler/internal/logging"
	"github.com/JakeFAU/pyq-crawler/internal/metrics"
	"github.com/JakeFAU/pyq-crawler/internal/question"
	"github.com/JakeFAU/pyq-crawler/internal/segment"
)

// Ingestion defaults.
const (
	DefaultDocumentTimeout  = 30 * time.Second
	DefaultMaxDocumentBytes = 200 << 20
)

// IngestConfig tunes document downloads.
type IngestConfig struct {
	DocumentTimeout  time.Duration
	MaxDocumentBytes int64
}

// IngesterDeps groups the collaborators of a DocumentIngester. Archive is
// optional; Hasher is needed only with it.
type IngesterDeps struct {
	Fetcher   Fetcher
	Extractor TextExtractor
	Store     RecordInserter
	Enricher  *enrich.Enricher
	Archive   BlobStore
	Hasher    Hasher
	IDs       IDGenerator
	Clock     Clock
}

// DocumentIngester downloads a document, extracts and segments its text and
// writes one record per question.
type DocumentIngester struct {
	deps   IngesterDeps
	cfg    IngestConfig
	logger *zap.Logger
}

// NewDocumentIngester validates deps and returns an ingester.
func NewDocumentIngester(deps IngesterDeps, cfg IngestConfig, logger *zap.Logger) (*DocumentIngester, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("fetcher is required")
	case deps.Extractor == nil:
		return nil, errors.New("extractor is required")
	case deps.Store == nil:
		return nil, errors.New("record store is required")
	case deps.IDs == nil:
		return nil, errors.New("id generator is required")
	case deps.Clock == nil:
		return nil, errors.New("clock is required")
	case deps.Archive != nil && deps.Hasher == nil:
		return nil, errors.New("hasher is required when archiving")
	}
	if deps.Enricher == nil {
		deps.Enricher = enrich.New(nil, 0)
	}
	if cfg.DocumentTimeout <= 0 {
		cfg.DocumentTimeout = DefaultDocumentTimeout
	}
	if cfg.MaxDocumentBytes <= 0 {
		cfg.MaxDocumentBytes = DefaultMaxDocumentBytes
	}
	return &DocumentIngester{
		deps:   deps,
		cfg:    cfg,
		logger: logging.OrNop(logger).Named("ingest"),
	}, nil
}

// HandleDocument implements DocumentHandler. Download failures come back as
// *FetchError; a document without usable text is reported as discarded.
func (d *DocumentIngester) HandleDocument(ctx context.Context, docURL string, params CrawlParams) (DocumentOutcome, error) {
	var out DocumentOutcome

	resp, err := d.deps.Fetcher.Fetch(ctx, FetchRequest{
		URL:      docURL,
		Kind:     KindDocument,
		Timeout:  d.cfg.DocumentTimeout,
		MaxBytes: d.cfg.MaxDocumentBytes,
	})
	if err != nil {
		metrics.ObservePage(docURL, "error", 0)
		return out, &FetchError{URL: docURL, Err: err}
	}
	metrics.ObservePage(docURL, "ok", len(resp.Body))

	d.archive(ctx, docURL, resp)

	res, err := d.deps.Extractor.Extract(ctx, extract.Document{
		URL:          docURL,
		Data:         resp.Body,
		ContentType:  resp.ContentType,
		DeclaredSize: resp.DeclaredSize,
	})
	if err != nil {
		return out, fmt.Errorf("extract %s: %w", docURL, err)
	}
	if res.Empty() {
		out.Discarded = true
		d.logger.Info("document discarded, no text", zap.String("url", docURL))
		return out, nil
	}
	out.Method = string(res.Method)

	questions := segment.Segment(res.Text)
	out.Questions = len(questions)
	if len(questions) == 0 {
		d.logger.Info("no questions found in document",
			zap.String("url", docURL),
			zap.String("method", out.Method),
			zap.Int("chars", res.CharCount))
		return out, nil
	}

	now := d.deps.Clock.Now()
	md := d.deps.Enricher.Document(res.Text, docURL, params.YearFallback, now)
	primary := params.Lang
	if primary == "" {
		primary = question.DefaultLang
	}
	primary = d.deps.Enricher.Lang(res.Text, primary)

	for _, q := range questions {
		rec, err := d.newRecord(q, docURL, params, md, primary, now)
		if err != nil {
			out.Failed++
			d.logger.Error("failed to build record", zap.String("url", docURL), zap.Error(err))
			continue
		}
		if err := d.deps.Store.Insert(ctx, rec); err != nil {
			out.Failed++
			var perr *question.PersistenceError
			if !errors.As(err, &perr) {
				err = &question.PersistenceError{Op: "insert", ID: rec.ID, Err: err}
			}
			d.logger.Error("failed to insert record", zap.String("url", docURL), zap.Error(err))
			continue
		}
		out.Inserted++
	}
	metrics.AddRecordsInserted(out.Inserted)

	d.logger.Info("document ingested",
		zap.String("url", docURL),
		zap.String("method", out.Method),
		zap.Int("questions", out.Questions),
		zap.Int("inserted", out.Inserted))
	return out, nil
}

func (d *DocumentIngester) newRecord(
	q, docURL string,
	params CrawlParams,
	md enrich.Metadata,
	primaryLang string,
	now time.Time,
) (question.Record, error) {
	id, err := d.deps.IDs.NewID()
	if err != nil {
		return question.Record{}, fmt.Errorf("generate id: %w", err)
	}
	tags := []string{}
	if params.Theme != "" {
		tags = []string{params.Theme}
	}
	var year *int
	if md.Year != nil {
		year = question.IntPtr(*md.Year)
	}
	return question.Record{
		ID:         id,
		Exam:       params.Exam,
		Level:      params.Level,
		Paper:      params.Paper,
		Year:       year,
		Question:   q,
		TopicTags:  tags,
		Keywords:   []string{},
		Theme:      params.Theme,
		SourceLink: docURL,
		Lang:       d.deps.Enricher.Lang(q, primaryLang),
		Verified:   md.Verified,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// archive stores the raw document under documents/<host>/<digest>.pdf.
// Failures are logged only.
func (d *DocumentIngester) archive(ctx context.Context, docURL string, resp FetchResponse) {
	if d.deps.Archive == nil {
		return
	}
	key, err := d.archiveKey(docURL, resp.Body)
	if err != nil {
		d.logger.Warn("failed to derive archive key", zap.String("url", docURL), zap.Error(err))
		return
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	uri, err := d.deps.Archive.PutObject(ctx, key, contentType, bytes.NewReader(resp.Body))
	if err != nil {
		d.logger.Warn("failed to archive document", zap.String("url", docURL), zap.Error(err))
		return
	}
	d.logger.Debug("document archived", zap.String("url", docURL), zap.String("uri", uri))
}

func (d *DocumentIngester) archiveKey(docURL string, body []byte) (string, error) {
	host := "unknown"
	if u, err := url.Parse(docURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	digest, err := d.deps.Hasher.Hash(body)
	if err != nil {
		return "", fmt.Errorf("hash document: %w", err)
	}
	return path.Join("documents", host, digest+".pdf"), nil
}
