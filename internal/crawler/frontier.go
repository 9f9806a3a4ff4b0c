package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pyq-crawler/internal/logging"
	"github.com/JakeFAU/pyq-crawler/internal/metrics"
)

// Crawl defaults.
const (
	DefaultMaxDepth    = 2
	DefaultMaxPages    = 60
	DefaultPageTimeout = 30 * time.Second
)

// EngineConfig tunes page fetching.
type EngineConfig struct {
	PageTimeout time.Duration
}

// Engine runs sequential breadth-first crawls.
type Engine struct {
	fetcher   Fetcher
	limiter   Limiter
	documents DocumentHandler
	cfg       EngineConfig
	logger    *zap.Logger
}

// NewEngine wires a crawl engine. limiter may be nil to disable pacing.
func NewEngine(fetcher Fetcher, documents DocumentHandler, limiter Limiter, cfg EngineConfig, logger *zap.Logger) (*Engine, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if documents == nil {
		return nil, errors.New("document handler is required")
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = DefaultPageTimeout
	}
	return &Engine{
		fetcher:   fetcher,
		limiter:   limiter,
		documents: documents,
		cfg:       cfg,
		logger:    logging.OrNop(logger).Named("crawler"),
	}, nil
}

// Crawl walks pages from params.RootURL. Only pages on the root's host are
// fetched, at most params.MaxPages of them and no deeper than
// params.MaxDepth. Document links are handled inline, on any host, once per
// crawl. Page and document failures are logged and skipped; the only errors
// returned are an invalid root and context cancellation, in which case the
// partial result is returned alongside.
func (e *Engine) Crawl(ctx context.Context, params CrawlParams) (CrawlResult, error) {
	root, err := parseRoot(params.RootURL)
	if err != nil {
		return CrawlResult{}, err
	}
	rootURL, err := NormalizeURL(root.String())
	if err != nil {
		return CrawlResult{}, fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}
	if params.MaxDepth < 0 {
		params.MaxDepth = 0
	}
	if params.MaxPages <= 0 {
		params.MaxPages = DefaultMaxPages
	}

	state := newCrawlState(rootURL)
	e.logger.Info("crawl started",
		zap.String("root", rootURL),
		zap.Int("max_depth", params.MaxDepth),
		zap.Int("max_pages", params.MaxPages))

	for len(state.Queue) > 0 && state.Result.PagesVisited < params.MaxPages {
		if err := ctx.Err(); err != nil {
			return state.snapshot(), fmt.Errorf("crawl interrupted: %w", err)
		}
		task := state.pop()
		if state.seen(task.URL) {
			continue
		}
		state.markVisited(task.URL)
		state.Result.PagesVisited++

		if err := e.visit(ctx, state, root, task, params); err != nil {
			return state.snapshot(), err
		}
	}

	res := state.snapshot()
	e.logger.Info("crawl finished",
		zap.String("root", rootURL),
		zap.Int("pages_visited", res.PagesVisited),
		zap.Int("pages_failed", res.PagesFailed),
		zap.Int("documents", res.DocumentsSeen),
		zap.Int("records_inserted", res.RecordsInserted))
	return res, nil
}

// visit fetches one page and routes its links. It returns an error only
// when ctx is done.
func (e *Engine) visit(ctx context.Context, state *CrawlState, root *url.URL, task CrawlTask, params CrawlParams) error {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx, task.URL); err != nil {
			return fmt.Errorf("crawl interrupted: %w", err)
		}
	}

	resp, err := e.fetcher.Fetch(ctx, FetchRequest{
		URL:         task.URL,
		Kind:        KindPage,
		Timeout:     e.cfg.PageTimeout,
		AllowedHost: root.Hostname(),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("crawl interrupted: %w", ctxErr)
		}
		state.Result.PagesFailed++
		metrics.ObservePage(task.URL, "error", 0)
		e.logger.Warn("page fetch failed",
			zap.Int("depth", task.Depth),
			zap.Error(&FetchError{URL: task.URL, Err: err}))
		return nil
	}
	base := task.URL
	if resp.URL != "" {
		base = resp.URL
	}
	if !sameHostString(base, root) {
		state.Result.PagesFailed++
		metrics.ObservePage(task.URL, "offsite", 0)
		e.logger.Warn("page left the root host, ignoring",
			zap.String("url", task.URL),
			zap.String("final_url", base))
		return nil
	}
	metrics.ObservePage(task.URL, "ok", len(resp.Body))

	links, err := ExtractLinks(resp.Body, base)
	if err != nil {
		e.logger.Warn("link extraction failed", zap.String("url", task.URL), zap.Error(err))
		return nil
	}
	e.logger.Debug("page visited",
		zap.String("url", task.URL),
		zap.Int("depth", task.Depth),
		zap.Int("links", len(links)))

	for _, link := range links {
		normalized, err := NormalizeURL(link)
		if err != nil {
			continue
		}
		switch {
		case IsDocument(normalized):
			if state.seen(normalized) {
				continue
			}
			state.markVisited(normalized)
			if err := e.handleDocument(ctx, state, normalized, params); err != nil {
				return err
			}
		case task.Depth+1 <= params.MaxDepth && sameHostString(normalized, root) && !state.seen(normalized):
			state.push(CrawlTask{URL: normalized, Depth: task.Depth + 1})
		}
	}
	return nil
}

func (e *Engine) handleDocument(ctx context.Context, state *CrawlState, docURL string, params CrawlParams) error {
	state.Result.DocumentsSeen++
	out, err := e.documents.HandleDocument(ctx, docURL, params)
	state.Result.RecordsInserted += out.Inserted
	state.Result.RecordsFailed += out.Failed
	state.Result.QuestionsSegmented += out.Questions
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("crawl interrupted: %w", ctxErr)
		}
		state.Result.DocumentsFailed++
		e.logger.Warn("document skipped", zap.String("url", docURL), zap.Error(err))
		return nil
	}
	if out.Discarded {
		state.Result.DocumentsDiscarded++
		return nil
	}
	state.Result.DocumentsProcessed++
	return nil
}
