package extract

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pyq-crawler/internal/logging"
	"github.com/JakeFAU/pyq-crawler/internal/metrics"
)

// Pipeline defaults.
const (
	DefaultMinChars    = 100
	DefaultMaxOCRBytes = 50 << 20
	DefaultOCRTimeout  = 120 * time.Second
)

// Options tunes the thresholds of a Pipeline. Zero values take the defaults.
type Options struct {
	MinChars    int
	MaxOCRBytes int64
	OCRTimeout  time.Duration
}

// Pipeline runs native extraction and, when needed, the OCR fallbacks in
// order. Fallbacks are never run concurrently.
type Pipeline struct {
	native    Extractor
	fallbacks []Extractor
	opts      Options
	logger    *zap.Logger
}

// NewPipeline wires the native extractor and the ordered fallback chain.
func NewPipeline(native Extractor, fallbacks []Extractor, opts Options, logger *zap.Logger) *Pipeline {
	if opts.MinChars <= 0 {
		opts.MinChars = DefaultMinChars
	}
	if opts.MaxOCRBytes <= 0 {
		opts.MaxOCRBytes = DefaultMaxOCRBytes
	}
	if opts.OCRTimeout <= 0 {
		opts.OCRTimeout = DefaultOCRTimeout
	}
	return &Pipeline{
		native:    native,
		fallbacks: fallbacks,
		opts:      opts,
		logger:    logging.OrNop(logger).Named("extract"),
	}
}

// Extract returns the first result with more than MinChars characters. It
// never returns an error for tier failures: exhaustion yields an empty
// Result, and only a cancelled ctx is reported.
func (p *Pipeline) Extract(ctx context.Context, doc Document) (Result, error) {
	native := p.runNative(ctx, doc)
	if native.CharCount > p.opts.MinChars {
		metrics.ObserveDocument(string(MethodNative))
		return native, nil
	}

	if size := doc.Size(); size > p.opts.MaxOCRBytes {
		p.logger.Info("document too large for ocr, keeping native output",
			zap.String("url", doc.URL),
			zap.Int64("bytes", size),
			zap.Int("chars", native.CharCount))
		if native.Empty() {
			metrics.ObserveDocument("")
			return Result{}, nil
		}
		metrics.ObserveDocument(string(MethodNative))
		return native, nil
	}

	for _, fb := range p.fallbacks {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		res, err := p.runFallback(ctx, fb, doc)
		if err != nil {
			if !errors.Is(err, ErrInsufficientText) {
				p.logger.Warn("ocr tier failed",
					zap.String("service", fb.Name()),
					zap.String("url", doc.URL),
					zap.Error(err))
			}
			continue
		}
		metrics.ObserveDocument(string(res.Method))
		return res, nil
	}

	p.logger.Info("no tier produced enough text, discarding document",
		zap.String("url", doc.URL),
		zap.Int("native_chars", native.CharCount),
		zap.Int("fallbacks", len(p.fallbacks)))
	metrics.ObserveDocument("")
	return Result{}, nil
}

func (p *Pipeline) runNative(ctx context.Context, doc Document) Result {
	if p.native == nil {
		return Result{}
	}
	res, err := p.native.Extract(ctx, doc)
	if err != nil {
		p.logger.Debug("native extraction failed",
			zap.String("url", doc.URL),
			zap.Error(err))
		return Result{}
	}
	return res
}

func (p *Pipeline) runFallback(ctx context.Context, fb Extractor, doc Document) (Result, error) {
	tierCtx, cancel := context.WithTimeout(ctx, p.opts.OCRTimeout)
	defer cancel()

	res, err := fb.Extract(tierCtx, doc)
	switch {
	case err != nil:
		metrics.ObserveOCRAttempt(fb.Name(), metrics.OutcomeError)
		return Result{}, &OCRBackendError{Service: fb.Name(), Err: err}
	case res.CharCount <= p.opts.MinChars:
		metrics.ObserveOCRAttempt(fb.Name(), metrics.OutcomeInsufficient)
		p.logger.Debug("ocr tier returned too little text",
			zap.String("service", fb.Name()),
			zap.String("url", doc.URL),
			zap.Int("chars", res.CharCount))
		return Result{}, &OCRBackendError{Service: fb.Name(), Err: ErrInsufficientText}
	default:
		metrics.ObserveOCRAttempt(fb.Name(), metrics.OutcomeSuccess)
		return res, nil
	}
}
