// Package app builds the long-lived services behind the CLI commands and
// the admin server from one Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pyq-crawler/internal/api"
	"github.com/JakeFAU/pyq-crawler/internal/cleanup"
	"github.com/JakeFAU/pyq-crawler/internal/clock/system"
	"github.com/JakeFAU/pyq-crawler/internal/config"
	"github.com/JakeFAU/pyq-crawler/internal/crawler"
	"github.com/JakeFAU/pyq-crawler/internal/dedup"
	"github.com/JakeFAU/pyq-crawler/internal/enrich"
	"github.com/JakeFAU/pyq-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/pyq-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/pyq-crawler/internal/hash/sha256"
	"github.com/JakeFAU/pyq-crawler/internal/id/uuid"
	"github.com/JakeFAU/pyq-crawler/internal/logging"
	"github.com/JakeFAU/pyq-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/pyq-crawler/internal/question"
	"github.com/JakeFAU/pyq-crawler/internal/ratelimit"
	"github.com/JakeFAU/pyq-crawler/internal/runs"
	gcsstorage "github.com/JakeFAU/pyq-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/pyq-crawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/pyq-crawler/internal/storage/memory"
	mongostorage "github.com/JakeFAU/pyq-crawler/internal/storage/mongo"
	pgstore "github.com/JakeFAU/pyq-crawler/internal/storage/postgres"
)

const shutdownTimeout = 10 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

// App holds the shared services for one process.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	clock     *system.Clock
	ids       *uuid.Generator
	store     question.Store
	archive   crawler.BlobStore
	allowlist *enrich.Allowlist
	recorder  *runs.Recorder
	closers   []func(context.Context) error
}

// New connects the corpus store and the optional archive, ledger and
// notification sinks. An unreachable corpus store is fatal.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		cfg:       cfg,
		logger:    logging.OrNop(logger),
		clock:     system.New(),
		ids:       uuid.New(),
		allowlist: enrich.NewAllowlist(enrich.ExtendDefaults(enrich.ParseAuthorities(cfg.Enrich.OfficialDomains))),
	}

	if err := a.setupStore(ctx); err != nil {
		a.closeQuietly()
		return nil, err
	}
	if err := a.setupArchive(ctx); err != nil {
		a.closeQuietly()
		return nil, err
	}
	if err := a.setupRuns(ctx); err != nil {
		a.closeQuietly()
		return nil, err
	}
	return a, nil
}

func (a *App) setupStore(ctx context.Context) error {
	switch a.cfg.Store.Provider {
	case config.ProviderMemory:
		a.logger.Warn("using in-memory corpus store; records are lost on exit")
		a.store = memorystorage.NewRecordStore()
	default:
		store, err := mongostorage.Connect(ctx, a.cfg.Store.Mongo)
		if err != nil {
			return fmt.Errorf("corpus store init failed: %w", err)
		}
		a.store = store
		a.logger.Info("connected to mongodb",
			zap.String("database", a.cfg.Store.Mongo.Database),
			zap.String("collection", a.cfg.Store.Mongo.Collection))
	}
	a.closers = append(a.closers, a.store.Close)
	if err := a.store.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	return nil
}

func (a *App) setupArchive(ctx context.Context) error {
	switch a.cfg.Archive.Provider {
	case config.ProviderMemory:
		a.archive = memorystorage.NewBlobStore()
		a.logger.Warn("archiving documents in memory; they are lost on exit")
	case config.ProviderLocal:
		store, err := localstorage.New(a.cfg.Archive.Local)
		if err != nil {
			return fmt.Errorf("local archive init failed: %w", err)
		}
		a.archive = store
		a.logger.Info("archiving documents locally", zap.String("path", a.cfg.Archive.Local.BaseDir))
	case config.ProviderGCS:
		store, err := gcsstorage.Dial(ctx, a.cfg.Archive.GCS)
		if err != nil {
			return fmt.Errorf("gcs archive init failed: %w", err)
		}
		a.archive = store
		a.closers = append(a.closers, func(context.Context) error { return store.Close() })
		a.logger.Info("archiving documents to gcs", zap.String("bucket", a.cfg.Archive.GCS.Bucket))
	default:
		a.logger.Debug("document archive disabled")
	}
	return nil
}

func (a *App) setupRuns(ctx context.Context) error {
	opts := runs.Options{Clock: a.clock, IDs: a.ids, Topic: a.cfg.Notify.Topic}

	if a.cfg.Runs.DSN != "" {
		store, err := pgstore.NewRunStore(ctx, a.cfg.Runs)
		if err != nil {
			return fmt.Errorf("run ledger init failed: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { store.Close(); return nil })
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		opts.Store = store
		a.logger.Info("run ledger enabled", zap.String("table", a.cfg.Runs.Table))
	} else {
		a.logger.Debug("no runs.dsn configured, run ledger disabled")
	}

	if a.cfg.Notify.ProjectID != "" && a.cfg.Notify.Topic != "" {
		pub, err := pubsub.Dial(ctx, a.cfg.Notify)
		if err != nil {
			return fmt.Errorf("pubsub init failed: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return pub.Close() })
		opts.Publisher = pub
		a.logger.Info("run notifications enabled", zap.String("topic", a.cfg.Notify.Topic))
	}

	a.recorder = runs.NewRecorder(opts, a.logger)
	return nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Store returns the corpus store.
func (a *App) Store() question.Store {
	return a.store
}

// Recorder returns the run recorder.
func (a *App) Recorder() *runs.Recorder {
	return a.recorder
}

// CrawlEngine assembles the fetcher, limiter, extraction tiers and ingester.
func (a *App) CrawlEngine(ctx context.Context) (*crawler.Engine, error) {
	crawlCfg := a.cfg.Crawl
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     crawlCfg.UserAgent,
		RespectRobots: crawlCfg.RespectRobots,
		Timeout:       crawlCfg.PageTimeout,
		MaxBodySize:   crawlCfg.MaxDocumentBytes,
	})
	limiter := ratelimit.New(ratelimit.Config{RPS: crawlCfg.RatePerSecond, Burst: crawlCfg.RateBurst})

	fallbacks, err := a.ocrServices(ctx)
	if err != nil {
		return nil, err
	}
	pipeline := extract.NewPipeline(
		&extract.NativePDF{MaxPages: a.cfg.Extract.MaxPDFPages},
		fallbacks,
		extract.Options{
			MinChars:    a.cfg.Extract.MinNativeChars,
			MaxOCRBytes: a.cfg.Extract.MaxOCRBytes,
			OCRTimeout:  a.cfg.Extract.OCRTimeout,
		},
		a.logger,
	)

	deps := crawler.IngesterDeps{
		Fetcher:   fetcher,
		Extractor: pipeline,
		Store:     a.store,
		Enricher:  enrich.New(a.allowlist, a.cfg.Enrich.MixedLangRatio),
		IDs:       a.ids,
		Clock:     a.clock,
	}
	if a.archive != nil {
		deps.Archive = a.archive
		deps.Hasher = sha256.New()
	}
	ingester, err := crawler.NewDocumentIngester(deps, crawler.IngestConfig{
		DocumentTimeout:  crawlCfg.DocumentTimeout,
		MaxDocumentBytes: crawlCfg.MaxDocumentBytes,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init ingester: %w", err)
	}

	engine, err := crawler.NewEngine(fetcher, ingester, limiter, crawler.EngineConfig{PageTimeout: crawlCfg.PageTimeout}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init crawl engine: %w", err)
	}
	return engine, nil
}

// ocrServices builds the configured fallback tiers in order. A service
// without credentials is skipped with a warning.
func (a *App) ocrServices(ctx context.Context) ([]extract.Extractor, error) {
	var out []extract.Extractor
	for _, name := range a.cfg.Extract.Services {
		switch name {
		case config.ServiceMistral:
			if a.cfg.Mistral.APIKey == "" {
				a.logger.Warn("mistral.api_key not set, skipping OCR tier", zap.String("service", name))
				continue
			}
			svc, err := extract.NewMistralOCR(extract.MistralConfig{
				APIKey:  a.cfg.Mistral.APIKey,
				BaseURL: a.cfg.Mistral.BaseURL,
				Model:   a.cfg.Mistral.Model,
			}, &http.Client{}, a.logger)
			if err != nil {
				return nil, fmt.Errorf("init mistral: %w", err)
			}
			out = append(out, svc)
		case config.ServiceGemini:
			if a.cfg.Gemini.APIKey == "" {
				a.logger.Warn("gemini.api_key not set, skipping OCR tier", zap.String("service", name))
				continue
			}
			svc, err := extract.NewGeminiVision(ctx, extract.GeminiConfig{
				APIKey:        a.cfg.Gemini.APIKey,
				Model:         a.cfg.Gemini.Model,
				FallbackModel: a.cfg.Gemini.FallbackModel,
			}, a.logger)
			if err != nil {
				return nil, fmt.Errorf("init gemini: %w", err)
			}
			out = append(out, svc)
		default:
			return nil, fmt.Errorf("unknown OCR service %q", name)
		}
	}
	return out, nil
}

// CrawlParams builds crawl parameters from the configured defaults.
func (a *App) CrawlParams(root string) crawler.CrawlParams {
	c := a.cfg.Crawl
	return crawler.CrawlParams{
		RootURL:      root,
		MaxDepth:     c.MaxDepth,
		MaxPages:     c.MaxPages,
		Exam:         c.Exam,
		Level:        c.Level,
		Paper:        c.Paper,
		Theme:        c.Theme,
		YearFallback: c.YearFallbackPtr(),
		Lang:         c.Lang,
	}
}

// DedupJob returns a dedup job over the corpus store.
func (a *App) DedupJob() (*dedup.Job, error) {
	return dedup.NewJob(a.store, a.allowlist, a.logger)
}

// CleanupJob returns a cleanup job over the corpus store.
func (a *App) CleanupJob() (*cleanup.Job, error) {
	normalizer := cleanup.NewNormalizer(a.allowlist, a.cfg.Enrich.AllowedLangs, a.cfg.Enrich.MixedLangRatio)
	return cleanup.NewJob(a.store, normalizer, a.clock, a.logger)
}

// CleanupOptions returns the configured cleanup defaults.
func (a *App) CleanupOptions() cleanup.Options {
	c := a.cfg.Cleanup
	return cleanup.Options{
		DryRun:          c.DryRun,
		Aggressive:      c.Aggressive,
		BatchSize:       c.BatchSize,
		DuplicatePrefix: c.DuplicatePrefix,
	}
}

// APIServer wires the admin routes to the batch jobs.
func (a *App) APIServer() (*api.Server, error) {
	dedupJob, err := a.DedupJob()
	if err != nil {
		return nil, err
	}
	cleanupJob, err := a.CleanupJob()
	if err != nil {
		return nil, err
	}
	deps := api.Deps{Dedup: dedupJob, Cleanup: cleanupJob, Recorder: a.recorder}
	if p, ok := a.store.(pinger); ok {
		deps.Ready = p.Ping
	}
	return api.NewServer(deps, api.Config{
		AdminKey:    a.cfg.Server.AdminKey,
		Cleanup:     a.CleanupOptions(),
		DedupPrefix: a.cfg.Cleanup.DedupPrefix,
	}, a.logger), nil
}

// Serve runs the admin server until ctx is cancelled or a termination
// signal arrives, then drains in-flight requests.
func (a *App) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := a.APIServer()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// Close releases every connection in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) closeQuietly() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		a.logger.Warn("close after failed init", zap.Error(err))
	}
}
