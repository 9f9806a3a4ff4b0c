// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/pyq-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/pyq-crawler/internal/storage/gcs"
	"github.com/JakeFAU/pyq-crawler/internal/storage/local"
	"github.com/JakeFAU/pyq-crawler/internal/storage/mongo"
	"github.com/JakeFAU/pyq-crawler/internal/storage/postgres"
)

// EnvPrefix prefixes every environment override, e.g. PYQ_MONGO_URI.
const EnvPrefix = "PYQ"

// Known providers and OCR services.
const (
	ProviderMemory = "memory"
	ProviderMongo  = "mongo"
	ProviderNone   = "none"
	ProviderLocal  = "local"
	ProviderGCS    = "gcs"
	ServiceMistral = "mistral"
	ServiceGemini  = "gemini"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Crawl   CrawlConfig     `mapstructure:"crawl"`
	Extract ExtractConfig   `mapstructure:"extract"`
	Mistral MistralConfig   `mapstructure:"mistral"`
	Gemini  GeminiConfig    `mapstructure:"gemini"`
	Store   StoreConfig     `mapstructure:"store"`
	Archive ArchiveConfig   `mapstructure:"archive"`
	Runs    postgres.Config `mapstructure:"runs"`
	Notify  pubsub.Config   `mapstructure:"notify"`
	Enrich  EnrichConfig    `mapstructure:"enrich"`
	Cleanup CleanupConfig   `mapstructure:"cleanup"`
	Server  ServerConfig    `mapstructure:"server"`
	Logging LoggingConfig   `mapstructure:"logging"`
}

// CrawlConfig governs the frontier, fetcher and record defaults.
type CrawlConfig struct {
	Exam             string        `mapstructure:"exam"`
	Level            string        `mapstructure:"level"`
	Paper            string        `mapstructure:"paper"`
	Theme            string        `mapstructure:"theme"`
	YearFallback     int           `mapstructure:"year_fallback"`
	MaxDepth         int           `mapstructure:"max_depth"`
	MaxPages         int           `mapstructure:"max_pages"`
	UserAgent        string        `mapstructure:"user_agent"`
	RespectRobots    bool          `mapstructure:"respect_robots"`
	PageTimeout      time.Duration `mapstructure:"page_timeout"`
	DocumentTimeout  time.Duration `mapstructure:"document_timeout"`
	RatePerSecond    float64       `mapstructure:"rate_per_second"`
	RateBurst        int           `mapstructure:"rate_burst"`
	Lang             string        `mapstructure:"lang"`
	MaxDocumentBytes int64         `mapstructure:"max_document_bytes"`
}

// YearFallbackPtr returns the fallback year, or nil when unset.
func (c CrawlConfig) YearFallbackPtr() *int {
	if c.YearFallback <= 0 {
		return nil
	}
	y := c.YearFallback
	return &y
}

// ExtractConfig controls the native/OCR extraction tiers.
type ExtractConfig struct {
	MinNativeChars int           `mapstructure:"min_native_chars"`
	MaxOCRBytes    int64         `mapstructure:"max_ocr_bytes"`
	OCRTimeout     time.Duration `mapstructure:"ocr_timeout"`
	MaxPDFPages    int           `mapstructure:"max_pdf_pages"`
	Services       []string      `mapstructure:"services"`
}

// MistralConfig holds credentials for the upload-then-OCR service.
type MistralConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// GeminiConfig holds credentials for the inline multimodal service.
type GeminiConfig struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	FallbackModel string `mapstructure:"fallback_model"`
}

// StoreConfig selects the corpus store.
type StoreConfig struct {
	Provider string       `mapstructure:"provider"`
	Mongo    mongo.Config `mapstructure:"mongo"`
}

// ArchiveConfig selects where raw documents are kept.
type ArchiveConfig struct {
	Provider string       `mapstructure:"provider"`
	Local    local.Config `mapstructure:"local"`
	GCS      gcs.Config   `mapstructure:"gcs"`
}

// EnrichConfig tunes provenance and language heuristics.
type EnrichConfig struct {
	OfficialDomains []string `mapstructure:"official_domains"`
	MixedLangRatio  float64  `mapstructure:"mixed_lang_ratio"`
	AllowedLangs    []string `mapstructure:"allowed_langs"`
}

// CleanupConfig holds batch job defaults.
type CleanupConfig struct {
	BatchSize       int  `mapstructure:"batch_size"`
	DryRun          bool `mapstructure:"dry_run"`
	Aggressive      bool `mapstructure:"aggressive"`
	DuplicatePrefix int  `mapstructure:"duplicate_prefix"`
	DedupPrefix     int  `mapstructure:"dedup_prefix"`
}

// ServerConfig controls the admin HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	AdminKey string `mapstructure:"admin_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// NewViper returns a Viper instance with defaults and environment binding,
// ready for command flags to be bound into it.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load builds a Config from defaults, an optional file and the environment.
func Load(path string) (Config, error) {
	return FromViper(NewViper(), path)
}

// FromViper reads path (when set) into v, then unmarshals and validates.
func FromViper(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Extract.Services = normalizeServices(cfg.Extract.Services)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Keys without a meaningful default are still registered so that
	// environment overrides reach Unmarshal.
	for _, key := range []string{
		"crawl.level", "crawl.paper", "crawl.theme",
		"mistral.api_key", "gemini.api_key",
		"store.mongo.uri", "archive.gcs.bucket", "archive.gcs.prefix",
		"runs.dsn", "notify.project_id", "notify.topic", "server.admin_key",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("crawl.year_fallback", 0)
	v.SetDefault("enrich.official_domains", []string{})
	v.SetDefault("enrich.allowed_langs", []string{})

	v.SetDefault("crawl.exam", "UPSC")
	v.SetDefault("crawl.max_depth", 2)
	v.SetDefault("crawl.max_pages", 60)
	v.SetDefault("crawl.user_agent", "pyq-crawler/1.0 (+https://github.com/JakeFAU/pyq-crawler)")
	v.SetDefault("crawl.respect_robots", true)
	v.SetDefault("crawl.page_timeout", "30s")
	v.SetDefault("crawl.document_timeout", "30s")
	v.SetDefault("crawl.rate_per_second", 2.0)
	v.SetDefault("crawl.rate_burst", 1)
	v.SetDefault("crawl.lang", "en")
	v.SetDefault("crawl.max_document_bytes", 200<<20)

	v.SetDefault("extract.min_native_chars", 100)
	v.SetDefault("extract.max_ocr_bytes", 50<<20)
	v.SetDefault("extract.ocr_timeout", "120s")
	v.SetDefault("extract.max_pdf_pages", 0)
	v.SetDefault("extract.services", []string{ServiceMistral, ServiceGemini})

	v.SetDefault("mistral.base_url", "https://api.mistral.ai")
	v.SetDefault("mistral.model", "mistral-ocr-latest")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.fallback_model", "gemini-1.5-flash")

	v.SetDefault("store.provider", ProviderMongo)
	v.SetDefault("store.mongo.database", mongo.DefaultDatabase)
	v.SetDefault("store.mongo.collection", mongo.DefaultCollection)

	v.SetDefault("archive.provider", ProviderNone)
	v.SetDefault("archive.local.base_dir", "data/archive")

	v.SetDefault("runs.table", postgres.DefaultTable)

	v.SetDefault("enrich.mixed_lang_ratio", 1.5)

	v.SetDefault("cleanup.batch_size", 100)
	v.SetDefault("cleanup.dry_run", true)
	v.SetDefault("cleanup.aggressive", false)
	v.SetDefault("cleanup.duplicate_prefix", 300)
	v.SetDefault("cleanup.dedup_prefix", 200)

	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if c.Crawl.MaxDepth < 0 {
		errs = append(errs, errors.New("crawl.max_depth must be >= 0"))
	}
	if c.Crawl.MaxPages <= 0 {
		errs = append(errs, errors.New("crawl.max_pages must be > 0"))
	}
	if c.Crawl.PageTimeout <= 0 || c.Crawl.DocumentTimeout <= 0 {
		errs = append(errs, errors.New("crawl timeouts must be > 0"))
	}
	if c.Extract.OCRTimeout <= 0 {
		errs = append(errs, errors.New("extract.ocr_timeout must be > 0"))
	}
	for _, s := range c.Extract.Services {
		if s != ServiceMistral && s != ServiceGemini {
			errs = append(errs, fmt.Errorf("extract.services: unknown service %q", s))
		}
	}
	switch c.Store.Provider {
	case ProviderMemory:
	case ProviderMongo:
		if c.Store.Mongo.URI == "" {
			errs = append(errs, errors.New("store.mongo.uri is required for the mongo provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.provider: unknown provider %q", c.Store.Provider))
	}
	switch c.Archive.Provider {
	case ProviderNone, ProviderMemory, "":
	case ProviderLocal:
		if c.Archive.Local.BaseDir == "" {
			errs = append(errs, errors.New("archive.local.base_dir is required"))
		}
	case ProviderGCS:
		if c.Archive.GCS.Bucket == "" {
			errs = append(errs, errors.New("archive.gcs.bucket is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("archive.provider: unknown provider %q", c.Archive.Provider))
	}
	if c.Enrich.MixedLangRatio < 1 {
		errs = append(errs, errors.New("enrich.mixed_lang_ratio must be >= 1"))
	}
	if c.Cleanup.BatchSize <= 0 {
		errs = append(errs, errors.New("cleanup.batch_size must be > 0"))
	}
	if c.Server.Port <= 0 {
		errs = append(errs, errors.New("server.port must be > 0"))
	}
	return errors.Join(errs...)
}

func normalizeServices(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || slices.Contains(out, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}
