package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
crawl:
  exam: SSC
  max_depth: 3
  max_pages: 120
  page_timeout: 10s
  year_fallback: 2019
extract:
  services: [" Gemini ", "mistral", "gemini"]
  ocr_timeout: 45s
store:
  provider: mongo
  mongo:
    uri: mongodb://localhost:27017
    database: corpus
archive:
  provider: gcs
  gcs:
    bucket: pyq-archive
    prefix: raw
runs:
  dsn: postgres://localhost/pyq
enrich:
  official_domains: ["upsc.gov.in=UPSC", "example.org"]
cleanup:
  dry_run: false
server:
  port: 9090
  admin_key: secret
logging:
  development: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "SSC", cfg.Crawl.Exam)
	require.Equal(t, 3, cfg.Crawl.MaxDepth)
	require.Equal(t, 120, cfg.Crawl.MaxPages)
	require.Equal(t, 10*time.Second, cfg.Crawl.PageTimeout)
	require.Equal(t, 2019, *cfg.Crawl.YearFallbackPtr())
	require.Equal(t, []string{"gemini", "mistral"}, cfg.Extract.Services)
	require.Equal(t, 45*time.Second, cfg.Extract.OCRTimeout)
	require.Equal(t, "corpus", cfg.Store.Mongo.Database)
	require.Equal(t, "questions", cfg.Store.Mongo.Collection)
	require.Equal(t, "pyq-archive", cfg.Archive.GCS.Bucket)
	require.Equal(t, "postgres://localhost/pyq", cfg.Runs.DSN)
	require.Equal(t, "ingest_runs", cfg.Runs.Table)
	require.Len(t, cfg.Enrich.OfficialDomains, 2)
	require.False(t, cfg.Cleanup.DryRun)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "secret", cfg.Server.AdminKey)
	require.False(t, cfg.Logging.Development)
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "store:\n  provider: memory\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "UPSC", cfg.Crawl.Exam)
	require.Equal(t, 2, cfg.Crawl.MaxDepth)
	require.Equal(t, 60, cfg.Crawl.MaxPages)
	require.True(t, cfg.Crawl.RespectRobots)
	require.Equal(t, 30*time.Second, cfg.Crawl.DocumentTimeout)
	require.Equal(t, int64(200<<20), cfg.Crawl.MaxDocumentBytes)
	require.Nil(t, cfg.Crawl.YearFallbackPtr())
	require.Equal(t, 100, cfg.Extract.MinNativeChars)
	require.Equal(t, int64(50<<20), cfg.Extract.MaxOCRBytes)
	require.Equal(t, 120*time.Second, cfg.Extract.OCRTimeout)
	require.Equal(t, []string{ServiceMistral, ServiceGemini}, cfg.Extract.Services)
	require.Equal(t, "mistral-ocr-latest", cfg.Mistral.Model)
	require.Equal(t, "gemini-1.5-flash", cfg.Gemini.FallbackModel)
	require.Equal(t, ProviderNone, cfg.Archive.Provider)
	require.InDelta(t, 1.5, cfg.Enrich.MixedLangRatio, 1e-9)
	require.True(t, cfg.Cleanup.DryRun)
	require.Equal(t, 100, cfg.Cleanup.BatchSize)
	require.Equal(t, 300, cfg.Cleanup.DuplicatePrefix)
	require.Equal(t, 200, cfg.Cleanup.DedupPrefix)
	require.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PYQ_STORE_PROVIDER", "memory")
	t.Setenv("PYQ_CRAWL_MAX_PAGES", "15")
	t.Setenv("PYQ_SERVER_ADMIN_KEY", "from-env")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 15, cfg.Crawl.MaxPages)
	require.Equal(t, "from-env", cfg.Server.AdminKey)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "mongo without uri", body: "store:\n  provider: mongo\n", want: "store.mongo.uri"},
		{name: "unknown store", body: "store:\n  provider: redis\n", want: "store.provider"},
		{name: "unknown ocr service", body: "store:\n  provider: memory\nextract:\n  services: [tesseract]\n", want: "tesseract"},
		{name: "gcs without bucket", body: "store:\n  provider: memory\narchive:\n  provider: gcs\n", want: "archive.gcs.bucket"},
		{name: "bad ratio", body: "store:\n  provider: memory\nenrich:\n  mixed_lang_ratio: 0.5\n", want: "mixed_lang_ratio"},
		{name: "zero pages", body: "store:\n  provider: memory\ncrawl:\n  max_pages: 0\n", want: "crawl.max_pages"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, tt.body))
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
