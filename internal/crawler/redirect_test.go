package crawler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pyq-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/pyq-crawler/internal/fetcher/colly"
)

type noDocuments struct{}

func (noDocuments) HandleDocument(context.Context, string, crawler.CrawlParams) (crawler.DocumentOutcome, error) {
	return crawler.DocumentOutcome{}, nil
}

func TestCrawlNeverFetchesOffHostRedirectTargets(t *testing.T) {
	t.Parallel()

	var offsiteHits atomic.Int32
	offsite := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		offsiteHits.Add(1)
		_, _ = w.Write([]byte(`<a href="/more">more</a>`))
	}))
	t.Cleanup(offsite.Close)
	offsiteURL := strings.Replace(offsite.URL, "127.0.0.1", "localhost", 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<a href="/go">go</a><a href="/papers">papers</a>`))
	})
	mux.HandleFunc("/go", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, offsiteURL+"/elsewhere", http.StatusFound)
	})
	mux.HandleFunc("/papers", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<p>no papers yet</p>`))
	})
	site := httptest.NewServer(mux)
	t.Cleanup(site.Close)

	fetcher := collyfetcher.New(collyfetcher.Config{Timeout: 5 * time.Second})
	engine, err := crawler.NewEngine(fetcher, noDocuments{}, nil, crawler.EngineConfig{}, nil)
	require.NoError(t, err)

	res, err := engine.Crawl(context.Background(), crawler.CrawlParams{RootURL: site.URL + "/", MaxDepth: 2, MaxPages: 10})
	require.NoError(t, err)
	require.Zero(t, offsiteHits.Load())
	require.Equal(t, 3, res.PagesVisited)
	require.Equal(t, 1, res.PagesFailed)
	for _, u := range res.Visited {
		require.True(t, strings.HasPrefix(u, site.URL), "visited %s", u)
	}
}
