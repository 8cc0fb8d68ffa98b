package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/classifieds-cli/internal/analysis"
	"github.com/sells-group/classifieds-cli/internal/fetcher"
	"github.com/sells-group/classifieds-cli/internal/scrape"
	"github.com/sells-group/classifieds-cli/internal/store"
)

const (
	testListingURL = "https://www.kleinanzeigen.de/s-anzeige/akkuschrauber/2954271234-84-3331"
	testAdID       = "2954271234"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// fixtureTransport serves the detail fixture for testListingURL and 404 for
// everything else.
func fixtureTransport(t *testing.T) http.RoundTripper {
	t.Helper()
	page, err := os.ReadFile(filepath.Join("..", "internal", "scrape", "testdata", "detail.html"))
	require.NoError(t, err)

	return roundTripFunc(func(r *http.Request) (*http.Response, error) {
		status, body := http.StatusNotFound, ""
		if r.URL.String() == testListingURL {
			status, body = http.StatusOK, string(page)
		}
		return &http.Response{
			StatusCode: status,
			Header:     http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    r,
		}, nil
	})
}

// newTestEnv builds a serve-mode environment over a file store, the
// fixture transport, and the mock backend.
func newTestEnv(t *testing.T) *pipelineEnv {
	t.Helper()
	ctx := context.Background()

	st := store.NewFile(t.TempDir())
	require.NoError(t, st.Migrate(ctx))

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Transport: fixtureTransport(t)})
	engine := analysis.NewEngine(analysis.NewMockBackend(), 0)

	env := &pipelineEnv{
		Store:   st,
		Scraper: scrape.New(f, st, scrape.DefaultSelectors()),
		Service: analysis.NewService(st, engine, store.NewKeyLock()),
	}
	t.Cleanup(env.Close)
	return env
}
