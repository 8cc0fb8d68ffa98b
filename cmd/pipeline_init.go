package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/classifieds-cli/internal/analysis"
	"github.com/sells-group/classifieds-cli/internal/config"
	"github.com/sells-group/classifieds-cli/internal/fetcher"
	"github.com/sells-group/classifieds-cli/internal/scrape"
	"github.com/sells-group/classifieds-cli/internal/store"
)

// Command modes, matching config.Validate.
const (
	modeScrape  = "scrape"
	modeAnalyze = "analyze"
	modeServe   = "serve"
)

// pipelineEnv holds the store and the scrape and analysis pipelines needed
// by the scrape/analyze/ask/serve commands.
type pipelineEnv struct {
	Store   store.Store
	Scraper *scrape.Scraper   // nil unless the mode scrapes
	Service *analysis.Service // nil unless the mode analyzes
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates cfg for mode, opens the store, and builds the
// pipelines the mode needs. Callers should defer env.Close().
func initPipeline(ctx context.Context, c *config.Config, mode string) (*pipelineEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	st, err := store.NewFromConfig(ctx, c.Store)
	if err != nil {
		return nil, err
	}
	env := &pipelineEnv{Store: st}

	if mode == modeScrape || mode == modeServe {
		sc, err := newScraper(c, st)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Scraper = sc
	}

	if mode == modeAnalyze || mode == modeServe {
		backend, err := analysis.NewBackend(c)
		if err != nil {
			env.Close()
			return nil, err
		}
		engine := analysis.NewEngine(backend, c.Analysis.MaxImages)
		env.Service = analysis.NewService(st, engine, store.NewKeyLock())
	}

	return env, nil
}

// newScraper wires the HTTP fetcher and selectors from config.
func newScraper(c *config.Config, st store.Store) (*scrape.Scraper, error) {
	sel, err := scrape.LoadSelectors(c.Selectors.Path)
	if err != nil {
		return nil, eris.Wrap(err, "load selectors")
	}
	if c.Fetch.BaseURL != "" {
		sel.BaseURL = c.Fetch.BaseURL
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:         c.Fetch.UserAgent,
		AcceptLanguage:    c.Fetch.AcceptLanguage,
		Charset:           c.Fetch.Charset,
		Timeout:           time.Duration(c.Fetch.TimeoutSecs) * time.Second,
		RequestsPerSecond: c.Fetch.RequestsPerSecond,
	})
	return scrape.New(f, st, sel), nil
}

// openStore opens the configured store without building any pipeline.
func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	return store.NewFromConfig(ctx, c.Store)
}
