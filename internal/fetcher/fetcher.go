// Package fetcher performs the single-shot HTTP GETs the scraper depends on:
// listing and profile pages (decoded with a forced charset) and raw image
// bytes. It never retries.
package fetcher

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/classifieds-cli/internal/dom"
)

// Fetcher defines the page and byte transfer operations used by the scraper.
type Fetcher interface {
	// Fetch retrieves an HTML page and parses it. Any status other than 200
	// and any transport failure is returned as *FetchError.
	Fetch(ctx context.Context, url string) (dom.Document, error)

	// Download retrieves raw bytes together with the declared content type.
	Download(ctx context.Context, url string) (*Download, error)
}

// Download is a fully-read response body.
type Download struct {
	URL         string
	ContentType string
	Body        []byte
}

// ErrBodyTooLarge is wrapped by a FetchError when a response body exceeds
// the configured size cap.
var ErrBodyTooLarge = eris.New("fetcher: response body too large")

// FetchError reports a failed GET. StatusCode is 0 for transport failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: http %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
