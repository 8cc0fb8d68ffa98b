package fetcher

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestFetch_ParsesPageWithFixedHeaders(t *testing.T) {
	var gotUA, gotLang string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Anzeige</title></head><body><h1>Fahrrad</h1></body></html>`))
	})

	f := NewHTTPFetcher(HTTPOptions{UserAgent: "test-agent"})
	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	h1, ok := doc.FindOne("h1")
	require.True(t, ok)
	assert.Equal(t, "Fahrrad", h1.Text())
	assert.Equal(t, "test-agent", gotUA)
	assert.Equal(t, defaultAcceptLanguage, gotLang)
}

func TestFetch_IgnoresDeclaredCharset(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		// Declares Latin-1 but sends UTF-8.
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte(`<html><head><meta charset="iso-8859-1"></head><body><p>Größe: groß</p></body></html>`))
	})

	f := NewHTTPFetcher(HTTPOptions{})
	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	p, ok := doc.FindOne("p")
	require.True(t, ok)
	assert.Equal(t, "Größe: groß", p.Text())
}

func TestFetch_ConfiguredCharset(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		// "Öl" in Latin-1.
		_, _ = w.Write([]byte("<html><body><p>\xd6l</p></body></html>"))
	})

	f := NewHTTPFetcher(HTTPOptions{Charset: "iso-8859-1"})
	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	p, ok := doc.FindOne("p")
	require.True(t, ok)
	assert.Equal(t, "Öl", p.Text())
}

func TestFetch_UnsupportedCharset(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html></html>`))
	})

	f := NewHTTPFetcher(HTTPOptions{Charset: "no-such-charset"})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported charset")
}

func TestFetch_Non200IsFetchError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	f := NewHTTPFetcher(HTTPOptions{})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Contains(t, err.Error(), "http 404")
}

func TestFetch_NetworkFailureIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	f := NewHTTPFetcher(HTTPOptions{})
	_, err := f.Fetch(context.Background(), url)
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 0, fe.StatusCode)
}

func TestFetch_NoRetryOnServerError(t *testing.T) {
	calls := 0
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	f := NewHTTPFetcher(HTTPOptions{})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDownload_ReturnsBodyAndContentType(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("pngbytes"))
	})

	f := NewHTTPFetcher(HTTPOptions{})
	dl, err := f.Download(context.Background(), srv.URL+"/a.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", dl.ContentType)
	assert.Equal(t, []byte("pngbytes"), dl.Body)
	assert.Equal(t, srv.URL+"/a.png", dl.URL)
}

func TestDownload_Non200(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	f := NewHTTPFetcher(HTTPOptions{})
	_, err := f.Download(context.Background(), srv.URL)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusForbidden, fe.StatusCode)
}

func TestFetch_PushbackSlowsHostLimiter(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	f := NewHTTPFetcher(HTTPOptions{RequestsPerSecond: 100})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	lim := f.limiterFor(srv.URL)
	require.NotNil(t, lim)
	assert.Equal(t, rate.Limit(50), lim.Limit())
}

func TestAdaptiveLimiter_Bounds(t *testing.T) {
	lim := NewAdaptiveLimiter(8, 1)

	for range 5 {
		lim.OnPushback()
	}
	assert.Equal(t, rate.Limit(2), lim.Limit())

	for range 20 {
		lim.OnSuccess()
	}
	assert.Equal(t, rate.Limit(8), lim.Limit())
}

func TestFetchError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &FetchError{URL: "http://x", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "boom")
}

func TestDownload_OversizedBodyFails(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	})

	f := NewHTTPFetcher(HTTPOptions{MaxImageBytes: 32})
	dl, err := f.Download(context.Background(), srv.URL+"/big.png")

	require.Error(t, err)
	assert.Nil(t, dl)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestDownload_BodyAtLimitSucceeds(t *testing.T) {
	body := bytes.Repeat([]byte{1}, 32)
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	})

	f := NewHTTPFetcher(HTTPOptions{MaxImageBytes: 32})
	dl, err := f.Download(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, body, dl.Body)
}

func TestFetch_OversizedPageFails(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>" + strings.Repeat("<p>x</p>", 100) + "</body></html>"))
	})

	f := NewHTTPFetcher(HTTPOptions{MaxPageBytes: 128})
	doc, err := f.Fetch(context.Background(), srv.URL)

	require.Error(t, err)
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestFetch_DefaultHeaders(t *testing.T) {
	var gotUA, gotLang string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		_, _ = w.Write([]byte("<html></html>"))
	})

	f := NewHTTPFetcher(HTTPOptions{})
	_, err := f.Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, defaultUserAgent, gotUA)
	assert.Equal(t, defaultAcceptLanguage, gotLang)
}
