package scrape

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/classifieds-cli/internal/dom"
	"github.com/sells-group/classifieds-cli/internal/fetcher"
	"github.com/sells-group/classifieds-cli/internal/model"
)

// fakeFetcher serves canned pages and downloads keyed by URL.
type fakeFetcher struct {
	mu        sync.Mutex
	pages     map[string]string
	downloads map[string]*fetcher.Download
	calls     []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages:     make(map[string]string),
		downloads: make(map[string]*fetcher.Download),
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (dom.Document, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	html, ok := f.pages[url]
	f.mu.Unlock()
	if !ok {
		return nil, &fetcher.FetchError{URL: url, StatusCode: 404}
	}
	return dom.Parse(strings.NewReader(html))
}

func (f *fakeFetcher) Download(_ context.Context, url string) (*fetcher.Download, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	dl, ok := f.downloads[url]
	f.mu.Unlock()
	if !ok {
		return nil, &fetcher.FetchError{URL: url, StatusCode: 404}
	}
	return dl, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// memStore keeps ads and images in memory.
type memStore struct {
	mu       sync.Mutex
	ads      map[string]*model.AdRecord
	images   map[string][]byte
	failSave bool
}

func newMemStore() *memStore {
	return &memStore{
		ads:    make(map[string]*model.AdRecord),
		images: make(map[string][]byte),
	}
}

func (m *memStore) SaveAd(_ context.Context, ad *model.AdRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return eris.New("disk full")
	}
	m.ads[ad.ID] = ad
	return nil
}

func (m *memStore) SaveImage(_ context.Context, filename string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[filename] = data
	return nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func gifBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewPaletted(image.Rect(0, 0, w, h), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, img, nil))
	return buf.Bytes()
}
