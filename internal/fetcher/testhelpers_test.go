package fetcher

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestServer starts an httptest server that is closed with the test.
func newTestServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}
