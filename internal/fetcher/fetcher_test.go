package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/tripgeo/internal/resilience"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent: "test-agent",
		Timeout:   5 * time.Second,
		Retry:     resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond},
		Limiter:   rate.NewLimiter(rate.Inf, 1),
	})
}

func TestIsRemote(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://s3.amazonaws.com/tripdata/202401-citibike-tripdata.zip", true},
		{"http://example.com/nta.geojson", true},
		{"data/trips.csv", false},
		{"/abs/path/trips.zip", false},
		{"ftp://example.com/trips.csv", false},
		{"https://", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRemote(tt.in))
		})
	}
}

func TestDownloadIfChanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("ride_id,rideable_type\n"))
	}))
	defer srv.Close()

	f := newTestFetcher()

	body, etag, changed, err := f.DownloadIfChanged(context.Background(), srv.URL+"/trips.csv", "")
	require.NoError(t, err)
	require.True(t, changed)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "ride_id,rideable_type\n", string(data))
	assert.Equal(t, `"v1"`, etag)

	body, etag, changed, err = f.DownloadIfChanged(context.Background(), srv.URL+"/trips.csv", `"v1"`)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Nil(t, body)
	assert.Equal(t, `"v1"`, etag)
}

func TestDownloadIfChanged_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, _, changed, err := newTestFetcher().DownloadIfChanged(context.Background(), srv.URL, "")
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck
	assert.True(t, changed)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDownloadIfChanged_PermanentError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, _, _, err := newTestFetcher().DownloadIfChanged(context.Background(), srv.URL, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestDownloadIfChanged_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, _, _, err := newTestFetcher().DownloadIfChanged(context.Background(), srv.URL, "")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestCache_LocalPathPassthrough(t *testing.T) {
	c := NewCache(t.TempDir(), newTestFetcher())
	got, err := c.Resolve(context.Background(), "data/trips.csv")
	require.NoError(t, err)
	assert.Equal(t, "data/trips.csv", got)
}

func TestCache_DownloadsOnceThenUsesETag(t *testing.T) {
	var full, notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"abc"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		full.Add(1)
		w.Header().Set("ETag", `"abc"`)
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "cache")
	c := NewCache(dir, newTestFetcher())
	url := srv.URL + "/boundaries/nta.geojson?version=2"

	first, err := c.Resolve(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(first))
	assert.True(t, strings.HasSuffix(first, "-nta.geojson"), first)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Contains(t, string(data), "FeatureCollection")
	assert.Equal(t, `"abc"`, readETag(first))

	second, err := c.Resolve(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), full.Load())
	assert.Equal(t, int32(1), notModified.Load())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "data file and etag sidecar only")
}

func TestCache_DownloadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewCache(t.TempDir(), newTestFetcher())
	_, err := c.Resolve(context.Background(), srv.URL+"/trips.zip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetcher: download")
}

func TestCacheName(t *testing.T) {
	a := cacheName("https://example.com/a/trips.zip")
	b := cacheName("https://example.com/b/trips.zip")
	assert.True(t, strings.HasSuffix(a, "-trips.zip"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, cacheName("https://example.com/a/trips.zip"))
	assert.True(t, strings.HasSuffix(cacheName("https://example.com/"), "-download"))
}
