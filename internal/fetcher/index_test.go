package fetcher

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func indexServer(t *testing.T, archive []byte, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/public_disc/financial-pdfs/2024FD.zip", r.URL.Path)
		_, _ = w.Write(archive)
	}))
}

func TestFetchBulkIndex_DownloadsAndCaches(t *testing.T) {
	archive := zipBytes(t, map[string]string{
		"2024FD.txt": "ignored",
		"2024FD.xml": "<FinancialDisclosure></FinancialDisclosure>",
	})
	var calls atomic.Int32
	srv := indexServer(t, archive, &calls)
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{BaseURL: srv.URL, CacheDir: t.TempDir(), Throttle: time.Millisecond})

	data, err := f.FetchBulkIndex(context.Background(), 2024)
	require.NoError(t, err)
	assert.Equal(t, "<FinancialDisclosure></FinancialDisclosure>", string(data))

	data, err = f.FetchBulkIndex(context.Background(), 2024)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Equal(t, int32(1), calls.Load(), "fresh cache must bypass the network")
}

func TestFetchBulkIndex_StaleCacheRefetches(t *testing.T) {
	archive := zipBytes(t, map[string]string{"2024FD.xml": "<x/>"})
	var calls atomic.Int32
	srv := indexServer(t, archive, &calls)
	defer srv.Close()

	dir := t.TempDir()
	f := NewHTTPFetcher(HTTPOptions{BaseURL: srv.URL, CacheDir: dir, Throttle: time.Millisecond, IndexTTL: time.Hour})

	_, err := f.FetchBulkIndex(context.Background(), 2024)
	require.NoError(t, err)

	f.nowFunc = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = f.FetchBulkIndex(context.Background(), 2024)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchBulkIndex_CorruptArchiveRemoved(t *testing.T) {
	var calls atomic.Int32
	srv := indexServer(t, []byte("not a zip"), &calls)
	defer srv.Close()

	dir := t.TempDir()
	f := NewHTTPFetcher(HTTPOptions{BaseURL: srv.URL, CacheDir: dir, Throttle: time.Millisecond})

	_, err := f.FetchBulkIndex(context.Background(), 2024)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "2024FD.zip"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetchBulkIndex_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{BaseURL: srv.URL, CacheDir: t.TempDir(), Throttle: time.Millisecond})
	_, err := f.FetchBulkIndex(context.Background(), 2024)
	assert.Error(t, err)
}
