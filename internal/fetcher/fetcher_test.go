package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadToFile_Success(t *testing.T) {
	body := strings.Repeat("annual report content ", 100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "report-harvester/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	f := New(Options{})
	dest := filepath.Join(t.TempDir(), "TESTCO_2015.pdf")
	n, err := f.DownloadToFile(context.Background(), srv.URL+"/TESTCO_2015.pdf", dest)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), n)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}

func TestDownloadToFile_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := New(Options{})
	dest := filepath.Join(t.TempDir(), "TESTCO_2015.pdf")
	_, err := f.DownloadToFile(context.Background(), srv.URL+"/gone.pdf", dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")

	// Destination is only created after a success status.
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownloadToFile_MidTransferError_LeavesPartialFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		_, _ = w.Write([]byte("partial"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		// Handler returns early; the connection closes short of the
		// declared length and the client sees an unexpected EOF.
	}))
	defer srv.Close()

	f := New(Options{})
	dest := filepath.Join(t.TempDir(), "TESTCO_2015.pdf")
	_, err := f.DownloadToFile(context.Background(), srv.URL+"/big.pdf", dest)
	require.Error(t, err)

	data, readErr := os.ReadFile(dest)
	require.NoError(t, readErr)
	assert.Equal(t, "partial", string(data))
}

func TestDownloadToFile_ProgressSamples(t *testing.T) {
	var mu sync.Mutex
	var samples []int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for range 5 {
			_, _ = w.Write([]byte(strings.Repeat("x", 1024)))
			flusher.Flush()
			time.Sleep(20 * time.Millisecond)
		}
	}))
	defer srv.Close()

	f := New(Options{
		Progress: func(bytesPerSec, total int64) {
			mu.Lock()
			samples = append(samples, total)
			mu.Unlock()
		},
	})
	f.sampleInterval = 10 * time.Millisecond

	dest := filepath.Join(t.TempDir(), "slow.pdf")
	n, err := f.DownloadToFile(context.Background(), srv.URL+"/slow.pdf", dest)
	require.NoError(t, err)
	assert.Equal(t, int64(5*1024), n)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, samples)
	// Cumulative totals never decrease.
	for i := 1; i < len(samples); i++ {
		assert.GreaterOrEqual(t, samples[i], samples[i-1])
	}
}

func TestDownloadToFile_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(Options{})
	_, err := f.DownloadToFile(ctx, "https://www.bseindia.com/never.pdf", filepath.Join(t.TempDir(), "never.pdf"))
	require.Error(t, err)
}

func TestDefaultRateLimiters(t *testing.T) {
	limiters := DefaultRateLimiters(2, 2)
	assert.Contains(t, limiters, "www.bseindia.com")
	assert.Contains(t, limiters, "www.nseindia.com")
}
