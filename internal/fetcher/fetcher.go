// Package fetcher downloads report documents over HTTPS, streaming each
// response straight to disk so large archives never sit in memory.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// ProgressFunc receives a throughput sample once per second while a
// transfer is running: the instantaneous rate (bytes received since the
// previous sample) and the cumulative total. Purely advisory; it never
// affects the transfer itself.
type ProgressFunc func(bytesPerSec, total int64)

// Options configures the Fetcher.
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	RateLimiters map[string]*rate.Limiter
	Progress     ProgressFunc
}

// Fetcher retrieves single document references to local storage. There is
// no automatic retry: a transfer error is reported to the caller, which
// records it and moves on to the next reference.
type Fetcher struct {
	client   *http.Client
	opts     Options
	limiters map[string]*rate.Limiter

	// sampleInterval is the progress sampling cadence. Tests shorten it.
	sampleInterval time.Duration
}

// DefaultRateLimiters returns the default per-host rate limiters for the
// two exchange hosts. Unknown hosts get a permissive shared default.
func DefaultRateLimiters(r float64, burst int) map[string]*rate.Limiter {
	return map[string]*rate.Limiter{
		"www.bseindia.com": rate.NewLimiter(rate.Limit(r), burst),
		"www.nseindia.com": rate.NewLimiter(rate.Limit(r), burst),
	}
}

// New creates a Fetcher with the given options.
func New(opts Options) *Fetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "report-harvester/1.0"
	}
	limiters := make(map[string]*rate.Limiter)
	for k, v := range opts.RateLimiters {
		limiters[k] = v
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Fetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:           opts,
		limiters:       limiters,
		sampleInterval: time.Second,
	}
}

func (f *Fetcher) limiterFor(rawURL string) *rate.Limiter {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rate.NewLimiter(10, 10)
	}
	if lim, ok := f.limiters[u.Host]; ok {
		return lim
	}
	return rate.NewLimiter(10, 10)
}

// DownloadToFile fetches the URL and streams it to the given path,
// returning the bytes written. On error the partially written file is
// left in place for the caller to inspect; the destination is closed
// exactly once either way.
func (f *Fetcher) DownloadToFile(ctx context.Context, rawURL, path string) (int64, error) {
	if err := f.limiterFor(rawURL).Wait(ctx); err != nil {
		return 0, eris.Wrap(err, "fetch: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, eris.Wrapf(err, "fetch: get %s", rawURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, eris.Errorf("fetch: unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	out, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrapf(err, "fetch: create %s", path)
	}

	cw := &countingWriter{w: out}
	stop := f.startSampling(cw)
	_, copyErr := io.Copy(cw, resp.Body)
	stop()

	closeErr := out.Close()
	if copyErr != nil {
		return cw.total(), eris.Wrapf(copyErr, "fetch: write %s", path)
	}
	if closeErr != nil {
		return cw.total(), eris.Wrapf(closeErr, "fetch: close %s", path)
	}
	return cw.total(), nil
}

// startSampling launches the 1-second throughput sampler. The returned
// function stops it and waits for the sampler goroutine to exit.
func (f *Fetcher) startSampling(cw *countingWriter) func() {
	if f.opts.Progress == nil {
		return func() {}
	}

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(f.sampleInterval)
		defer ticker.Stop()

		var prev int64
		for {
			select {
			case <-ticker.C:
				cur := cw.total()
				f.opts.Progress(cur-prev, cur)
				prev = cur
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		<-exited
	}
}

type countingWriter struct {
	w io.Writer
	n atomic.Int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n.Add(int64(n))
	return n, err
}

func (c *countingWriter) total() int64 {
	return c.n.Load()
}
