// Package feed adapts external tabular feeds into raw catalog rows.
package feed

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Fetcher opens one feed payload. Callers close the returned reader.
type Fetcher interface {
	Fetch(ctx context.Context) (io.ReadCloser, error)
	// Location identifies the feed in logs and errors.
	Location() string
}

// Default HTTP fetch settings.
const (
	DefaultFetchTimeout = 30 * time.Second
	DefaultRetries      = 2
	DefaultBackoff      = 250 * time.Millisecond
)

// HTTPFetcher fetches a feed over HTTP. Network errors and 5xx responses are
// retried with exponential backoff; any other non-2xx status fails at once.
type HTTPFetcher struct {
	url     string
	client  *http.Client
	retries int
	backoff time.Duration
}

// HTTPOption applies a configuration option to the HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithTimeout sets the per-attempt request timeout of the default client.
func WithTimeout(d time.Duration) HTTPOption {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithRetries sets how many times a retryable failure is retried.
func WithRetries(n int) HTTPOption {
	return func(f *HTTPFetcher) {
		if n >= 0 {
			f.retries = n
		}
	}
}

// WithBackoff sets the delay before the first retry; it doubles each attempt.
func WithBackoff(d time.Duration) HTTPOption {
	return func(f *HTTPFetcher) {
		if d >= 0 {
			f.backoff = d
		}
	}
}

// NewHTTPFetcher creates an HTTPFetcher for rawURL.
func NewHTTPFetcher(rawURL string, opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		url:     rawURL,
		client:  newClient(),
		retries: DefaultRetries,
		backoff: DefaultBackoff,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func newClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}
	return &http.Client{Transport: transport, Timeout: DefaultFetchTimeout}
}

// Location returns the feed URL.
func (f *HTTPFetcher) Location() string { return f.url }

// Fetch performs the GET, retrying transient failures.
func (f *HTTPFetcher) Fetch(ctx context.Context) (io.ReadCloser, error) {
	var lastErr error
	delay := f.backoff
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %s: %w", ErrFetch, f.url, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}

		body, retry, err := f.do(ctx)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrFetch, f.url, lastErr)
}

func (f *HTTPFetcher) do(ctx context.Context) (io.ReadCloser, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "text/csv, application/json;q=0.9, */*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, resp.StatusCode >= 500, fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
	}
	return resp.Body, false, nil
}

// FileFetcher reads a feed from the local filesystem.
type FileFetcher struct {
	Path string
}

// Location returns the file path.
func (f FileFetcher) Location() string { return f.Path }

// Fetch opens the file.
func (f FileFetcher) Fetch(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, f.Path, err)
	}
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return fh, nil
}

// Open returns the Fetcher for location: http and https URLs fetch over HTTP,
// file URLs and bare paths read from disk.
func Open(location string, opts ...HTTPOption) (Fetcher, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("%w: empty location", ErrUnsupportedScheme)
	}
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" {
		return FileFetcher{Path: location}, nil
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewHTTPFetcher(location, opts...), nil
	case "file":
		return FileFetcher{Path: u.Path}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}
