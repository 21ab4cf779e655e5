// pkg/scanners/idor/fetcher.go
package idor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/CodeMonkeyCybersecurity/idorscan/internal/httpclient"
	"github.com/CodeMonkeyCybersecurity/idorscan/internal/ratelimit"
)

// DefaultUserAgent is sent unless the scan headers set one
const DefaultUserAgent = "idorscan/1.0"

// Response is what a Fetcher returns for a completed HTTP exchange
type Response struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Fetcher issues one GET. A non-nil error means the transport failed; the
// orchestrator records it on the result and the scan carries on.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string) (*Response, error)
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context, url string, headers map[string]string) (*Response, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return f(ctx, url, headers)
}

// HTTPFetcher fetches over a shared, pooled *http.Client
type HTTPFetcher struct {
	client  *http.Client
	limiter *ratelimit.Limiter
}

// NewHTTPFetcher wraps client. limiter may be nil for an unpaced scan.
func NewHTTPFetcher(client *http.Client, limiter *ratelimit.Limiter) *HTTPFetcher {
	return &HTTPFetcher{
		client:  client,
		limiter: limiter,
	}
}

// Fetch performs the GET and reads the full body
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", DefaultUserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpclient.CloseBody(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Duration:   time.Since(start),
	}, nil
}
