package idor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeMonkeyCybersecurity/idorscan/internal/httpclient"
	"github.com/CodeMonkeyCybersecurity/idorscan/internal/ratelimit"
)

func newTestFetcher(t *testing.T, limiter *ratelimit.Limiter) *HTTPFetcher {
	t.Helper()
	client, err := httpclient.NewScannerClient(httpclient.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(client.CloseIdleConnections)
	return NewHTTPFetcher(client, limiter)
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "abc", r.Header.Get("X-Api-Key"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("hello"))
	}))
	defer server.Close()

	resp, err := newTestFetcher(t, nil).Fetch(context.Background(), server.URL, map[string]string{"X-Api-Key": "abc"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, []byte("hello"), resp.Body)
	assert.Greater(t, resp.Duration, time.Duration(0))
}

func TestHTTPFetcher_UserAgentOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get("User-Agent")))
	}))
	defer server.Close()

	resp, err := newTestFetcher(t, nil).Fetch(context.Background(), server.URL, map[string]string{"User-Agent": "custom"})
	require.NoError(t, err)
	assert.Equal(t, "custom", string(resp.Body))
}

func TestHTTPFetcher_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	resp, err := newTestFetcher(t, nil).Fetch(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, resp.Body)
}

func TestHTTPFetcher_TransportErrorIsReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	resp, err := newTestFetcher(t, nil).Fetch(context.Background(), url, nil)
	assert.Nil(t, resp)
	assert.Error(t, err)
}

func TestHTTPFetcher_MalformedURL(t *testing.T) {
	_, err := newTestFetcher(t, nil).Fetch(context.Background(), "http://[::1", nil)
	assert.Error(t, err)
}

func TestHTTPFetcher_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	fetcher := newTestFetcher(t, ratelimit.ForScan(10))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetcher.Fetch(ctx, server.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}

func TestDecodeBody(t *testing.T) {
	n, text := decodeBody([]byte("héllo"))
	require.NotNil(t, text)
	assert.Equal(t, "héllo", *text)
	assert.Equal(t, 5, n, "valid text is measured in characters")

	n, text = decodeBody([]byte{0xff, 0xfe, 0x00, 0x01})
	assert.Nil(t, text)
	assert.Equal(t, 4, n, "undecodable bodies fall back to byte length")

	n, text = decodeBody([]byte{})
	require.NotNil(t, text)
	assert.Equal(t, 0, n)
}

func TestExtractTitle(t *testing.T) {
	assert.Equal(t, "Order 42 - Acme", extractTitle([]byte("<html><head><title>\n  Order 42 -   Acme </title></head></html>")))
	assert.Equal(t, "", extractTitle([]byte(`{"title":"not html"}`)))
	assert.Equal(t, "", extractTitle([]byte("<html><body>no title</body></html>")))
}

func TestHashBody(t *testing.T) {
	assert.Equal(t, hashBody([]byte("same")), hashBody([]byte("same")))
	assert.NotEqual(t, hashBody([]byte("one")), hashBody([]byte("two")))
	assert.Len(t, hashBody(nil), 8)
}
