package httpclient

import (
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScannerClient(t *testing.T) {
	client, err := NewScannerClient(DefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, client)
	assert.Equal(t, 30*time.Second, client.Timeout)
}

func TestNewScannerClient_ZeroTimeoutUsesDefault(t *testing.T) {
	client, err := NewScannerClient(ClientConfig{})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, client.Timeout)
}

func TestNewScannerClient_InvalidProxy(t *testing.T) {
	_, err := NewScannerClient(ClientConfig{Proxy: "not a url"})
	assert.Error(t, err)
}

func TestNewScannerClient_ExplicitProxy(t *testing.T) {
	client, err := NewScannerClient(ClientConfig{Proxy: "http://127.0.0.1:8080"})
	require.NoError(t, err)

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)

	req, err := http.NewRequest("GET", "http://example.com/api/items/1", nil)
	require.NoError(t, err)

	proxyURL, err := transport.Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, &url.URL{Scheme: "http", Host: "127.0.0.1:8080"}, proxyURL)
}

func TestNewScannerClient_EnvironmentProxy(t *testing.T) {
	t.Setenv("HTTP_PROXY", "http://burp.local:8080")
	t.Setenv("NO_PROXY", "")

	client, err := NewScannerClient(DefaultConfig())
	require.NoError(t, err)

	transport := client.Transport.(*http.Transport)
	req, _ := http.NewRequest("GET", "http://example.com/api/items/1", nil)

	proxyURL, err := transport.Proxy(req)
	require.NoError(t, err)
	require.NotNil(t, proxyURL)
	assert.Equal(t, "burp.local:8080", proxyURL.Host)
}

func TestBlockPrivate_RefusesLoopback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewScannerClient(ClientConfig{Timeout: 5 * time.Second, BlockPrivate: true})
	require.NoError(t, err)

	resp, err := client.Get(server.URL)
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected loopback request to be blocked")
	}
	assert.Contains(t, err.Error(), "private network blocked")
}

func TestBlockPrivate_DisabledAllowsLoopback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	client, err := NewScannerClient(DefaultConfig())
	require.NoError(t, err)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer CloseBody(resp)

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"10.0.0.1", true},
		{"172.16.0.1", true},
		{"192.168.1.1", true},
		{"127.0.0.1", true},
		{"169.254.1.1", true},
		{"0.0.0.0", true},
		{"::1", true},
		{"8.8.8.8", false},
		{"93.184.216.34", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			assert.Equal(t, tt.want, isPrivateIP(net.ParseIP(tt.ip)))
		})
	}
}

func TestCloseBody_Nil(t *testing.T) {
	assert.NotPanics(t, func() {
		CloseBody(nil)
		CloseBody(&http.Response{})
	})
}

func TestNewScannerClient_Redirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/item/2", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	t.Run("default returns the redirect itself", func(t *testing.T) {
		client, err := NewScannerClient(DefaultConfig())
		require.NoError(t, err)

		resp, err := client.Get(server.URL + "/item/2")
		require.NoError(t, err)
		defer CloseBody(resp)

		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/login", resp.Header.Get("Location"))
	})

	t.Run("opt-in follows", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.FollowRedirects = true
		client, err := NewScannerClient(cfg)
		require.NoError(t, err)

		resp, err := client.Get(server.URL + "/item/2")
		require.NoError(t, err)
		defer CloseBody(resp)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
