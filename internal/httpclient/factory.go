// Package httpclient provides the pooled HTTP clients used by scans
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/net/http/httpproxy"
)

// DefaultTimeout is the overall per-request deadline for scanner clients
const DefaultTimeout = 30 * time.Second

// ClientConfig configures a scanner HTTP client
type ClientConfig struct {
	Timeout         time.Duration
	BlockPrivate    bool   // If true, refuses to dial private, loopback and link-local IPs
	Proxy           string // Explicit proxy URL; empty means HTTP_PROXY/HTTPS_PROXY/NO_PROXY
	FollowRedirects bool
	MaxRedirects    int
	MaxIdleConns    int
}

// DefaultConfig returns the configuration used for IDOR scans
func DefaultConfig() ClientConfig {
	return ClientConfig{
		Timeout:         DefaultTimeout,
		BlockPrivate:    false,
		FollowRedirects: false,
		MaxRedirects:    10,
		MaxIdleConns:    100,
	}
}

// NewScannerClient creates the shared, connection-pooled client for one scan.
// The caller owns it and should call CloseIdleConnections when the scan ends.
func NewScannerClient(config ClientConfig) (*http.Client, error) {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxIdleConns <= 0 {
		config.MaxIdleConns = 100
	}

	proxy, err := proxyFunc(config.Proxy)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		Proxy: proxy,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if config.BlockPrivate {
				if err := validateAddress(addr); err != nil {
					return nil, fmt.Errorf("private network blocked: %w", err)
				}
			}

			var dialer net.Dialer
			return dialer.DialContext(ctx, network, addr)
		},

		// Connection pool settings
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConns,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	client := &http.Client{
		Timeout:   config.Timeout,
		Transport: transport,
	}

	if !config.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else if config.MaxRedirects > 0 {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= config.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", config.MaxRedirects)
			}
			return nil
		}
	}

	return client, nil
}

// proxyFunc resolves the transport proxy. An explicit URL wins over the
// environment so Burp or ZAP can be pinned per scan.
func proxyFunc(explicit string) (func(*http.Request) (*url.URL, error), error) {
	if explicit != "" {
		proxyURL, err := url.Parse(explicit)
		if err != nil || proxyURL.Scheme == "" || proxyURL.Host == "" {
			return nil, fmt.Errorf("invalid proxy URL %q", explicit)
		}
		return http.ProxyURL(proxyURL), nil
	}

	fromEnv := httpproxy.FromEnvironment().ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return fromEnv(req.URL)
	}, nil
}

// validateAddress checks if an address points to a private IP
func validateAddress(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", host, err)
	}

	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("blocked private IP: %s (%s)", ip, host)
		}
	}

	return nil
}

// isPrivateIP checks if an IP address is private, loopback, link-local or unspecified
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() ||
		ip.IsUnspecified()
}

// CloseBody drains and closes an HTTP response body so the connection
// returns to the pool.
//
// Usage:
//
//	defer httpclient.CloseBody(resp)
func CloseBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	if err := resp.Body.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close HTTP response body: %v\n", err)
	}
}
