// pkg/scanners/idor/scanner.go
package idor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/CodeMonkeyCybersecurity/idorscan/internal/httpclient"
	"github.com/CodeMonkeyCybersecurity/idorscan/internal/ratelimit"
)

// Scanner enumerates a numeric identifier range against a URL template and
// flags responses that diverge from the baseline shape.
//
// Fetches run concurrently behind a counting semaphore; a single collector
// goroutine owns the result slice and the shape histogram.
type Scanner struct {
	fetcher      Fetcher
	clientConfig httpclient.ClientConfig
	logger       Logger
	progress     ProgressFunc
	tracer       trace.Tracer
}

// Option configures a Scanner
type Option func(*Scanner)

// WithFetcher replaces the HTTP fetcher. The scan's rate_limit and proxy
// settings are not applied to an injected fetcher.
func WithFetcher(f Fetcher) Option {
	return func(s *Scanner) { s.fetcher = f }
}

// WithClientConfig sets the configuration for the per-scan HTTP client
func WithClientConfig(cfg httpclient.ClientConfig) Option {
	return func(s *Scanner) { s.clientConfig = cfg }
}

// WithLogger sets the structured logger
func WithLogger(l Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProgress subscribes fn to the progress stream
func WithProgress(fn ProgressFunc) Option {
	return func(s *Scanner) { s.progress = fn }
}

// NewScanner creates a scanner with the given options
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		clientConfig: httpclient.DefaultConfig(),
		logger:       nopLogger{},
		tracer:       otel.Tracer("idorscan/scanner"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunScan runs one scan to completion and returns its results (in completion
// order) and counters.
func RunScan(ctx context.Context, cfg ScanConfig, opts ...Option) ([]*ScanResult, ScanStats, error) {
	report, err := NewScanner(opts...).Run(ctx, cfg)
	if err != nil {
		return nil, ScanStats{}, err
	}
	return report.Results, report.Stats, nil
}

// Run executes the scan. The only errors returned are configuration errors;
// target failures are recorded per result.
func (s *Scanner) Run(ctx context.Context, cfg ScanConfig) (*Report, error) {
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scan config: %w", err)
	}

	scanID := uuid.New().String()
	start := time.Now()

	ctx, span := s.tracer.Start(ctx, "idor.Scan", trace.WithAttributes(
		attribute.String("scan.id", scanID),
		attribute.String("scan.target", cfg.Target),
		attribute.Int("scan.id_start", cfg.IDStart),
		attribute.Int("scan.id_end", cfg.IDEnd),
		attribute.Int("scan.concurrency", cfg.Concurrency),
	))
	defer span.End()

	if !strings.Contains(cfg.Target, IDPlaceholder) {
		s.logger.Warnw("Target has no identifier placeholder - every request hits the same URL",
			"scan_id", scanID,
			"target", cfg.Target,
			"placeholder", IDPlaceholder,
		)
	}

	fetcher := s.fetcher
	if fetcher == nil {
		clientConfig := s.clientConfig
		if cfg.Proxy != "" {
			clientConfig.Proxy = cfg.Proxy
		}
		client, err := httpclient.NewScannerClient(clientConfig)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		defer client.CloseIdleConnections()
		fetcher = NewHTTPFetcher(client, ratelimit.ForScan(cfg.RateLimit))
	}

	requests := BuildRequests(cfg.Target, cfg.IDStart, cfg.IDEnd)

	s.logger.Infow("Starting IDOR scan",
		"scan_id", scanID,
		"target", cfg.Target,
		"id_start", cfg.IDStart,
		"id_end", cfg.IDEnd,
		"total", len(requests),
		"concurrency", cfg.Concurrency,
	)

	results, histogram := s.collect(ctx, scanID, fetcher, requests, cfg)

	baseline, found := SelectBaseline(histogram)
	Diff(results, baseline)
	stats := Aggregate(results)

	report := &Report{
		ScanID:    scanID,
		Target:    cfg.Target,
		IDStart:   cfg.IDStart,
		IDEnd:     cfg.IDEnd,
		Stats:     stats,
		Results:   results,
		StartedAt: start,
		Duration:  time.Since(start),
	}
	if found {
		report.Baseline = &baseline
		span.SetAttributes(attribute.Int("scan.baseline_length", baseline.Length))
	}

	span.SetAttributes(
		attribute.Int("scan.total", stats.Total),
		attribute.Int("scan.errors", stats.Errors),
		attribute.Int("scan.status_changes", stats.StatusChanges),
		attribute.Int("scan.length_changes", stats.LengthChanges),
	)
	span.SetStatus(codes.Ok, "completed")

	s.logger.Infow("IDOR scan completed",
		"scan_id", scanID,
		"target", cfg.Target,
		"total", stats.Total,
		"success", stats.Success,
		"errors", stats.Errors,
		"status_changes", stats.StatusChanges,
		"length_changes", stats.LengthChanges,
		"baseline_found", found,
		"buckets", len(histogram),
		"duration_ms", report.Duration.Milliseconds(),
	)

	return report, nil
}

// collect dispatches every request behind the admission gate and gathers
// the results in completion order.
func (s *Scanner) collect(ctx context.Context, scanID string, fetcher Fetcher, requests []ScanRequest, cfg ScanConfig) ([]*ScanResult, Histogram) {
	results := make([]*ScanResult, 0, len(requests))
	histogram := make(Histogram)
	if len(requests) == 0 {
		return results, histogram
	}

	gate := semaphore.NewWeighted(int64(cfg.Concurrency))
	completed := make(chan *ScanResult, cfg.Concurrency)

	go func() {
		var wg sync.WaitGroup
		for _, req := range requests {
			if err := gate.Acquire(ctx, 1); err != nil {
				// Cancelled before dispatch: the identifier is still reported
				completed <- errorResult(req, err)
				continue
			}

			wg.Add(1)
			go func(req ScanRequest) {
				defer wg.Done()
				completed <- s.fetchOne(ctx, fetcher, gate, req, cfg.Headers)
			}(req)
		}
		wg.Wait()
		close(completed)
	}()

	for result := range completed {
		if result.Status != nil {
			histogram.Record(result.Status, result.BodyLen)
		}
		results = append(results, result)

		if s.progress != nil {
			s.progress(Progress{
				ScanID:    scanID,
				Completed: len(results),
				Total:     len(requests),
				Result:    result,
			})
		}
	}

	return results, histogram
}

// fetchOne runs a single fetch while holding one gate slot
func (s *Scanner) fetchOne(ctx context.Context, fetcher Fetcher, gate *semaphore.Weighted, req ScanRequest, headers map[string]string) *ScanResult {
	resp, err := func() (resp *Response, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("fetch panicked: %v", r)
			}
		}()
		return fetcher.Fetch(ctx, req.URL, headers)
	}()
	gate.Release(1)

	if err == nil && resp == nil {
		err = errors.New("fetcher returned no response")
	}
	if err != nil {
		s.logger.Debugw("Request failed",
			"id", req.ID,
			"url", req.URL,
			"error", err,
		)
		return errorResult(req, err)
	}

	status := resp.StatusCode
	result := &ScanResult{
		ID:       req.ID,
		URL:      req.URL,
		Status:   &status,
		BodyHash: hashBody(resp.Body),
		Duration: resp.Duration,
	}
	result.BodyLen, result.Body = decodeBody(resp.Body)
	if result.Body != nil {
		result.Title = extractTitle(resp.Body)
	}

	s.logger.Debugw("Request completed",
		"id", req.ID,
		"status", status,
		"body_len", result.BodyLen,
		"duration_ms", resp.Duration.Milliseconds(),
	)

	return result
}

func errorResult(req ScanRequest, err error) *ScanResult {
	msg := err.Error()
	return &ScanResult{
		ID:    req.ID,
		URL:   req.URL,
		Error: &msg,
	}
}
