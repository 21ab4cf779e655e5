// pkg/scanners/idor/types.go
package idor

import (
	"strconv"
	"strings"
	"time"
)

// IDPlaceholder is the literal token in a target template that is replaced
// by each identifier.
const IDPlaceholder = "{id}"

// ScanRequest is one identifier and the URL built for it
type ScanRequest struct {
	ID  int
	URL string
}

// BuildRequests expands the template over [start, end] in ascending order.
// An inverted range yields no requests. Callers bound the range with
// ScanConfig.Validate first.
func BuildRequests(template string, start, end int) []ScanRequest {
	if start > end {
		return []ScanRequest{}
	}

	size := rangeSpan(start, end)
	if size > MaxRangeSize {
		size = MaxRangeSize
	}
	requests := make([]ScanRequest, 0, int(size))
	for id := start; ; id++ {
		requests = append(requests, ScanRequest{
			ID:  id,
			URL: strings.ReplaceAll(template, IDPlaceholder, strconv.Itoa(id)),
		})
		// stop before id++ can wrap at math.MaxInt
		if id == end {
			break
		}
	}
	return requests
}

// ScanResult is the outcome of fetching one identifier.
//
// Status, Body and Error are written once by the orchestrator. DiffStatus and
// DiffLen are written afterwards by Diff; nil means "not comparable".
type ScanResult struct {
	ID         int           `json:"id"`
	URL        string        `json:"url"`
	Status     *int          `json:"status"`
	Body       *string       `json:"body,omitempty"`
	BodyLen    int           `json:"body_len"`
	BodyHash   string        `json:"body_hash,omitempty"`
	Title      string        `json:"title,omitempty"`
	Duration   time.Duration `json:"duration"`
	Error      *string       `json:"error,omitempty"`
	DiffStatus *bool         `json:"diff_status"`
	DiffLen    *bool         `json:"diff_len"`
}

// HasStatus reports whether the request produced an HTTP response
func (r *ScanResult) HasStatus() bool {
	return r.Status != nil
}

// Flagged reports whether the result diverges from the baseline in status or length
func (r *ScanResult) Flagged() bool {
	return (r.DiffStatus != nil && *r.DiffStatus) || (r.DiffLen != nil && *r.DiffLen)
}

// ResponseShape is the coarse fingerprint of a response: status plus body length
type ResponseShape struct {
	Status *int `json:"status"`
	Length int  `json:"length"`
}

// Histogram maps a body-length bucket to the last shape collected for it.
// It is not a frequency table.
type Histogram map[int]ResponseShape

// bucketKey remaps an empty body to 1 so it still owns a bucket
func bucketKey(length int) int {
	if length == 0 {
		return 1
	}
	return length
}

// Record overwrites the bucket for length with (status, length)
func (h Histogram) Record(status *int, length int) {
	h[bucketKey(length)] = ResponseShape{Status: status, Length: length}
}

// ScanStats are the scan-level counters
type ScanStats struct {
	Total         int `json:"total"`
	Success       int `json:"success"`
	Errors        int `json:"errors"`
	StatusChanges int `json:"status_changes"`
	LengthChanges int `json:"length_changes"`
}

// Progress is emitted once per completed request, in completion order
type Progress struct {
	ScanID    string
	Completed int
	Total     int
	Result    *ScanResult
}

// ProgressFunc observes the progress stream. It is called from a single
// goroutine and must not block for long.
type ProgressFunc func(Progress)

// Report bundles everything a scan produced
type Report struct {
	ScanID    string         `json:"id"`
	Target    string         `json:"target"`
	IDStart   int            `json:"id_start"`
	IDEnd     int            `json:"id_end"`
	Baseline  *ResponseShape `json:"baseline,omitempty"`
	Stats     ScanStats      `json:"stats"`
	Results   []*ScanResult  `json:"results"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
}

// Flagged returns the results that diverge from the baseline
func (r *Report) Flagged() []*ScanResult {
	var flagged []*ScanResult
	for _, res := range r.Results {
		if res.Flagged() {
			flagged = append(flagged, res)
		}
	}
	return flagged
}

// Logger interface for structured logging
type Logger interface {
	Infow(msg string, keysAndValues ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infow(string, ...interface{})  {}
func (nopLogger) Debugw(string, ...interface{}) {}
func (nopLogger) Warnw(string, ...interface{})  {}
func (nopLogger) Errorw(string, ...interface{}) {}
