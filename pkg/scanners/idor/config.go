// pkg/scanners/idor/config.go
package idor

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConcurrency = 5
	DefaultIDStart     = 1
	DefaultIDEnd       = 10

	// MaxRangeSize bounds the identifiers one scan may request, since every
	// identifier keeps a result in memory until the report is built.
	MaxRangeSize = 1 << 24
)

var (
	ErrMissingTarget      = errors.New("config must have 'target' field")
	ErrInvalidRange       = errors.New("id_range must be a list of two integers")
	ErrInvalidHeader      = errors.New("header must be in KEY:VALUE format")
	ErrInvalidConcurrency = errors.New("concurrency must be a positive integer")
	ErrInvalidProxy       = errors.New("proxy must be an absolute URL")
)

// ScanConfig describes one IDOR scan
type ScanConfig struct {
	Target      string            `json:"target"`
	IDStart     int               `json:"id_start"`
	IDEnd       int               `json:"id_end"`
	Headers     map[string]string `json:"headers,omitempty"`
	Concurrency int               `json:"concurrency"`

	// RateLimit caps requests per second across the scan; 0 disables pacing.
	RateLimit float64 `json:"rate_limit,omitempty"`
	// Proxy overrides the proxy taken from the environment.
	Proxy string `json:"proxy,omitempty"`
}

// Validate checks the fields the engine depends on
func (c ScanConfig) Validate() error {
	if strings.TrimSpace(c.Target) == "" {
		return ErrMissingTarget
	}
	if span := rangeSpan(c.IDStart, c.IDEnd); span > MaxRangeSize {
		return fmt.Errorf("%w: [%d, %d] spans more than %d identifiers", ErrInvalidRange, c.IDStart, c.IDEnd, MaxRangeSize)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidConcurrency, c.Concurrency)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative: got %v", c.RateLimit)
	}
	if c.Proxy != "" {
		u, err := url.Parse(c.Proxy)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidProxy, c.Proxy)
		}
	}
	return nil
}

// RangeSize is the number of identifiers the scan will request. It never
// overflows: spans wider than math.MaxInt report math.MaxInt.
func (c ScanConfig) RangeSize() int {
	span := rangeSpan(c.IDStart, c.IDEnd)
	if span > math.MaxInt {
		return math.MaxInt
	}
	return int(span)
}

// rangeSpan counts [start, end] in uint64. The full int range saturates at
// math.MaxUint64 instead of wrapping to 0.
func rangeSpan(start, end int) uint64 {
	if start > end {
		return 0
	}
	d := uint64(end) - uint64(start)
	if d == math.MaxUint64 {
		return d
	}
	return d + 1
}

// scanFile is the on-disk shape of a scan job
type scanFile struct {
	Target      string     `yaml:"target"`
	IDRange     []int      `yaml:"id_range"`
	Headers     headerList `yaml:"headers"`
	Concurrency *int       `yaml:"concurrency"`
	RateLimit   float64    `yaml:"rate_limit"`
	Proxy       string     `yaml:"proxy"`
}

// headerList accepts a single "Key: Value" string, a list of them, or a mapping.
// Any other node kind is ignored.
type headerList []string

func (h *headerList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			return nil
		}
		*h = headerList{value.Value}
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		*h = items
	case yaml.MappingNode:
		var m map[string]string
		if err := value.Decode(&m); err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		for k, v := range m {
			*h = append(*h, k+":"+v)
		}
	}
	return nil
}

// LoadConfig reads a YAML scan job from path
func LoadConfig(path string) (ScanConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ScanConfig{}, fmt.Errorf("failed to read scan config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML (or JSON) scan job
func ParseConfig(data []byte) (ScanConfig, error) {
	var raw scanFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return ScanConfig{}, fmt.Errorf("failed to parse scan config: %w", err)
	}

	if raw.Target == "" {
		return ScanConfig{}, ErrMissingTarget
	}

	ids := raw.IDRange
	if ids == nil {
		ids = []int{DefaultIDStart, DefaultIDEnd}
	}
	if len(ids) != 2 {
		return ScanConfig{}, fmt.Errorf("%w: got %d values", ErrInvalidRange, len(ids))
	}

	headers, err := ParseHeaders(raw.Headers)
	if err != nil {
		return ScanConfig{}, err
	}

	concurrency := DefaultConcurrency
	if raw.Concurrency != nil {
		concurrency = *raw.Concurrency
	}

	cfg := ScanConfig{
		Target:      raw.Target,
		IDStart:     ids[0],
		IDEnd:       ids[1],
		Headers:     headers,
		Concurrency: concurrency,
		RateLimit:   raw.RateLimit,
		Proxy:       raw.Proxy,
	}
	if err := cfg.Validate(); err != nil {
		return ScanConfig{}, err
	}
	return cfg, nil
}

// ParseHeaders splits "Key: Value" strings on the first colon and trims both sides
func ParseHeaders(lines []string) (map[string]string, error) {
	headers := make(map[string]string, len(lines))
	for _, line := range lines {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidHeader, line)
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return headers, nil
}
