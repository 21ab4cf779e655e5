package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/CodeMonkeyCybersecurity/idorscan/internal/config"
	"github.com/CodeMonkeyCybersecurity/idorscan/pkg/scanners/idor"
)

var ErrNotFound = errors.New("scan report not found")

// Store keeps finished scan reports for later retrieval by ID
type Store interface {
	Save(ctx context.Context, report *idor.Report) error
	Get(ctx context.Context, scanID string) (*idor.Report, error)
	Close() error
}

// New returns a redis-backed store when an address is configured, otherwise
// an in-process one.
func New(cfg config.RedisConfig) (Store, error) {
	if cfg.Addr == "" {
		return NewMemoryStore(cfg.ResultTTL), nil
	}
	return NewRedisStore(cfg)
}

type entry struct {
	report    *idor.Report
	expiresAt time.Time
}

type memoryStore struct {
	mu      sync.RWMutex
	reports map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore keeps reports in a map. A zero ttl never expires them.
func NewMemoryStore(ttl time.Duration) Store {
	return &memoryStore{
		reports: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *memoryStore) Save(ctx context.Context, report *idor.Report) error {
	if report == nil || report.ScanID == "" {
		return fmt.Errorf("report has no scan id")
	}

	e := entry{report: report}
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	s.reports[report.ScanID] = e
	return nil
}

func (s *memoryStore) Get(ctx context.Context, scanID string) (*idor.Report, error) {
	s.mu.RLock()
	e, ok := s.reports[scanID]
	s.mu.RUnlock()

	if !ok || s.expired(e) {
		return nil, ErrNotFound
	}
	return e.report, nil
}

func (s *memoryStore) Close() error { return nil }

func (s *memoryStore) expired(e entry) bool {
	return !e.expiresAt.IsZero() && s.now().After(e.expiresAt)
}

// prune drops expired entries; callers hold the write lock
func (s *memoryStore) prune() {
	for id, e := range s.reports {
		if s.expired(e) {
			delete(s.reports, id)
		}
	}
}
