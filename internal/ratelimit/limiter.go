package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces outgoing scan requests across all workers of one scan
type Limiter struct {
	limiter *rate.Limiter
}

// Config contains rate limiting configuration
type Config struct {
	// RequestsPerSecond limits the number of requests per second
	RequestsPerSecond float64

	// BurstSize allows brief bursts above the rate limit
	BurstSize int
}

// ForScan returns a limiter for a scan capped at requestsPerSecond, or nil
// when the scan is unpaced.
func ForScan(requestsPerSecond float64) *Limiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return NewLimiter(Config{
		RequestsPerSecond: requestsPerSecond,
		BurstSize:         burst,
	})
}

// NewLimiter creates a new rate limiter with the given configuration
func NewLimiter(config Config) *Limiter {
	if config.BurstSize < 1 {
		config.BurstSize = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.BurstSize),
	}
}

// Wait blocks until the rate limiter allows the request or ctx is done
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// KeyedLimiter hands out one token bucket per key (client IP, API key)
type KeyedLimiter struct {
	config  Config
	mu      sync.Mutex
	clients map[string]*keyedEntry
}

type keyedEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyedLimiter creates a per-key limiter
func NewKeyedLimiter(config Config) *KeyedLimiter {
	if config.BurstSize < 1 {
		config.BurstSize = 1
	}
	return &KeyedLimiter{
		config:  config,
		clients: make(map[string]*keyedEntry),
	}
}

// Allow reports whether key may proceed now
func (k *KeyedLimiter) Allow(key string) bool {
	k.mu.Lock()
	entry, ok := k.clients[key]
	if !ok {
		entry = &keyedEntry{
			limiter: rate.NewLimiter(rate.Limit(k.config.RequestsPerSecond), k.config.BurstSize),
		}
		k.clients[key] = entry
	}
	entry.lastSeen = time.Now()
	k.mu.Unlock()

	return entry.limiter.Allow()
}

// Prune drops keys idle for longer than maxIdle and returns how many were removed
func (k *KeyedLimiter) Prune(maxIdle time.Duration) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	removed := 0
	for key, entry := range k.clients {
		if time.Since(entry.lastSeen) > maxIdle {
			delete(k.clients, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys
func (k *KeyedLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.clients)
}
