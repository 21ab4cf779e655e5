package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CodeMonkeyCybersecurity/idorscan/internal/config"
	"github.com/CodeMonkeyCybersecurity/idorscan/pkg/scanners/idor"
)

const reportPrefix = "idorscan:report:"

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(cfg config.RedisConfig) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &redisStore{
		client: client,
		ttl:    cfg.ResultTTL,
	}, nil
}

func (s *redisStore) Save(ctx context.Context, report *idor.Report) error {
	if report == nil || report.ScanID == "" {
		return fmt.Errorf("report has no scan id")
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := s.client.Set(ctx, reportPrefix+report.ScanID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store report %s: %w", report.ScanID, err)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, scanID string) (*idor.Report, error) {
	data, err := s.client.Get(ctx, reportPrefix+scanID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get report %s: %w", scanID, err)
	}

	var report idor.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
