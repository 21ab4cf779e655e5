package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/CodeMonkeyCybersecurity/idorscan/internal/config"
)

// setupTestRedis starts a redis testcontainer and returns a store bound to it
func setupTestRedis(t *testing.T, ttl time.Duration) Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis testcontainer in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	s, err := NewRedisStore(config.RedisConfig{
		Addr:         endpoint,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		ResultTTL:    ttl,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	t.Logf("redis testcontainer ready at: %s", endpoint)
	return s
}

func TestRedisStore_SaveAndGet(t *testing.T) {
	s := setupTestRedis(t, time.Hour)
	ctx := context.Background()

	report := sampleReport("scan-redis")
	require.NoError(t, s.Save(ctx, report))

	got, err := s.Get(ctx, "scan-redis")
	require.NoError(t, err)
	assert.Equal(t, report.ScanID, got.ScanID)
	assert.Equal(t, report.Stats, got.Stats)
	assert.Equal(t, report.Duration, got.Duration)
	require.Len(t, got.Results, 2)
	assert.Equal(t, 200, *got.Results[0].Status)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Expiry(t *testing.T) {
	s := setupTestRedis(t, time.Second)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleReport("short-lived")))

	assert.Eventually(t, func() bool {
		_, err := s.Get(ctx, "short-lived")
		return err == ErrNotFound
	}, 5*time.Second, 100*time.Millisecond)
}
