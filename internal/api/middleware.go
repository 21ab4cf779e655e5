package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CodeMonkeyCybersecurity/idorscan/internal/config"
	"github.com/CodeMonkeyCybersecurity/idorscan/internal/logger"
	"github.com/CodeMonkeyCybersecurity/idorscan/internal/ratelimit"
)

// LoggingMiddleware logs all HTTP requests
func LoggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		log.LogHTTPRequest(c.Request.Context(), method, path, c.Writer.Status(), time.Since(start),
			"ip", c.ClientIP(),
		)
	}
}

// AuthMiddleware validates a bearer API key. An empty key disables auth.
func AuthMiddleware(expectedAPIKey string, log *logger.Logger) gin.HandlerFunc {
	if expectedAPIKey == "" {
		log.Warnw("API key not configured, API is unauthenticated",
			"hint", "Set IDORSCAN_SERVER_API_KEY or server.api_key in the config file",
		)
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Warnw("Missing Authorization header",
				"path", c.Request.URL.Path,
				"ip", c.ClientIP(),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing Authorization header",
			})
			return
		}

		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid Authorization format. Expected: Bearer <token>",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(expectedAPIKey)) != 1 {
			log.Warnw("Invalid API key",
				"ip", c.ClientIP(),
				"path", c.Request.URL.Path,
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			return
		}

		c.Next()
	}
}

// RateLimitMiddleware implements token bucket rate limiting per client IP.
// Idle clients are pruned until ctx is done. A non-positive rate disables it.
func RateLimitMiddleware(ctx context.Context, cfg config.RateLimitConfig, log *logger.Logger) gin.HandlerFunc {
	if cfg.RequestsPerSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	limiter := ratelimit.NewKeyedLimiter(ratelimit.Config{
		RequestsPerSecond: float64(cfg.RequestsPerSecond),
		BurstSize:         cfg.BurstSize,
	})

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := limiter.Prune(10 * time.Minute); removed > 0 {
					log.Debugw("Pruned idle rate limit clients",
						"removed", removed,
						"tracked", limiter.Len(),
					)
				}
			}
		}
	}()

	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
