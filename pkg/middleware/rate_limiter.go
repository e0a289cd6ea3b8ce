package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter counts requests per user in fixed one-minute redis windows.
// A nil client or a redis error lets the request through.
type RateLimiter struct {
	client *redis.Client
	prefix string
}

func NewRateLimiter(client *redis.Client, prefix string) *RateLimiter {
	return &RateLimiter{client: client, prefix: prefix}
}

// Limit allows at most perMinute requests per user for the routes it guards.
func (rl *RateLimiter) Limit(perMinute int) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, exists := c.Get("user_id")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}
		userID, _ := raw.(uuid.UUID)

		count, reset, ok := rl.hit(c.Request.Context(), userID)
		if !ok {
			c.Next()
			return
		}

		remaining := perMinute - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(perMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if int(count) > perMinute {
			wait := int(time.Until(reset).Seconds())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded",
				"details": gin.H{
					"max_requests_per_min": perMinute,
					"wait_time_seconds":    wait,
					"next_request_at":      reset.Unix(),
				},
				"message": fmt.Sprintf("Too many requests. Wait %d seconds.", wait),
			})
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) key(userID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", rl.prefix, userID)
}

// hit increments the user's window and returns the new count and window end.
func (rl *RateLimiter) hit(ctx context.Context, userID uuid.UUID) (int64, time.Time, bool) {
	if rl.client == nil {
		return 0, time.Time{}, false
	}

	key := rl.key(userID)
	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, time.Minute)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("⚠️ [RATE] redis error, allowing request: %v", err)
		return 0, time.Time{}, false
	}

	window := ttl.Val()
	if window <= 0 {
		window = time.Minute
	}
	return incr.Val(), time.Now().Add(window), true
}
