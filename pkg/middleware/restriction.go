package middleware

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RestrictionChecker reports the end of a user's active restriction, or nil.
type RestrictionChecker interface {
	RestrictedUntil(userID uuid.UUID) (*time.Time, error)
}

// RestrictionGuard keeps restricted (jailed) users away from the routes it wraps.
// Lookup failures are logged and the request continues.
func RestrictionGuard(checker RestrictionChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, exists := c.Get("user_id")
		if !exists {
			c.Next()
			return
		}
		userID, ok := raw.(uuid.UUID)
		if !ok {
			log.Printf("⚠️ [RESTRICTION] invalid user_id type in context: %T", raw)
			c.Next()
			return
		}

		until, err := checker.RestrictedUntil(userID)
		if err != nil {
			log.Printf("❌ [RESTRICTION] lookup for %s failed: %v", userID, err)
			c.Next()
			return
		}
		if until != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":            "You are restricted",
				"kind":             "forbidden",
				"restricted_until": until,
			})
			return
		}

		c.Next()
	}
}
