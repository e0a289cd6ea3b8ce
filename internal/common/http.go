package common

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserID reads the caller id set by the auth middleware. It writes a 401 and
// returns false when absent.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	raw, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return uuid.Nil, false
	}
	id, ok := raw.(uuid.UUID)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user id"})
		return uuid.Nil, false
	}
	return id, true
}

// ParamUUID parses a uuid path parameter, writing a 400 on failure.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// RespondError writes a business error with its kind and details, or a 500 for
// infrastructure failures.
func RespondError(c *gin.Context, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("❌ [HTTP] %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}

	body := gin.H{"error": err.Error(), "kind": KindOf(err)}
	var e *Error
	if errors.As(err, &e) && len(e.Details) > 0 {
		body["details"] = e.Details
	}
	c.JSON(status, body)
}
