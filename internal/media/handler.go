package media

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service  *Service
	prefixes []string
}

// NewHandler serves only keys under one of the given folders.
func NewHandler(service *Service, folders ...string) *Handler {
	prefixes := make([]string, 0, len(folders))
	for _, f := range folders {
		prefixes = append(prefixes, strings.Trim(f, "/")+"/")
	}
	return &Handler{service: service, prefixes: prefixes}
}

func (h *Handler) allowed(key string) bool {
	for _, p := range h.prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// GetImage streams a stored image with browser cache headers
// GET /api/v1/media/*key
func (h *Handler) GetImage(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" || strings.Contains(key, "..") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image key"})
		return
	}
	if !h.allowed(key) {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found", "key": key})
		return
	}

	etag := fmt.Sprintf(`"%s"`, key)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}

	data, contentType, err := h.service.Image(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "image not found", "key": key})
			return
		}
		log.Printf("❌ [MEDIA] failed to load %s: %v", key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load image"})
		return
	}

	c.Header("Cache-Control", "public, max-age=3600")
	c.Header("ETag", etag)
	c.Data(http.StatusOK, contentType, data)
}
