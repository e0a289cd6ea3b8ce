package achievement

import (
	"context"
	"net/http"
	"strconv"

	"streetlab/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ProgressReader is implemented by hooks that keep counters.
type ProgressReader interface {
	Progress(ctx context.Context, userID uuid.UUID) (map[string]string, error)
}

type Handler struct {
	reader ProgressReader
}

// NewHandler serves the counters of h. Hooks without counters report empty progress.
func NewHandler(h Hook) *Handler {
	reader, _ := h.(ProgressReader)
	return &Handler{reader: reader}
}

// GET /api/v1/achievements
func (h *Handler) GetProgress(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}

	progress := map[string]int64{}
	if h.reader != nil {
		raw, err := h.reader.Progress(c.Request.Context(), userID)
		if err != nil {
			common.RespondError(c, err)
			return
		}
		for metric, value := range raw {
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				continue
			}
			progress[metric] = n
		}
	}
	c.JSON(http.StatusOK, gin.H{"progress": progress})
}
