package player

import (
	"net/http"
	"strconv"

	"streetlab/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetProfile returns cash, stats and restriction state
// GET /api/v1/me
func (h *Handler) GetProfile(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}

	profile, err := h.service.GetProfile(userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// GetCashHistory returns recent cash movements
// GET /api/v1/me/cash
func (h *Handler) GetCashHistory(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.service.CashHistory(userID, limit)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": entries,
		"count":        len(entries),
	})
}

// EnsurePlayer is called by the auth middleware so every authenticated caller has a ledger row.
func (h *Handler) EnsurePlayer(userID uuid.UUID, username string) error {
	_, err := h.service.EnsurePlayer(userID, username)
	return err
}
