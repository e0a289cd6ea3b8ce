package effects

import (
	"net/http"

	"streetlab/internal/common"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// UseDrug consumes one unit of a held drug
// POST /api/v1/drugs/:id/use
func (h *Handler) UseDrug(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}

	result, err := h.service.UseDrug(userID, c.Param("id"))
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GET /api/v1/effects
func (h *Handler) ActiveEffects(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}

	effects, err := h.service.ActiveEffects(userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	resp := ActiveEffectsResponse{Effects: effects}
	for _, e := range effects {
		resp.Total = resp.Total.Add(e.Bonuses)
	}
	c.JSON(http.StatusOK, resp)
}

// ActiveBonuses returns the summed bonuses of every unexpired effect
// GET /api/v1/effects/bonuses
func (h *Handler) ActiveBonuses(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}

	total, err := h.service.ActiveBonuses(userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bonuses": total})
}
