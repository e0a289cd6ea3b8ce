package addiction

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

// GET /api/v1/addictions
func (h *Handler) ListAddictions(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}

	addictions, err := h.service.List(userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"addictions": addictions, "count": len(addictions)})
}

// GET /api/v1/addictions/withdrawals
func (h *Handler) ListWithdrawals(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}

	withdrawals, err := h.service.Withdrawals(userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": withdrawals, "count": len(withdrawals)})
}

// GET /api/v1/addictions/:id
func (h *Handler) GetAddiction(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}
	id, ok := common.ParamUUID(c, "id")
	if !ok {
		return
	}

	a, err := h.service.Get(userID, id)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// Rehab pays to clear an addiction
// POST /api/v1/addictions/:id/rehab
func (h *Handler) Rehab(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}
	id, ok := common.ParamUUID(c, "id")
	if !ok {
		return
	}

	result, err := h.service.Rehab(userID, id)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
