package market

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

// ListDeals returns public pending deals
// GET /api/v1/deals?drug_id=&max_price=&limit=&offset=
func (h *Handler) ListDeals(c *gin.Context) {
	var filter DealFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query: " + err.Error()})
		return
	}

	deals, err := h.service.ListDeals(filter)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deals": deals, "count": len(deals)})
}

// GET /api/v1/deals/mine
func (h *Handler) MyDeals(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}

	deals, err := h.service.MyDeals(userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deals": deals, "count": len(deals)})
}

// GET /api/v1/deals/:id
func (h *Handler) GetDeal(c *gin.Context) {
	id, ok := common.ParamUUID(c, "id")
	if !ok {
		return
	}

	deal, err := h.service.GetDeal(id)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, deal)
}

// CreateDeal lists drugs for sale
// POST /api/v1/deals
func (h *Handler) CreateDeal(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}

	var req CreateDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	deal, err := h.service.CreateDeal(userID, &req)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, deal)
}

// POST /api/v1/deals/:id/buy
func (h *Handler) BuyDeal(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}
	id, ok := common.ParamUUID(c, "id")
	if !ok {
		return
	}

	result, err := h.service.BuyDeal(userID, id)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// POST /api/v1/deals/:id/cancel
func (h *Handler) CancelDeal(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}
	id, ok := common.ParamUUID(c, "id")
	if !ok {
		return
	}

	deal, err := h.service.CancelDeal(userID, id)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, deal)
}
