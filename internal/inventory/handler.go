package inventory

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

// GetInventory returns drug and ingredient holdings
// GET /api/v1/inventory
func (h *Handler) GetInventory(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}

	inv, err := h.service.List(userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"drugs":       inv.Drugs,
		"ingredients": inv.Ingredients,
		"total_items": len(inv.Drugs) + len(inv.Ingredients),
	})
}

// BuyIngredients buys raw materials for cash
// POST /api/v1/inventory/ingredients/buy
func (h *Handler) BuyIngredients(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}

	var req BuyIngredientsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	resp, err := h.service.BuyIngredients(userID, req.IngredientID, req.Quantity)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
