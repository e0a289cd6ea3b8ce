package territory

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

// GET /api/v1/territories
func (h *Handler) ListTerritories(c *gin.Context) {
	territories, err := h.service.List()
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"territories": territories, "count": len(territories)})
}

// GET /api/v1/territories/:id
func (h *Handler) GetTerritory(c *gin.Context) {
	id, ok := common.ParamUUID(c, "id")
	if !ok {
		return
	}
	t, err := h.service.Get(id)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// POST /api/v1/admin/territories
func (h *Handler) CreateTerritory(c *gin.Context) {
	var req CreateTerritoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	t, err := h.service.Create(&req)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}
