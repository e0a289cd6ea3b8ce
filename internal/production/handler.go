package production

import (
	"net/http"

	"streetlab/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	service *Service
	sweeper *Sweeper
}

func NewHandler(service *Service, sweeper *Sweeper) *Handler {
	return &Handler{service: service, sweeper: sweeper}
}

// StartProduction queues a batch in one of the caller's labs
// POST /api/v1/production/start
func (h *Handler) StartProduction(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}

	var req StartProductionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	resp, err := h.service.StartProduction(req.LabID, userID, req.DrugID, req.Quantity)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// CollectProductions resolves every finished batch
// POST /api/v1/production/collect
func (h *Handler) CollectProductions(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}

	result, err := h.service.CollectProductions(userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GET /api/v1/production/batches?lab_id=&all=true
func (h *Handler) ListBatches(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}

	var labID *uuid.UUID
	if raw := c.Query("lab_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lab_id"})
			return
		}
		labID = &id
	}

	batches, err := h.service.ListBatches(userID, labID, c.Query("all") == "true")
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": batches, "count": len(batches)})
}

// GET /api/v1/admin/sweeper
func (h *Handler) SweeperStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.sweeper.Status())
}

// POST /api/v1/admin/sweeper/run
func (h *Handler) ForceSweep(c *gin.Context) {
	report := h.sweeper.ForceSweep(c.Request.Context())
	c.JSON(http.StatusOK, report)
}
