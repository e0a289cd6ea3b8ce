package lab

import (
	"net/http"

	"streetlab/internal/common"

	"github.com/gin-gonic/gin"
)

// =============================================
// 1. HANDLER STRUCTURE
// =============================================

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// =============================================
// 2. LAB ENDPOINTS
// =============================================

// ListLabs returns the caller's labs
// GET /api/v1/labs
func (h *Handler) ListLabs(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}

	labs, err := h.service.ListLabs(userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"labs": labs, "count": len(labs)})
}

// CreateLab builds a lab and charges its setup cost
// POST /api/v1/labs
func (h *Handler) CreateLab(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}

	var req CreateLabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	lab, err := h.service.CreateLab(userID, req.Name, req.Location)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lab)
}

// GET /api/v1/labs/:id
func (h *Handler) GetLab(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}
	labID, ok := common.ParamUUID(c, "id")
	if !ok {
		return
	}

	lab, err := h.service.GetLab(labID, userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lab)
}

// PATCH /api/v1/labs/:id
func (h *Handler) RenameLab(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}
	labID, ok := common.ParamUUID(c, "id")
	if !ok {
		return
	}

	var req RenameLabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	lab, err := h.service.RenameLab(labID, userID, req.Name)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lab)
}

// DELETE /api/v1/labs/:id
func (h *Handler) DeleteLab(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}
	labID, ok := common.ParamUUID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteLab(labID, userID); err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UpgradeLab raises the lab one level
// POST /api/v1/labs/:id/upgrade
func (h *Handler) UpgradeLab(c *gin.Context) {
	userID, ok := common.UserID(c)
	if !ok {
		return
	}
	labID, ok := common.ParamUUID(c, "id")
	if !ok {
		return
	}

	result, err := h.service.UpgradeLab(labID, userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GET /api/v1/labs/locations
func (h *Handler) ListLocations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"locations": h.service.Locations()})
}
