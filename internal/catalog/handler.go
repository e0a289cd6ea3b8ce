package catalog

import (
	"net/http"

	"streetlab/internal/common"

	"github.com/gin-gonic/gin"
)

const maxImageBytes = 5 << 20

// ImageKeyPrefix is the object-store folder holding drug images.
const ImageKeyPrefix = "drugs"

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
// 2. PUBLIC CATALOG ENDPOINTS
// =============================================

// ListDrugs returns every drug in the catalog
// GET /api/v1/catalog/drugs
func (h *Handler) ListDrugs(c *gin.Context) {
	if name := c.Query("name"); name != "" {
		detail, err := h.service.GetDrugByName(name)
		if err != nil {
			common.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, detail)
		return
	}

	drugs, err := h.service.ListDrugs()
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drugs": drugs, "count": len(drugs)})
}

// GetDrug returns a drug with its recipe
// GET /api/v1/catalog/drugs/:id
func (h *Handler) GetDrug(c *gin.Context) {
	detail, err := h.service.GetDrug(c.Param("id"))
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// GetDrugImage redirects to a presigned image url
// GET /api/v1/catalog/drugs/:id/image
func (h *Handler) GetDrugImage(c *gin.Context) {
	url, err := h.service.DrugImageURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, url)
}

// ListIngredients
// GET /api/v1/catalog/ingredients
func (h *Handler) ListIngredients(c *gin.Context) {
	ingredients, err := h.service.ListIngredients()
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ingredients": ingredients, "count": len(ingredients)})
}

// GET /api/v1/catalog/ingredients/:id
func (h *Handler) GetIngredient(c *gin.Context) {
	ingredient, err := h.service.GetIngredient(c.Param("id"))
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ingredient)
}

// =============================================
// 3. ADMIN ENDPOINTS
// =============================================

// POST /api/v1/admin/catalog/drugs
func (h *Handler) CreateDrug(c *gin.Context) {
	var req DrugRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	drug, err := h.service.CreateDrug(&req)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, drug)
}

// PUT /api/v1/admin/catalog/drugs/:id
func (h *Handler) UpdateDrug(c *gin.Context) {
	var req DrugRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	drug, err := h.service.UpdateDrug(c.Param("id"), &req)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, drug)
}

// DeleteDrug removes an unreferenced drug; ?drop_recipe=true removes its recipe too
// DELETE /api/v1/admin/catalog/drugs/:id
func (h *Handler) DeleteDrug(c *gin.Context) {
	if err := h.service.DeleteDrug(c.Param("id"), c.Query("drop_recipe") == "true"); err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PUT /api/v1/admin/catalog/drugs/:id/recipe
func (h *Handler) SetRecipe(c *gin.Context) {
	var req RecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	lines := make(map[string]int, len(req.Lines))
	for _, l := range req.Lines {
		lines[l.IngredientID] += l.Quantity
	}
	recipe, err := h.service.SetRecipe(c.Param("id"), lines)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drug_id": c.Param("id"), "recipe": recipe})
}

// UploadDrugImage accepts the raw image as the request body
// PUT /api/v1/admin/catalog/drugs/:id/image
func (h *Handler) UploadDrugImage(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxImageBytes)
	drug, err := h.service.UploadDrugImage(c.Request.Context(), c.Param("id"), c.ContentType(), body)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, drug)
}

// POST /api/v1/admin/catalog/ingredients
func (h *Handler) CreateIngredient(c *gin.Context) {
	var req IngredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	ingredient, err := h.service.CreateIngredient(&req)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ingredient)
}

// PUT /api/v1/admin/catalog/ingredients/:id
func (h *Handler) UpdateIngredient(c *gin.Context) {
	var req IngredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	ingredient, err := h.service.UpdateIngredient(c.Param("id"), &req)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ingredient)
}

// DELETE /api/v1/admin/catalog/ingredients/:id
func (h *Handler) DeleteIngredient(c *gin.Context) {
	if err := h.service.DeleteIngredient(c.Param("id")); err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
