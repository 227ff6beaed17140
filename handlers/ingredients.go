package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/secureboat/recipe-api/internal/ingredients"
	"github.com/secureboat/recipe-api/internal/models"
	"github.com/secureboat/recipe-api/pkg/middleware"
)

// IngredientHandler exposes the ingredient resource. All routes are
// owner-scoped; there is no public listing.
type IngredientHandler struct {
	svc     *ingredients.Service
	rootURL string
}

func NewIngredientHandler(svc *ingredients.Service, rootURL string) *IngredientHandler {
	return &IngredientHandler{svc: svc, rootURL: rootURL}
}

func (h *IngredientHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/ingredients")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Replace)
	g.PATCH("/:id", h.Patch)
	g.DELETE("/:id", h.Delete)
}

func (h *IngredientHandler) annotate(i *models.Ingredient) *models.Ingredient {
	i.Self = selfLink(h.rootURL, "ingredients", i.ID)
	return i
}

func (h *IngredientHandler) Create(c *gin.Context) {
	var in ingredients.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ingredient, err := h.svc.Create(c.Request.Context(), middleware.IdentityFrom(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.annotate(ingredient))
}

func (h *IngredientHandler) List(c *gin.Context) {
	items, info, err := h.svc.List(c.Request.Context(), middleware.IdentityFrom(c), c.Query("cursor"))
	if err != nil {
		respondError(c, err)
		return
	}
	for _, i := range items {
		h.annotate(i)
	}
	c.JSON(http.StatusOK, listEnvelope(c, h.rootURL, items, info))
}

func (h *IngredientHandler) Get(c *gin.Context) {
	ingredient, err := h.svc.Get(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.annotate(ingredient))
}

func (h *IngredientHandler) Replace(c *gin.Context) {
	var in ingredients.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ingredient, err := h.svc.Replace(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.annotate(ingredient))
}

func (h *IngredientHandler) Patch(c *gin.Context) {
	var in ingredients.PatchInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ingredient, err := h.svc.Patch(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.annotate(ingredient))
}

func (h *IngredientHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
