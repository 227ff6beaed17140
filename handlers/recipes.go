package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/secureboat/recipe-api/internal/auth"
	"github.com/secureboat/recipe-api/internal/models"
	"github.com/secureboat/recipe-api/internal/recipes"
	"github.com/secureboat/recipe-api/internal/storage"
	"github.com/secureboat/recipe-api/pkg/middleware"
)

// RecipeHandler exposes the recipe resource and its ingredient links.
type RecipeHandler struct {
	svc     *recipes.Service
	photos  *storage.PhotoStore
	rootURL string
}

func NewRecipeHandler(svc *recipes.Service, photos *storage.PhotoStore, rootURL string) *RecipeHandler {
	return &RecipeHandler{svc: svc, photos: photos, rootURL: rootURL}
}

func (h *RecipeHandler) Register(rg *gin.RouterGroup) {
	r := rg.Group("/recipes")
	r.POST("", h.Create)
	r.GET("", h.List)
	r.GET("/:id", h.Get)
	r.PUT("/:id", h.Replace)
	r.PATCH("/:id", h.Patch)
	r.DELETE("/:id", h.Delete)
	r.POST("/:id/ingredients/:ingredientID", h.Link)
	r.PUT("/:id/ingredients/:ingredientID", h.SetQuantity)
	r.DELETE("/:id/ingredients/:ingredientID", h.Unlink)
	r.PUT("/:id/photo", h.UploadPhoto)
	r.GET("/:id/photo", h.DownloadPhoto)
}

func (h *RecipeHandler) annotate(r *models.Recipe) *models.Recipe {
	r.Self = selfLink(h.rootURL, "recipes", r.ID)
	return r
}

func (h *RecipeHandler) Create(c *gin.Context) {
	var in recipes.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	recipe, err := h.svc.Create(c.Request.Context(), middleware.IdentityFrom(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.annotate(recipe))
}

func (h *RecipeHandler) List(c *gin.Context) {
	items, info, err := h.svc.List(c.Request.Context(), middleware.IdentityFrom(c), c.Query("cursor"))
	if err != nil {
		respondError(c, err)
		return
	}
	for _, r := range items {
		h.annotate(r)
	}
	c.JSON(http.StatusOK, listEnvelope(c, h.rootURL, items, info))
}

func (h *RecipeHandler) Get(c *gin.Context) {
	recipe, err := h.svc.Get(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.annotate(recipe))
}

func (h *RecipeHandler) Replace(c *gin.Context) {
	var in recipes.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	recipe, err := h.svc.Replace(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.annotate(recipe))
}

func (h *RecipeHandler) Patch(c *gin.Context) {
	var in recipes.PatchInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	recipe, err := h.svc.Patch(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.annotate(recipe))
}

func (h *RecipeHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type linkRequest struct {
	Quantity string `json:"quantity"`
}

func (h *RecipeHandler) Link(c *gin.Context) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.svc.Link(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), c.Param("ingredientID"), req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "linked"})
}

func (h *RecipeHandler) SetQuantity(c *gin.Context) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.svc.SetQuantity(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), c.Param("ingredientID"), req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "quantity updated"})
}

func (h *RecipeHandler) Unlink(c *gin.Context) {
	err := h.svc.Unlink(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), c.Param("ingredientID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// writableRecipe loads the recipe and checks the caller owns it. Photo
// routes bypass the service write path, so ownership is enforced here.
func (h *RecipeHandler) writableRecipe(c *gin.Context) (*models.Recipe, bool) {
	ident := middleware.IdentityFrom(c)
	sub, err := ident.RequireSubject()
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	recipe, err := h.svc.Get(c.Request.Context(), ident, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if recipe.OwnerID != sub {
		respondError(c, fmt.Errorf("recipe %s: %w", c.Param("id"), auth.ErrForbidden))
		return nil, false
	}
	return recipe, true
}

func (h *RecipeHandler) UploadPhoto(c *gin.Context) {
	if h.photos == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "photo storage not configured"})
		return
	}
	recipe, ok := h.writableRecipe(c)
	if !ok {
		return
	}
	contentType := c.GetHeader("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := h.photos.UploadPhoto(c.Request.Context(), recipe.ID, c.Request.Body, c.Request.ContentLength, contentType); err != nil {
		respondError(c, err)
		return
	}
	url, err := h.photos.PhotoURL(c.Request.Context(), recipe.ID, 15*time.Minute)
	if err != nil {
		// stored fine, locator is best-effort
		c.JSON(http.StatusCreated, gin.H{"message": "photo stored"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "photo stored", "url": url})
}

func (h *RecipeHandler) DownloadPhoto(c *gin.Context) {
	if h.photos == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "photo storage not configured"})
		return
	}
	recipe, err := h.svc.Get(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	obj, err := h.photos.DownloadPhoto(c.Request.Context(), recipe.ID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no photo stored for this recipe"})
		return
	}
	defer obj.Close()
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, obj)
}
