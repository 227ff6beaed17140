package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/secureboat/recipe-api/internal/users"
	"github.com/secureboat/recipe-api/pkg/middleware"
)

// UserHandler exposes cached user profiles and whole-account deletion.
type UserHandler struct {
	svc *users.Service
}

func NewUserHandler(svc *users.Service) *UserHandler {
	return &UserHandler{svc: svc}
}

func (h *UserHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/users")
	g.GET("", h.List)
	g.DELETE("/:id", h.DeleteAccount)
	rg.GET("/userinfo", h.UserInfo)
}

// List returns every cached profile. Requires a verified caller.
func (h *UserHandler) List(c *gin.Context) {
	if _, err := middleware.IdentityFrom(c).RequireSubject(); err != nil {
		respondError(c, err)
		return
	}
	items, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// DeleteAccount removes the caller's profile plus everything they own. The
// path id must match the caller's own subject.
func (h *UserHandler) DeleteAccount(c *gin.Context) {
	if err := h.svc.DeleteAccount(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UserInfo returns the caller's cached profile.
func (h *UserHandler) UserInfo(c *gin.Context) {
	sub, err := middleware.IdentityFrom(c).RequireSubject()
	if err != nil {
		respondError(c, err)
		return
	}
	u, err := h.svc.GetBySub(c.Request.Context(), sub)
	if err != nil {
		respondError(c, err)
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no profile for this subject"})
		return
	}
	c.JSON(http.StatusOK, u)
}
