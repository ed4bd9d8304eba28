package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
)

// CatalogHandler serves the read-only tag and ingredient listings.
type CatalogHandler struct {
	tags        *service.TagService
	ingredients *service.IngredientService
	log         *zap.Logger
}

func NewCatalogHandler(tags *service.TagService, ingredients *service.IngredientService, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{tags: tags, ingredients: ingredients, log: log}
}

func (h *CatalogHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/tags", h.ListTags)
	router.GET("/tags/:id", h.GetTag)
	router.GET("/ingredients", h.ListIngredients)
	router.GET("/ingredients/:id", h.GetIngredient)
}

func (h *CatalogHandler) ListTags(c *gin.Context) {
	tags, err := h.tags.List(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	resp := make([]types.TagResponse, 0, len(tags))
	for _, t := range tags {
		resp = append(resp, toTagResponse(t))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CatalogHandler) GetTag(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	tag, err := h.tags.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toTagResponse(*tag))
}

// ListIngredients supports ?name= as a case-insensitive prefix search.
func (h *CatalogHandler) ListIngredients(c *gin.Context) {
	ingredients, err := h.ingredients.List(c.Request.Context(), service.IngredientFilter{Name: c.Query("name")})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	resp := make([]types.IngredientResponse, 0, len(ingredients))
	for _, i := range ingredients {
		resp = append(resp, toIngredientResponse(i))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CatalogHandler) GetIngredient(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ingredient, err := h.ingredients.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toIngredientResponse(*ingredient))
}
