package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
)

type RecipeHandler struct {
	recipes     *service.RecipeService
	collections *service.CollectionService
	shopping    *service.ShoppingListService
	pageSize    int
	log         *zap.Logger
}

func NewRecipeHandler(
	recipes *service.RecipeService,
	collections *service.CollectionService,
	shopping *service.ShoppingListService,
	pageSize int,
	log *zap.Logger,
) *RecipeHandler {
	return &RecipeHandler{
		recipes:     recipes,
		collections: collections,
		shopping:    shopping,
		pageSize:    pageSize,
		log:         log,
	}
}

// RegisterRoutes mounts the recipe routes. createLimit, when not nil, runs
// before recipe creation.
func (h *RecipeHandler) RegisterRoutes(router *gin.RouterGroup, guards Guards, createLimit gin.HandlerFunc) {
	create := []gin.HandlerFunc{guards.Required}
	if createLimit != nil {
		create = append(create, createLimit)
	}
	create = append(create, h.Create)

	recipes := router.Group("/recipes")
	{
		recipes.GET("", guards.Optional, h.List)
		recipes.POST("", create...)
		recipes.GET("/download_shopping_cart", guards.Required, h.DownloadShoppingCart)
		recipes.GET("/:id", guards.Optional, h.Get)
		recipes.PATCH("/:id", guards.Required, h.Update)
		recipes.DELETE("/:id", guards.Required, h.Delete)
		recipes.POST("/:id/favorite", guards.Required, h.Favorite)
		recipes.DELETE("/:id/favorite", guards.Required, h.Unfavorite)
		recipes.POST("/:id/shopping_cart", guards.Required, h.AddToCart)
		recipes.DELETE("/:id/shopping_cart", guards.Required, h.RemoveFromCart)
	}
}

// List supports ?tags= (repeatable slug), ?author=, ?is_favorited= and
// ?is_in_shopping_cart= (0 or 1) plus page and limit.
func (h *RecipeHandler) List(c *gin.Context) {
	p, ok := parsePage(c, h.pageSize)
	if !ok {
		return
	}

	filter := service.RecipeFilter{
		Tags:             c.QueryArray("tags"),
		IsFavorited:      queryFlag(c, "is_favorited"),
		IsInShoppingCart: queryFlag(c, "is_in_shopping_cart"),
		Offset:           p.Offset(),
		Limit:            p.Limit,
	}
	if raw := c.Query("author"); raw != "" {
		author, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"author": []string{"Select a valid author."}})
			return
		}
		filter.AuthorID = &author
	}

	details, total, err := h.recipes.List(c.Request.Context(), middleware.UserID(c), filter)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if !checkPage(c, p, total) {
		return
	}

	results := make([]types.RecipeResponse, 0, len(details))
	for _, d := range details {
		results = append(results, toRecipeResponse(d))
	}
	c.JSON(http.StatusOK, newPage(c, p, total, results))
}

func (h *RecipeHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	detail, err := h.recipes.Get(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toRecipeResponse(*detail))
}

func (h *RecipeHandler) Create(c *gin.Context) {
	var req types.RecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	detail, err := h.recipes.Create(c.Request.Context(), *middleware.UserID(c), service.RecipeInputFromRequest(&req))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, toRecipeResponse(*detail))
}

func (h *RecipeHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req types.RecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	detail, err := h.recipes.Update(c.Request.Context(), *middleware.UserID(c), id, service.RecipeInputFromRequest(&req))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toRecipeResponse(*detail))
}

func (h *RecipeHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.recipes.Delete(c.Request.Context(), *middleware.UserID(c), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RecipeHandler) Favorite(c *gin.Context) {
	h.addToCollection(c, h.collections.AddFavorite)
}

func (h *RecipeHandler) Unfavorite(c *gin.Context) {
	h.removeFromCollection(c, h.collections.RemoveFavorite)
}

func (h *RecipeHandler) AddToCart(c *gin.Context) {
	h.addToCollection(c, h.collections.AddToCart)
}

func (h *RecipeHandler) RemoveFromCart(c *gin.Context) {
	h.removeFromCollection(c, h.collections.RemoveFromCart)
}

type (
	addFunc    func(ctx context.Context, userID, recipeID uuid.UUID) (*models.Recipe, error)
	removeFunc func(ctx context.Context, userID, recipeID uuid.UUID) error
)

func (h *RecipeHandler) addToCollection(c *gin.Context, add addFunc) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	recipe, err := add(c.Request.Context(), *middleware.UserID(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, toShortRecipe(recipe))
}

func (h *RecipeHandler) removeFromCollection(c *gin.Context, remove removeFunc) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := remove(c.Request.Context(), *middleware.UserID(c), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DownloadShoppingCart sends the aggregated shopping list as a text file.
func (h *RecipeHandler) DownloadShoppingCart(c *gin.Context) {
	items, err := h.shopping.Build(c.Request.Context(), *middleware.UserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", service.ShoppingListFilename))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", service.Render(items))
}

// queryFlag reads a 0/1 (or false/true) query parameter. Anything else is
// treated as absent.
func queryFlag(c *gin.Context, name string) *bool {
	var v bool
	switch c.Query(name) {
	case "1", "true":
		v = true
	case "0", "false":
		v = false
	default:
		return nil
	}
	return &v
}
