package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
)

// UserHandler serves accounts and subscriptions.
type UserHandler struct {
	users         *service.UserService
	subscriptions *service.SubscriptionService
	pageSize      int
	log           *zap.Logger
}

func NewUserHandler(users *service.UserService, subscriptions *service.SubscriptionService, pageSize int, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, subscriptions: subscriptions, pageSize: pageSize, log: log}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup, guards Guards) {
	users := router.Group("/users")
	{
		users.POST("", h.Create)
		users.GET("", guards.Optional, h.List)
		users.GET("/me", guards.Required, h.Me)
		users.POST("/set_password", guards.Required, h.SetPassword)
		users.GET("/subscriptions", guards.Required, h.Subscriptions)
		users.GET("/:id", guards.Optional, h.Get)
		users.POST("/:id/subscribe", guards.Required, h.Subscribe)
		users.DELETE("/:id/subscribe", guards.Required, h.Unsubscribe)
	}
}

func (h *UserHandler) Create(c *gin.Context) {
	var req types.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.users.Create(c.Request.Context(), &req, false)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.log.Info("user registered", zap.String("user_id", user.ID.String()))
	c.JSON(http.StatusCreated, types.CreatedUserResponse{
		Email:     user.Email,
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	})
}

func (h *UserHandler) List(c *gin.Context) {
	p, ok := parsePage(c, h.pageSize)
	if !ok {
		return
	}
	users, total, err := h.users.List(c.Request.Context(), p.Offset(), p.Limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if !checkPage(c, p, total) {
		return
	}

	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	subscribed, err := h.users.SubscribedTo(c.Request.Context(), middleware.UserID(c), ids)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	results := make([]types.UserResponse, 0, len(users))
	for i := range users {
		results = append(results, toUserResponse(&users[i], subscribed[users[i].ID]))
	}
	c.JSON(http.StatusOK, newPage(c, p, total, results))
}

func (h *UserHandler) Me(c *gin.Context) {
	h.respondUser(c, *middleware.UserID(c))
}

func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	h.respondUser(c, id)
}

func (h *UserHandler) respondUser(c *gin.Context, id uuid.UUID) {
	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	subscribed, err := h.users.SubscribedTo(c.Request.Context(), middleware.UserID(c), []uuid.UUID{id})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user, subscribed[id]))
}

func (h *UserHandler) SetPassword(c *gin.Context) {
	var req types.SetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := h.users.SetPassword(c.Request.Context(), *middleware.UserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) Subscriptions(c *gin.Context) {
	p, ok := parsePage(c, h.pageSize)
	if !ok {
		return
	}
	entries, total, err := h.subscriptions.List(c.Request.Context(), *middleware.UserID(c), p.Offset(), p.Limit, recipesLimit(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if !checkPage(c, p, total) {
		return
	}

	results := make([]types.SubscriptionResponse, 0, len(entries))
	for _, e := range entries {
		results = append(results, toSubscriptionResponse(e))
	}
	c.JSON(http.StatusOK, newPage(c, p, total, results))
}

func (h *UserHandler) Subscribe(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	entry, err := h.subscriptions.Subscribe(c.Request.Context(), *middleware.UserID(c), id, recipesLimit(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, toSubscriptionResponse(*entry))
}

func (h *UserHandler) Unsubscribe(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.subscriptions.Unsubscribe(c.Request.Context(), *middleware.UserID(c), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// recipesLimit reads ?recipes_limit=. Missing, malformed and negative values
// mean no limit.
func recipesLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("recipes_limit"))
	if err != nil || n < 0 {
		return -1
	}
	return n
}
