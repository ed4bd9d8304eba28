package router

import (
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/api"
	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/service"
)

// Deps are the collaborators the HTTP layer is built from. Redis and Images
// may be nil: token revocation then lives in memory, the recipe rate limit
// is off and image uploads are rejected.
type Deps struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client
	Images service.ImageStore
	// MediaDir is served under /media when images are stored on disk.
	MediaDir string
	Log      *zap.Logger
}

var registerOnce sync.Once

// registerBindingValidators teaches gin's validator the custom tags and to
// report json field names.
func registerBindingValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		err = service.RegisterValidators(v)
	})
	return err
}

// SetupRouter configures the application routes
func SetupRouter(d Deps) (*gin.Engine, error) {
	if err := registerBindingValidators(); err != nil {
		return nil, err
	}

	var revoked service.TokenBlacklist = service.NewMemoryTokenBlacklist()
	if d.Redis != nil {
		revoked = service.NewRedisTokenBlacklist(d.Redis)
	}

	authService := service.NewAuthService(d.DB, d.Config.JWTSecret, d.Config.TokenTTL, revoked)
	guards := api.Guards{
		Required: middleware.AuthMiddleware(authService),
		Optional: middleware.OptionalAuth(authService),
	}

	var createLimit gin.HandlerFunc
	if d.Redis != nil && d.Config.RecipeRateLimit > 0 {
		limiter := middleware.NewRecipeCreationRateLimiter(d.Redis, d.Config.RecipeRateLimit, d.Config.RecipeRateWindow, d.Log)
		createLimit = limiter.RateLimitMiddleware()
	}

	router := gin.New()
	router.RedirectTrailingSlash = false
	router.Use(
		middleware.Recovery(d.Log),
		middleware.RequestLogger(d.Log),
		middleware.Metrics(),
		middleware.CORS(d.Config.AllowedOrigins()),
	)
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
	})

	router.GET("/health", api.NewHealthHandler(d.DB, d.Redis, d.Log).Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if d.MediaDir != "" {
		router.Static("/media", d.MediaDir)
	}

	v := router.Group("/api")

	api.NewAuthHandler(authService, d.Log).RegisterRoutes(v, guards)
	api.NewCatalogHandler(
		service.NewTagService(d.DB),
		service.NewIngredientService(d.DB),
		d.Log,
	).RegisterRoutes(v)
	api.NewRecipeHandler(
		service.NewRecipeService(d.DB, d.Images, d.Log),
		service.NewCollectionService(d.DB),
		service.NewShoppingListService(d.DB),
		d.Config.PageSize,
		d.Log,
	).RegisterRoutes(v, guards, createLimit)
	api.NewUserHandler(
		service.NewUserService(d.DB),
		service.NewSubscriptionService(d.DB),
		d.Config.PageSize,
		d.Log,
	).RegisterRoutes(v, guards)

	return router, nil
}

// Handler wraps the router with the request rewrites that must happen
// before routing.
func Handler(router *gin.Engine) http.Handler {
	return middleware.TrimTrailingSlash(router)
}
