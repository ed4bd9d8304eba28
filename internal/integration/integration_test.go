package integration

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/router"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
	"github.com/pageza/foodgram/backend/internal/types"
)

const pixelPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

type stack struct {
	client *resty.Client
	db     *gorm.DB
}

// newStack serves the full router over PostgreSQL and Redis containers.
// recipeLimit caps recipe creation per user and hour.
func newStack(t *testing.T, recipeLimit int) *stack {
	t.Helper()
	db := testhelpers.SetupPostgresDB(t)
	rdb := testhelpers.SetupRedis(t)
	mediaDir := t.TempDir()

	cfg := &config.Config{
		JWTSecret:        "integration-secret",
		TokenTTL:         time.Hour,
		PageSize:         6,
		CORSOrigins:      "*",
		RecipeRateLimit:  recipeLimit,
		RecipeRateWindow: time.Hour,
	}
	engine, err := router.SetupRouter(router.Deps{
		Config:   cfg,
		DB:       db,
		Redis:    rdb,
		Images:   service.NewDiskImageStore(mediaDir, "/media"),
		MediaDir: mediaDir,
		Log:      zap.NewNop(),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(router.Handler(engine))
	t.Cleanup(srv.Close)

	return &stack{client: resty.New().SetBaseURL(srv.URL), db: db}
}

func (s *stack) signUpAndLogin(t *testing.T, username string) string {
	t.Helper()
	email := username + "@example.com"

	resp, err := s.client.R().SetBody(map[string]string{
		"email":      email,
		"username":   username,
		"first_name": "First",
		"last_name":  "Last",
		"password":   "Sup3r-secret",
	}).Post("/api/users/")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode(), resp.String())

	var token types.TokenResponse
	resp, err = s.client.R().
		SetBody(map[string]string{"email": email, "password": "Sup3r-secret"}).
		SetResult(&token).
		Post("/api/auth/token/login/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode(), resp.String())
	return token.AuthToken
}

func TestEndToEnd(t *testing.T) {
	s := newStack(t, 3)
	db := s.db

	egg := testhelpers.CreateIngredient(t, db, "Egg", "pcs")
	salt := testhelpers.CreateIngredient(t, db, "salt", "g")
	breakfast := testhelpers.CreateTag(t, db, "Breakfast", "#FF0000", "breakfast")

	authorToken := s.signUpAndLogin(t, "author")
	readerToken := s.signUpAndLogin(t, "reader")

	// Create a recipe with an image.
	var recipe types.RecipeResponse
	resp, err := s.client.R().
		SetAuthToken(authorToken).
		SetBody(map[string]interface{}{
			"name":         "Fried eggs",
			"text":         "Fry them.",
			"cooking_time": 10,
			"image":        pixelPNG,
			"tags":         []string{breakfast.ID.String()},
			"ingredients": []map[string]interface{}{
				{"id": egg.ID.String(), "amount": 2},
				{"id": salt.ID.String(), "amount": 3},
			},
		}).
		SetResult(&recipe).
		Post("/api/recipes/")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode(), resp.String())
	require.NotEmpty(t, recipe.Image)
	assert.Equal(t, "3", resp.Header().Get("X-RateLimit-Limit"))

	resp, err = s.client.R().Get(recipe.Image)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	// Anonymous detail view.
	var detail types.RecipeResponse
	resp, err = s.client.R().SetResult(&detail).Get(fmt.Sprintf("/api/recipes/%s", recipe.ID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Len(t, detail.Ingredients, 2)
	assert.Equal(t, "Breakfast", detail.Tags[0].Name)

	// The reader subscribes, favorites and fills the cart.
	resp, err = s.client.R().SetAuthToken(readerToken).
		Post(fmt.Sprintf("/api/users/%s/subscribe/", recipe.Author.ID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode(), resp.String())

	for _, collection := range []string{"favorite", "shopping_cart"} {
		resp, err = s.client.R().SetAuthToken(readerToken).
			Post(fmt.Sprintf("/api/recipes/%s/%s/", recipe.ID, collection))
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode(), collection)
	}

	var favorites types.Page[types.RecipeResponse]
	resp, err = s.client.R().SetAuthToken(readerToken).
		SetQueryParam("is_favorited", "1").
		SetResult(&favorites).
		Get("/api/recipes/")
	require.NoError(t, err)
	require.Equal(t, int64(1), favorites.Count)
	assert.True(t, favorites.Results[0].IsFavorited)
	assert.True(t, favorites.Results[0].IsInShoppingCart)

	resp, err = s.client.R().SetAuthToken(readerToken).Get("/api/recipes/download_shopping_cart/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "Egg - 2 pcs\nsalt - 3 g\n", resp.String())
	assert.Contains(t, resp.Header().Get("Content-Disposition"), "shoplist.txt")

	var subs types.Page[types.SubscriptionResponse]
	resp, err = s.client.R().SetAuthToken(readerToken).
		SetQueryParam("recipes_limit", "1").
		SetResult(&subs).
		Get("/api/users/subscriptions/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	require.Len(t, subs.Results, 1)
	assert.Equal(t, int64(1), subs.Results[0].RecipesCount)

	// Deleting the recipe empties the reader's collections.
	resp, err = s.client.R().SetAuthToken(readerToken).Delete(fmt.Sprintf("/api/recipes/%s/", recipe.ID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())

	resp, err = s.client.R().SetAuthToken(authorToken).Delete(fmt.Sprintf("/api/recipes/%s/", recipe.ID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())

	resp, err = s.client.R().SetAuthToken(readerToken).Get("/api/recipes/download_shopping_cart/")
	require.NoError(t, err)
	assert.Empty(t, resp.String())

	// Logout revokes the token through Redis.
	resp, err = s.client.R().SetAuthToken(readerToken).Post("/api/auth/token/logout/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())

	resp, err = s.client.R().SetAuthToken(readerToken).Get("/api/users/me/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
}

func TestRecipeCreationRateLimit(t *testing.T) {
	s := newStack(t, 2)
	salt := testhelpers.CreateIngredient(t, s.db, "salt", "g")
	tag := testhelpers.CreateTag(t, s.db, "Dinner", "#123456", "dinner")
	token := s.signUpAndLogin(t, "prolific")

	body := map[string]interface{}{
		"name":         "Soup",
		"text":         "Boil.",
		"cooking_time": 20,
		"tags":         []string{tag.ID.String()},
		"ingredients":  []map[string]interface{}{{"id": salt.ID.String(), "amount": 5}},
	}

	for i := 0; i < 2; i++ {
		resp, err := s.client.R().SetAuthToken(token).SetBody(body).Post("/api/recipes/")
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode(), resp.String())
	}

	resp, err := s.client.R().SetAuthToken(token).SetBody(body).Post("/api/recipes/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode())
	assert.NotEmpty(t, resp.Header().Get("Retry-After"))
	assert.Equal(t, "0", resp.Header().Get("X-RateLimit-Remaining"))

	var page types.Page[types.RecipeResponse]
	_, err = s.client.R().SetResult(&page).Get("/api/recipes/")
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Count)
}
