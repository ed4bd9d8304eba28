package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/router"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
)

const testSecret = "test-secret"

type testEnv struct {
	t       *testing.T
	db      *gorm.DB
	handler http.Handler
	auth    *service.AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testhelpers.SetupTestDB(t)
	cfg := &config.Config{
		JWTSecret:   testSecret,
		TokenTTL:    time.Hour,
		PageSize:    6,
		CORSOrigins: "http://localhost:3000",
	}
	engine, err := router.SetupRouter(router.Deps{Config: cfg, DB: db, Log: zap.NewNop()})
	require.NoError(t, err)

	return &testEnv{
		t:       t,
		db:      db,
		handler: router.Handler(engine),
		auth:    service.NewAuthService(db, testSecret, time.Hour, nil),
	}
}

func (e *testEnv) token(user *models.User) string {
	e.t.Helper()
	token, err := e.auth.GenerateToken(user)
	require.NoError(e.t, err)
	return token
}

// do sends body as JSON. token may be empty for anonymous requests.
func (e *testEnv) do(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	e.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

// recipePayload builds a create/update body.
func recipePayload(name string, cookingTime int, tags []string, amounts map[string]int) map[string]interface{} {
	ingredients := make([]map[string]interface{}, 0, len(amounts))
	for id, amount := range amounts {
		ingredients = append(ingredients, map[string]interface{}{"id": id, "amount": amount})
	}
	return map[string]interface{}{
		"name":         name,
		"text":         "Mix everything.",
		"cooking_time": cookingTime,
		"tags":         tags,
		"ingredients":  ingredients,
	}
}
