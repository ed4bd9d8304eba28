package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/pageza/foodgram/backend/internal/mocks"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
)

func newAuthRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", mw, func(c *gin.Context) {
		id := UserID(c)
		if id == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, id.String())
	})
	return router
}

func serve(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	validator := new(mocks.MockTokenValidator)
	validator.On("ValidateToken", mock.Anything, "good").Return(&types.TokenClaims{UserID: userID}, nil)
	validator.On("ValidateToken", mock.Anything, "expired").Return(nil, service.ErrTokenExpired)
	validator.On("ValidateToken", mock.Anything, "revoked").Return(nil, service.ErrTokenRevoked)

	router := newAuthRouter(AuthMiddleware(validator))

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"bearer", "Bearer good", http.StatusOK, userID.String()},
		{"token prefix", "Token good", http.StatusOK, userID.String()},
		{"missing", "", http.StatusUnauthorized, `{"detail":"Authentication credentials were not provided."}`},
		{"bad format", "Basic good", http.StatusUnauthorized, `{"detail":"Invalid authorization header format."}`},
		{"expired", "Bearer expired", http.StatusUnauthorized, `{"detail":"Token has expired."}`},
		{"revoked", "Token revoked", http.StatusUnauthorized, `{"detail":"Token has been revoked."}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(router, tt.header)
			assert.Equal(t, tt.status, rr.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.body, rr.Body.String())
			} else {
				assert.JSONEq(t, tt.body, rr.Body.String())
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	userID := uuid.New()
	validator := new(mocks.MockTokenValidator)
	validator.On("ValidateToken", mock.Anything, "good").Return(&types.TokenClaims{UserID: userID}, nil)
	validator.On("ValidateToken", mock.Anything, "bad").Return(nil, service.ErrInvalidToken)

	router := newAuthRouter(OptionalAuth(validator))

	rr := serve(router, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "anonymous", rr.Body.String())

	rr = serve(router, "Token good")
	assert.Equal(t, userID.String(), rr.Body.String())

	rr = serve(router, "Token bad")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	validator.AssertExpectations(t)
}
