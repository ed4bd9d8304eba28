package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/pageza/foodgram/backend/internal/service"
)

type detailResponse struct {
	Detail string `json:"detail"`
}

var errNotFound = detailResponse{Detail: "Not found."}

// respondError writes the HTTP form of a service error. Anything that is
// not a domain error is logged and reported as a 500.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	var serr *service.Error
	if errors.As(err, &serr) {
		switch serr.Kind {
		case service.KindValidation:
			if serr.Field != "" {
				c.JSON(http.StatusBadRequest, gin.H{serr.Field: []string{serr.Message}})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"errors": serr.Message})
		case service.KindConflict:
			c.JSON(http.StatusBadRequest, gin.H{"errors": serr.Message})
		case service.KindNotFound:
			c.JSON(http.StatusNotFound, detailResponse{Detail: serr.Message})
		case service.KindPermission:
			c.JSON(http.StatusForbidden, detailResponse{Detail: serr.Message})
		case service.KindAuthentication:
			c.JSON(http.StatusUnauthorized, detailResponse{Detail: serr.Message})
		default:
			internalError(c, log, err)
		}
		return
	}
	internalError(c, log, err)
}

func internalError(c *gin.Context, log *zap.Logger, err error) {
	log.Error("request failed",
		zap.Error(err),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
	)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, detailResponse{Detail: "internal server error"})
}

// respondBindError reports a request body that could not be decoded or
// failed its binding tags.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string][]string)
		for _, fe := range verrs {
			name := topLevelField(fe)
			fields[name] = append(fields[name], service.DescribeFieldError(fe))
		}
		c.JSON(http.StatusBadRequest, fields)
		return
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		name := strings.SplitN(typeErr.Field, ".", 2)[0]
		c.JSON(http.StatusBadRequest, gin.H{name: []string{"Invalid value."}})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"errors": "Invalid request body."})
}

// topLevelField maps "RecipeRequest.ingredients[0].id" to "ingredients".
func topLevelField(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	if i := strings.IndexAny(ns, ".["); i >= 0 {
		ns = ns[:i]
	}
	if ns == "" {
		return fe.Field()
	}
	return ns
}
