package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Guards are the authentication middlewares shared by every handler.
type Guards struct {
	Required gin.HandlerFunc
	Optional gin.HandlerFunc
}

// pathID parses the :id path parameter. A malformed id answers 404 since no
// resource can have it.
func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, errNotFound)
		return uuid.Nil, false
	}
	return id, true
}
