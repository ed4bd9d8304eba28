package api

import (
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/internal/types"
)

const maxPageSize = 100

// pageRequest is the parsed ?page=&limit= pair.
type pageRequest struct {
	Page  int
	Limit int
}

func (p pageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// parsePage reads page and limit. A malformed page answers 404, as does a
// page past the end once the total is known (see checkPage).
func parsePage(c *gin.Context, defaultSize int) (pageRequest, bool) {
	p := pageRequest{Page: 1, Limit: defaultSize}

	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			p.Limit = n
		}
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	if p.Limit < 1 {
		p.Limit = 1
	}

	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		// Page*Limit must stay representable; no such page can exist anyway.
		if err != nil || n < 1 || n >= math.MaxInt/p.Limit {
			c.JSON(http.StatusNotFound, detailResponse{Detail: "Invalid page."})
			return p, false
		}
		p.Page = n
	}
	return p, true
}

func checkPage(c *gin.Context, p pageRequest, total int64) bool {
	if p.Page > 1 && int64(p.Offset()) >= total {
		c.JSON(http.StatusNotFound, detailResponse{Detail: "Invalid page."})
		return false
	}
	return true
}

func newPage[T any](c *gin.Context, p pageRequest, total int64, results []T) types.Page[T] {
	if results == nil {
		results = []T{}
	}
	page := types.Page[T]{Count: total, Results: results}
	if int64(p.Page*p.Limit) < total {
		next := pageURL(c, p.Page+1)
		page.Next = &next
	}
	if p.Page > 1 {
		prev := pageURL(c, p.Page-1)
		page.Previous = &prev
	}
	return page
}

// pageURL rebuilds the request URL with another page number. Page 1 drops
// the parameter.
func pageURL(c *gin.Context, page int) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	q := c.Request.URL.Query()
	if page == 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     c.Request.Host,
		Path:     c.Request.URL.Path,
		RawQuery: q.Encode(),
	}
	return u.String()
}
