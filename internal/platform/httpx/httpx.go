// Package httpx holds the gin helpers shared by the telemetry handlers: error rendering,
// request binding, pagination and time-range query parsing.
package httpx

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atqamz/kogase-engine/internal/platform/apperr"
	"github.com/atqamz/kogase-engine/internal/platform/page"
)

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error writes err as an ErrorBody with the status from apperr.HTTPStatus and aborts the chain.
// Server-side failures are logged; their message is not echoed to the client.
func Error(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.Printf("http: %s %s: %v", c.Request.Method, c.FullPath(), err)
		msg = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, ErrorBody{Code: apperr.Code(err), Message: msg})
}

// BindJSON binds the request body into obj, running validator tags.
// On failure it writes a 400 and returns false.
func BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		Error(c, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err))
		return false
	}
	return true
}

// Page reads the 1-based "page" and "pageSize" query parameters, normalized by cfg.
func Page(c *gin.Context, cfg page.Config) page.Request {
	return cfg.Normalize(page.Request{
		Page: queryInt(c, "page", 1),
		Size: queryInt(c, "pageSize", cfg.DefaultSize),
	})
}

// TimeRange parses the required RFC 3339 "start" and "end" query parameters.
func TimeRange(c *gin.Context) (time.Time, time.Time, error) {
	start, err := QueryTime(c, "start")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := QueryTime(c, "end")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end is before start", apperr.ErrInvalidArgument)
	}
	return start, end, nil
}

// QueryTime parses a required RFC 3339 query parameter as UTC.
func QueryTime(c *gin.Context, key string) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", apperr.ErrInvalidArgument, key)
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", apperr.ErrInvalidArgument, key, err)
	}
	return t.UTC(), nil
}

// QueryDate parses an optional YYYY-MM-DD query parameter; def is returned when it is absent.
func QueryDate(c *gin.Context, key string, def time.Time) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", apperr.ErrInvalidArgument, key, err)
	}
	return t, nil
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
