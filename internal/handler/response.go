package handler

import (
	"errors"
	"net/http"

	"todotree/internal/service"

	"github.com/gin-gonic/gin"
)

// Response is the envelope every endpoint answers with. Data is set on
// success, Error on failure.
type Response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

func respondSuccess(c *gin.Context, code int, data any) {
	c.JSON(code, Response{Status: "success", Data: data})
}

// respondFail answers 4xx with status "fail" and 5xx with status "error".
func respondFail(c *gin.Context, code int, msg string) {
	status := "fail"
	if code >= http.StatusInternalServerError {
		status = "error"
	}
	c.AbortWithStatusJSON(code, Response{Status: status, Error: msg})
}

// respondError maps a service error to its HTTP status. Storage failures
// never leak their cause to the client.
func respondError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		respondFail(c, http.StatusBadRequest, verr.Error())
	case errors.Is(err, service.ErrNotFound):
		respondFail(c, http.StatusNotFound, "Task not found")
	case errors.Is(err, service.ErrForbidden):
		respondFail(c, http.StatusForbidden, "You don't have permission to access this task")
	case errors.Is(err, service.ErrDepthExceeded),
		errors.Is(err, service.ErrChildLimitExceeded):
		respondFail(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrGenerationExhausted):
		respondFail(c, http.StatusTooManyRequests, err.Error())
	default:
		_ = c.Error(err)
		respondFail(c, http.StatusInternalServerError, "Internal server error")
	}
}
