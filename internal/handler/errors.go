package handler

import (
	"errors"
	"net/http"

	"estimator/internal/apperror"
	"estimator/internal/middleware"
	"estimator/internal/workflow"
	"estimator/pkg/response"

	"github.com/gin-gonic/gin"
)

// statusOf maps the apperror kinds onto HTTP. Anything untyped is a storage or programming fault.
func statusOf(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "Internal server error"
	}
	c.JSON(status, response.Error(status, msg))
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return false
	}
	return true
}

func actorOf(c *gin.Context) workflow.Actor {
	actor, _ := middleware.ActorFrom(c)
	return actor
}
