// Package api contains the HTTP handlers of the management and search API.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"jsearch/internal/models"
	"jsearch/internal/queue"
)

func successResponse(c echo.Context, msg string, data interface{}) error {
	return c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: msg,
		Data:    data,
	})
}

func errorResponse(c echo.Context, status int, msg string) error {
	return c.JSON(status, models.APIResponse{
		Success: false,
		Message: msg,
	})
}

// jobErrorResponse maps queue errors to HTTP statuses.
func jobErrorResponse(c echo.Context, err error) error {
	var transition *queue.InvalidTransitionError
	switch {
	case errors.Is(err, queue.ErrJobNotFound):
		return errorResponse(c, http.StatusNotFound, "Job not found")
	case errors.Is(err, queue.ErrBatchNotFound):
		return errorResponse(c, http.StatusNotFound, "Batch not found")
	case errors.Is(err, queue.ErrBatchConflict):
		return errorResponse(c, http.StatusConflict, "Batch is already claimed or finished")
	case errors.Is(err, queue.ErrEmptyFileList):
		return errorResponse(c, http.StatusBadRequest, "No files to process")
	case errors.As(err, &transition):
		return errorResponse(c, http.StatusConflict, transition.Error())
	default:
		return errorResponse(c, http.StatusInternalServerError, "Internal error")
	}
}

func queryInt(c echo.Context, name string, defaultVal int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}
	return v
}

func queryBool(c echo.Context, name string) bool {
	switch c.QueryParam(name) {
	case "1", "true", "yes":
		return true
	}
	return false
}
