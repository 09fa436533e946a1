package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"jsearch/internal/search"
)

// SearchHandler exposes the public search endpoint and index stats.
type SearchHandler struct {
	service *search.Service
	logger  *zap.Logger
}

func NewSearchHandler(service *search.Service, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{service: service, logger: logger}
}

// Query runs a keyword search.
// GET /api/search?q=...&folder_id=...&page=1&per_page=10&global=1
func (h *SearchHandler) Query(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return errorResponse(c, http.StatusBadRequest, "q is required")
	}

	resp, err := h.service.Query(c.Request().Context(), search.Request{
		Query:    q,
		FolderID: c.QueryParam("folder_id"),
		Page:     queryInt(c, "page", 1),
		PerPage:  queryInt(c, "per_page", 10),
		Global:   queryBool(c, "global"),
	})
	if err != nil {
		h.logger.Error("search failed", zap.String("query", q), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Search failed")
	}
	return successResponse(c, "", resp)
}

// Stats returns index totals.
// GET /api/search/stats
func (h *SearchHandler) Stats(c echo.Context) error {
	stats, err := h.service.Stats()
	if err != nil {
		h.logger.Error("stats failed", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Internal error")
	}
	return successResponse(c, "", stats)
}
