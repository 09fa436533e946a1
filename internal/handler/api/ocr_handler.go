package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"jsearch/internal/extractor"
	"jsearch/internal/models"
	"jsearch/internal/repository"
)

// OCRHandler runs synchronous single-file extraction outside the job queue,
// for manual reprocessing and spot checks.
type OCRHandler struct {
	backend   *extractor.Backend
	documents *repository.DocumentRepository
	pages     *repository.PageRepository
	logger    *zap.Logger
}

func NewOCRHandler(
	backend *extractor.Backend,
	documents *repository.DocumentRepository,
	pages *repository.PageRepository,
	logger *zap.Logger,
) *OCRHandler {
	return &OCRHandler{
		backend:   backend,
		documents: documents,
		pages:     pages,
		logger:    logger,
	}
}

type ocrRequest struct {
	FileID     string `json:"file_id"`
	FolderID   string `json:"folder_id"`
	FolderName string `json:"folder_name"`
	// Force reprocesses a file even when it is already indexed.
	Force bool `json:"force"`
}

// Extract runs OCR on one file and indexes the result immediately.
// POST /api/ocr
func (h *OCRHandler) Extract(c echo.Context) error {
	var req ocrRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.FileID == "" {
		return errorResponse(c, http.StatusBadRequest, "file_id is required")
	}

	if !req.Force {
		exists, err := h.documents.Exists(req.FileID)
		if err != nil {
			h.logger.Error("processed check failed", zap.Error(err))
			return errorResponse(c, http.StatusInternalServerError, "Internal error")
		}
		if exists {
			return errorResponse(c, http.StatusConflict, "File is already indexed, use force to reprocess")
		}
	}

	res, err := h.backend.Extract(c.Request().Context(), req.FileID)
	if err != nil {
		h.logger.Warn("manual extraction failed",
			zap.String("file_id", req.FileID), zap.Error(err))
		return errorResponse(c, http.StatusBadGateway, "Extraction failed: "+err.Error())
	}

	doc := &models.Document{
		FileID:     req.FileID,
		FolderID:   req.FolderID,
		FolderName: req.FolderName,
		Title:      res.FileName,
		FileURL:    res.FileURL,
		Content:    res.Content,
		OCRMethod:  res.OCRMethod,
		CharCount:  res.CharCount,
	}
	h.resolvePage(doc)

	if _, err := h.documents.Upsert(doc); err != nil {
		h.logger.Error("document upsert failed",
			zap.String("file_id", req.FileID), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Could not store document")
	}

	return successResponse(c, "File indexed", map[string]interface{}{
		"file_id":    doc.FileID,
		"title":      doc.Title,
		"char_count": doc.CharCount,
		"ocr_method": doc.OCRMethod,
		"page_url":   doc.PageURL,
	})
}

// DeleteDocument removes one file from the index so it can be reprocessed.
// DELETE /api/documents/:file_id
func (h *OCRHandler) DeleteDocument(c echo.Context) error {
	fileID := c.Param("file_id")
	deleted, err := h.documents.DeleteByFileID(fileID)
	if err != nil {
		h.logger.Error("document delete failed",
			zap.String("file_id", fileID), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Internal error")
	}
	if !deleted {
		return errorResponse(c, http.StatusNotFound, "Document not found")
	}
	return successResponse(c, "Document removed", nil)
}

// ListDocuments pages through the index.
// GET /api/documents?folder_id=...&page=1&per_page=20
func (h *OCRHandler) ListDocuments(c echo.Context) error {
	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	perPage := queryInt(c, "per_page", 20)
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	docs, err := h.documents.ListAll(c.QueryParam("folder_id"), perPage, (page-1)*perPage)
	if err != nil {
		h.logger.Error("document listing failed", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Internal error")
	}

	// Content is too heavy for listings.
	type docSummary struct {
		FileID     string `json:"file_id"`
		Title      string `json:"title"`
		FolderID   string `json:"folder_id,omitempty"`
		FolderName string `json:"folder_name,omitempty"`
		PageURL    string `json:"page_url,omitempty"`
		CharCount  int    `json:"char_count"`
		OCRMethod  string `json:"ocr_method,omitempty"`
	}
	out := make([]docSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, docSummary{
			FileID:     d.FileID,
			Title:      d.Title,
			FolderID:   d.FolderID,
			FolderName: d.FolderName,
			PageURL:    d.PageURL,
			CharCount:  d.CharCount,
			OCRMethod:  d.OCRMethod,
		})
	}
	return successResponse(c, "", map[string]interface{}{
		"documents": out,
		"page":      page,
		"per_page":  perPage,
	})
}

func (h *OCRHandler) resolvePage(doc *models.Document) {
	var page *models.Page
	var err error
	if extractor.IsMediaFileID(doc.FileID) {
		page, err = h.pages.FindByAttachment(extractor.MediaName(doc.FileID))
	} else {
		page, err = h.pages.FindByFileRef(doc.FileID)
	}
	if err != nil || page == nil {
		return
	}
	doc.PageID = &page.ID
	doc.PageTitle = page.Title
	doc.PageURL = page.URL
}
