package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"jsearch/internal/models"
	"jsearch/internal/repository"
)

// FolderHandler manages the registry of drive folders documents are ingested
// from.
type FolderHandler struct {
	folders *repository.FolderRepository
	logger  *zap.Logger
}

func NewFolderHandler(folders *repository.FolderRepository, logger *zap.Logger) *FolderHandler {
	return &FolderHandler{folders: folders, logger: logger}
}

type folderRequest struct {
	FolderID   string `json:"folder_id"`
	FolderName string `json:"folder_name"`
	IsDefault  bool   `json:"is_default"`
}

// List returns all registered folders, default first.
// GET /api/folders
func (h *FolderHandler) List(c echo.Context) error {
	folders, err := h.folders.FindAll()
	if err != nil {
		h.logger.Error("folder listing failed", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Internal error")
	}
	return successResponse(c, "", map[string]interface{}{"folders": folders})
}

// Create registers a folder.
// POST /api/folders
func (h *FolderHandler) Create(c echo.Context) error {
	var req folderRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.FolderID == "" || req.FolderName == "" {
		return errorResponse(c, http.StatusBadRequest, "folder_id and folder_name are required")
	}

	if _, err := h.folders.FindByFolderID(req.FolderID); err == nil {
		return errorResponse(c, http.StatusConflict, "Folder already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		h.logger.Error("folder lookup failed", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Internal error")
	}

	folder := &models.Folder{
		FolderID:   req.FolderID,
		FolderName: req.FolderName,
		IsDefault:  req.IsDefault,
	}
	if err := h.folders.Create(folder); err != nil {
		h.logger.Error("folder create failed", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Could not create folder")
	}
	return successResponse(c, "Folder registered", folder)
}

// Update changes a folder's name or default flag.
// PUT /api/folders/:id
func (h *FolderHandler) Update(c echo.Context) error {
	folder, err := h.folders.FindByFolderID(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorResponse(c, http.StatusNotFound, "Folder not found")
		}
		h.logger.Error("folder lookup failed", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Internal error")
	}

	var req folderRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.FolderName != "" {
		folder.FolderName = req.FolderName
	}
	folder.IsDefault = req.IsDefault

	if err := h.folders.Update(folder); err != nil {
		h.logger.Error("folder update failed", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Could not update folder")
	}
	return successResponse(c, "Folder updated", folder)
}

// Delete unregisters a folder. Indexed documents keep their folder fields.
// DELETE /api/folders/:id
func (h *FolderHandler) Delete(c echo.Context) error {
	deleted, err := h.folders.Delete(c.Param("id"))
	if err != nil {
		h.logger.Error("folder delete failed", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Internal error")
	}
	if !deleted {
		return errorResponse(c, http.StatusNotFound, "Folder not found")
	}
	return successResponse(c, "Folder removed", nil)
}
