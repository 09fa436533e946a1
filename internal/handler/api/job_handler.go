package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"jsearch/internal/extractor"
	"jsearch/internal/queue"
	"jsearch/internal/repository"
)

// JobHandler exposes the batch OCR job engine over HTTP. Batches are driven
// by the caller: start a job, then poll next/process until has_next is false.
type JobHandler struct {
	service   *queue.Service
	sweeper   *queue.Sweeper
	backend   *extractor.Backend
	folders   *repository.FolderRepository
	documents *repository.DocumentRepository
	logger    *zap.Logger
}

func NewJobHandler(
	service *queue.Service,
	sweeper *queue.Sweeper,
	backend *extractor.Backend,
	folders *repository.FolderRepository,
	documents *repository.DocumentRepository,
	logger *zap.Logger,
) *JobHandler {
	return &JobHandler{
		service:   service,
		sweeper:   sweeper,
		backend:   backend,
		folders:   folders,
		documents: documents,
		logger:    logger,
	}
}

type startFolderJobRequest struct {
	FolderID string `json:"folder_id"`
}

// StartFolderJob lists the PDFs of a drive folder and starts a job over them.
// Falls back to the default registered folder when none is given.
// POST /api/jobs/folder
func (h *JobHandler) StartFolderJob(c echo.Context) error {
	var req startFolderJobRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}

	folderID := req.FolderID
	if folderID == "" {
		folder, err := h.folders.FindDefault()
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errorResponse(c, http.StatusBadRequest, "folder_id is required (no default folder set)")
			}
			h.logger.Error("default folder lookup failed", zap.Error(err))
			return errorResponse(c, http.StatusInternalServerError, "Internal error")
		}
		folderID = folder.FolderID
	}

	files, err := h.backend.Client().ListFiles(c.Request().Context(), folderID)
	if err != nil {
		h.logger.Error("folder listing failed",
			zap.String("folder_id", folderID), zap.Error(err))
		return errorResponse(c, http.StatusBadGateway, "Could not list folder files")
	}

	fileIDs := make([]string, 0, len(files))
	for _, f := range files {
		fileIDs = append(fileIDs, f.FileID)
	}

	return h.startJob(c, folderID, fileIDs)
}

// StartMediaJob starts a job over the PDFs of the local media library.
// With ?unprocessed=1, files already indexed are left out up front.
// POST /api/jobs/media
func (h *JobHandler) StartMediaJob(c echo.Context) error {
	files, err := h.backend.ListMediaFiles()
	if err != nil {
		h.logger.Error("media listing failed", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Could not list media files")
	}

	unprocessedOnly := queryBool(c, "unprocessed")
	fileIDs := make([]string, 0, len(files))
	for _, f := range files {
		if unprocessedOnly {
			exists, err := h.documents.Exists(f.FileID)
			if err != nil {
				h.logger.Error("processed check failed",
					zap.String("file_id", f.FileID), zap.Error(err))
				return errorResponse(c, http.StatusInternalServerError, "Internal error")
			}
			if exists {
				continue
			}
		}
		fileIDs = append(fileIDs, f.FileID)
	}

	return h.startJob(c, queue.SourceMediaLibrary, fileIDs)
}

func (h *JobHandler) startJob(c echo.Context, sourceID string, fileIDs []string) error {
	job, created, err := h.service.CreateJob(sourceID, fileIDs)
	if err != nil {
		return jobErrorResponse(c, err)
	}

	data := map[string]interface{}{
		"job_id":      job.JobID,
		"source_id":   job.SourceID,
		"status":      job.Status,
		"total_files": job.TotalFiles,
		"created":     created,
	}
	if !created {
		return successResponse(c, "An active job for this source already exists", data)
	}
	return successResponse(c, "Job started", data)
}

// ListJobs returns active and recently completed jobs.
// GET /api/jobs
func (h *JobHandler) ListJobs(c echo.Context) error {
	jobs, err := h.service.ListActive()
	if err != nil {
		h.logger.Error("job listing failed", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Internal error")
	}
	return successResponse(c, "", map[string]interface{}{"jobs": jobs})
}

// GetStatus returns the summary status of a job. The cleanup sweep
// piggybacks on this read path.
// GET /api/jobs/:id
func (h *JobHandler) GetStatus(c echo.Context) error {
	h.sweeper.MaybeSweep(c.Request().Context())

	status, err := h.service.Status(c.Param("id"))
	if err != nil {
		return jobErrorResponse(c, err)
	}
	return successResponse(c, "", status)
}

// GetStatusDetailed returns status plus per-batch detail and recent
// documents.
// GET /api/jobs/:id/detail
func (h *JobHandler) GetStatusDetailed(c echo.Context) error {
	detail, err := h.service.StatusDetailed(c.Param("id"))
	if err != nil {
		return jobErrorResponse(c, err)
	}
	return successResponse(c, "", detail)
}

// Pause stops a job at the next batch boundary.
// POST /api/jobs/:id/pause
func (h *JobHandler) Pause(c echo.Context) error {
	if err := h.service.Pause(c.Param("id")); err != nil {
		return jobErrorResponse(c, err)
	}
	return successResponse(c, "Job paused", nil)
}

// Resume restarts a paused job and returns where to continue.
// POST /api/jobs/:id/resume
func (h *JobHandler) Resume(c echo.Context) error {
	info, err := h.service.Resume(c.Param("id"))
	if err != nil {
		return jobErrorResponse(c, err)
	}
	return successResponse(c, "Job resumed", info)
}

// Cancel aborts a job; its pending batches are cancelled.
// POST /api/jobs/:id/cancel
func (h *JobHandler) Cancel(c echo.Context) error {
	if err := h.service.Cancel(c.Param("id")); err != nil {
		return jobErrorResponse(c, err)
	}
	return successResponse(c, "Job cancelled", nil)
}

// Delete removes a job and its batches. ?force=1 makes deleting an unknown
// job succeed.
// DELETE /api/jobs/:id
func (h *JobHandler) Delete(c echo.Context) error {
	force := queryBool(c, "force")
	if err := h.service.Delete(c.Param("id"), force); err != nil {
		return jobErrorResponse(c, err)
	}
	return successResponse(c, "Job deleted", nil)
}

// NextBatch returns the next pending batch of a job, if any.
// GET /api/jobs/:id/next
func (h *JobHandler) NextBatch(c echo.Context) error {
	jobID := c.Param("id")

	// Unknown job must 404, not report "drained".
	if _, err := h.service.Status(jobID); err != nil {
		return jobErrorResponse(c, err)
	}

	batch, err := h.service.NextPendingBatch(jobID)
	if err != nil {
		h.logger.Error("next batch lookup failed",
			zap.String("job_id", jobID), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Internal error")
	}
	if batch == nil {
		return successResponse(c, "No pending batches", map[string]interface{}{
			"has_next": false,
		})
	}
	return successResponse(c, "", map[string]interface{}{
		"has_next":     true,
		"batch_id":     batch.ID,
		"batch_number": batch.BatchNumber,
	})
}

// ProcessBatch claims and processes one batch.
// POST /api/batches/:id/process
func (h *JobHandler) ProcessBatch(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid batch id")
	}

	result, err := h.service.ProcessBatch(c.Request().Context(), uint(id))
	if err != nil {
		if !errors.Is(err, queue.ErrBatchNotFound) && !errors.Is(err, queue.ErrBatchConflict) {
			h.logger.Error("batch processing failed",
				zap.Uint64("batch_id", id), zap.Error(err))
		}
		return jobErrorResponse(c, err)
	}
	return successResponse(c, "", result)
}
