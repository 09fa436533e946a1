// Package queue implements the batch OCR job engine: job lifecycle, batch
// claiming and the per-item processing loop. Batches are driven by an
// external caller (the API consumer polls for the next pending batch and
// submits it), so every operation here is a single short database-backed
// step rather than a long-running worker.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"jsearch/internal/extractor"
	"jsearch/internal/models"
	"jsearch/internal/repository"
)

// BatchSize is the fixed number of files per batch.
const BatchSize = 5

// SourceMediaLibrary is the source_id of jobs built from the local media
// library instead of a drive folder.
const SourceMediaLibrary = "media_library"

const mediaLibraryName = "Media Library"

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrBatchNotFound = errors.New("batch not found")
	ErrEmptyFileList = errors.New("file list is empty")
	// ErrBatchConflict means the batch already left pending: another caller
	// claimed it, or it is terminal.
	ErrBatchConflict = errors.New("batch is not pending")
)

// InvalidTransitionError reports a lifecycle call rejected because of the
// job's current status.
type InvalidTransitionError struct {
	JobID   string
	Current string
	Action  string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s job %s in status %s", e.Action, e.JobID, e.Current)
}

// Service is the job engine.
type Service struct {
	jobs      *repository.JobRepository
	batches   *repository.BatchRepository
	documents *repository.DocumentRepository
	pages     *repository.PageRepository
	folders   *repository.FolderRepository
	backend   extractor.Extractor
	logger    *zap.Logger
}

func NewService(
	jobs *repository.JobRepository,
	batches *repository.BatchRepository,
	documents *repository.DocumentRepository,
	pages *repository.PageRepository,
	folders *repository.FolderRepository,
	backend extractor.Extractor,
	logger *zap.Logger,
) *Service {
	return &Service{
		jobs:      jobs,
		batches:   batches,
		documents: documents,
		pages:     pages,
		folders:   folders,
		backend:   backend,
		logger:    logger,
	}
}

// JobStatus is the summary view of one job.
type JobStatus struct {
	JobID          string         `json:"job_id"`
	SourceID       string         `json:"source_id"`
	Status         string         `json:"status"`
	TotalFiles     int            `json:"total_files"`
	ProcessedFiles int            `json:"processed_files"`
	FailedFiles    int            `json:"failed_files"`
	Progress       float64        `json:"progress"`
	Batches        map[string]int `json:"batches"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// BatchSummary is one batch row in the detailed status view.
type BatchSummary struct {
	BatchID     uint       `json:"batch_id"`
	BatchNumber int        `json:"batch_number"`
	FileCount   int        `json:"file_count"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// RecentDocument is one recently indexed file in the detailed status view.
type RecentDocument struct {
	FileID    string    `json:"file_id"`
	Title     string    `json:"title"`
	CharCount int       `json:"char_count"`
	IndexedAt time.Time `json:"indexed_at"`
}

// JobStatusDetail extends JobStatus with per-batch and per-document detail.
type JobStatusDetail struct {
	JobStatus
	RemainingFiles  int              `json:"remaining_files"`
	BatchList       []BatchSummary   `json:"batch_list"`
	RecentDocuments []RecentDocument `json:"recent_documents"`
}

// ResumeInfo tells the driving loop where to pick up after a resume.
type ResumeInfo struct {
	JobID       string `json:"job_id"`
	Status      string `json:"status"`
	NextBatchID *uint  `json:"next_batch_id,omitempty"`
	HasNext     bool   `json:"has_next"`
}

// Item result statuses for ProcessBatch.
const (
	ItemSuccess = "success"
	ItemSkipped = "skipped"
	ItemError   = "error"
)

// ItemResult is the outcome for one file of a batch.
type ItemResult struct {
	FileID    string `json:"file_id"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	CharCount int    `json:"char_count,omitempty"`
	OCRMethod string `json:"ocr_method,omitempty"`
	PageURL   string `json:"page_url,omitempty"`
}

// BatchResult is the outcome of one ProcessBatch call.
type BatchResult struct {
	BatchID     uint         `json:"batch_id"`
	JobID       string       `json:"job_id"`
	BatchNumber int          `json:"batch_number"`
	Status      string       `json:"status"`
	Processed   int          `json:"processed"`
	Skipped     int          `json:"skipped"`
	Failed      int          `json:"failed"`
	HasNext     bool         `json:"has_next"`
	JobStatus   string       `json:"job_status"`
	Results     []ItemResult `json:"results"`
}

// CreateJob starts a job over the given files, split into fixed-size batches.
// When an active job already exists for the source it is returned instead and
// the second return value is false.
func (s *Service) CreateJob(sourceID string, fileIDs []string) (*models.OCRJob, bool, error) {
	if len(fileIDs) == 0 {
		return nil, false, ErrEmptyFileList
	}

	jobID := "job_" + uuid.NewString()
	job, created, err := s.jobs.CreateWithBatches(jobID, sourceID, fileIDs, BatchSize)
	if err != nil {
		return nil, false, err
	}

	if created {
		s.logger.Info("job created",
			zap.String("job_id", job.JobID),
			zap.String("source_id", sourceID),
			zap.Int("total_files", job.TotalFiles))
	} else {
		s.logger.Info("active job reused",
			zap.String("job_id", job.JobID),
			zap.String("source_id", sourceID))
	}
	return job, created, nil
}

// Status returns the summary status of a job.
func (s *Service) Status(jobID string) (*JobStatus, error) {
	job, err := s.findJob(jobID)
	if err != nil {
		return nil, err
	}

	counts, err := s.batches.CountByStatus(jobID)
	if err != nil {
		return nil, err
	}
	return s.buildStatus(job, counts), nil
}

// StatusDetailed returns the full status view with batch summaries and the
// most recently indexed documents of the job's source.
func (s *Service) StatusDetailed(jobID string) (*JobStatusDetail, error) {
	job, err := s.findJob(jobID)
	if err != nil {
		return nil, err
	}

	list, err := s.batches.ListByJob(jobID)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	summaries := make([]BatchSummary, 0, len(list))
	for _, b := range list {
		counts[b.Status]++

		var ids []string
		_ = json.Unmarshal([]byte(b.FileIDs), &ids)
		summaries = append(summaries, BatchSummary{
			BatchID:     b.ID,
			BatchNumber: b.BatchNumber,
			FileCount:   len(ids),
			Status:      b.Status,
			Error:       b.Error,
			ProcessedAt: b.ProcessedAt,
		})
	}

	recent := []RecentDocument{}
	docs, err := s.documents.RecentByFolder(job.SourceID, 5)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		recent = append(recent, RecentDocument{
			FileID:    d.FileID,
			Title:     d.Title,
			CharCount: d.CharCount,
			IndexedAt: d.CreatedAt,
		})
	}

	detail := &JobStatusDetail{
		JobStatus:       *s.buildStatus(job, counts),
		BatchList:       summaries,
		RecentDocuments: recent,
	}
	// Failed files stay countable as remaining; only successes reduce it.
	detail.RemainingFiles = job.TotalFiles - job.ProcessedFiles
	if detail.RemainingFiles < 0 {
		detail.RemainingFiles = 0
	}
	return detail, nil
}

// Pause stops a processing job at the next batch boundary. Only valid from
// processing.
func (s *Service) Pause(jobID string) error {
	ok, err := s.jobs.UpdateStatus(jobID, []string{models.JobStatusProcessing}, models.JobStatusPaused)
	if err != nil {
		return err
	}
	if ok {
		s.logger.Info("job paused", zap.String("job_id", jobID))
		return nil
	}

	job, err := s.findJob(jobID)
	if err != nil {
		return err
	}
	return &InvalidTransitionError{JobID: jobID, Current: job.Status, Action: "pause"}
}

// Resume puts a paused job back to processing and tells the caller where to
// continue. Resuming a job already processing is a no-op success.
func (s *Service) Resume(jobID string) (*ResumeInfo, error) {
	job, err := s.findJob(jobID)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case models.JobStatusPaused:
		ok, err := s.jobs.UpdateStatus(jobID, []string{models.JobStatusPaused}, models.JobStatusProcessing)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Lost the guard race: the job left paused between the read and
			// the update.
			current, err := s.findJob(jobID)
			if err != nil {
				return nil, err
			}
			if current.Status != models.JobStatusProcessing {
				return nil, &InvalidTransitionError{JobID: jobID, Current: current.Status, Action: "resume"}
			}
		}
		s.logger.Info("job resumed", zap.String("job_id", jobID))
	case models.JobStatusProcessing:
		// Already running, nothing to change.
	default:
		return nil, &InvalidTransitionError{JobID: jobID, Current: job.Status, Action: "resume"}
	}

	info := &ResumeInfo{JobID: jobID, Status: models.JobStatusProcessing}
	next, err := s.NextPendingBatch(jobID)
	if err != nil {
		return nil, err
	}
	if next != nil {
		info.NextBatchID = &next.ID
		info.HasNext = true
	}
	return info, nil
}

// Cancel aborts a processing or paused job. Pending batches flip to
// cancelled; batches already terminal keep their status as history.
func (s *Service) Cancel(jobID string) error {
	ok, err := s.jobs.UpdateStatus(jobID,
		[]string{models.JobStatusProcessing, models.JobStatusPaused},
		models.JobStatusCancelled)
	if err != nil {
		return err
	}
	if !ok {
		job, err := s.findJob(jobID)
		if err != nil {
			return err
		}
		return &InvalidTransitionError{JobID: jobID, Current: job.Status, Action: "cancel"}
	}

	if err := s.batches.CancelPending(jobID); err != nil {
		return err
	}
	s.logger.Info("job cancelled", zap.String("job_id", jobID))
	return nil
}

// Delete removes a job and its batches in any status. With force, deleting a
// job that does not exist succeeds.
func (s *Service) Delete(jobID string, force bool) error {
	deleted, err := s.jobs.DeleteWithBatches(jobID)
	if err != nil {
		return err
	}
	if !deleted && !force {
		return ErrJobNotFound
	}
	if deleted {
		s.logger.Info("job deleted", zap.String("job_id", jobID))
	}
	return nil
}

// ListActive returns jobs an operator may still act on, newest first.
func (s *Service) ListActive() ([]models.OCRJob, error) {
	return s.jobs.ListActive()
}

// NextPendingBatch returns the next batch to process, or nil when the job has
// no pending batches left.
func (s *Service) NextPendingBatch(jobID string) (*models.JobBatch, error) {
	batch, err := s.batches.NextPending(jobID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// ProcessBatch claims one pending batch and runs extraction for each of its
// files. Files already indexed are skipped without touching counters. The
// batch fails as a whole only when nothing succeeded and at least one file
// errored; a mixed outcome is still a completed batch. When the job has no
// pending batches left it completes, failed files notwithstanding.
func (s *Service) ProcessBatch(ctx context.Context, batchID uint) (*BatchResult, error) {
	batch, err := s.batches.FindByID(batchID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, err
	}

	job, err := s.findJob(batch.JobID)
	if err != nil {
		return nil, err
	}

	claimed, err := s.batches.MarkProcessing(batch.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrBatchConflict
	}

	var fileIDs []string
	if err := json.Unmarshal([]byte(batch.FileIDs), &fileIDs); err != nil {
		msg := "malformed file list: " + err.Error()
		if ferr := s.batches.Finish(batch.ID, models.BatchStatusFailed, msg); ferr != nil {
			return nil, ferr
		}
		s.logger.Error("batch payload unreadable",
			zap.String("job_id", batch.JobID),
			zap.Uint("batch_id", batch.ID))
		return s.finishResult(batch, job, models.BatchStatusFailed, nil, 0, 0, 0)
	}

	folderID, folderName := s.sourceFolder(job.SourceID)

	// Once claimed, the batch runs to completion even if the driving caller
	// disconnects. A cancelled request context would otherwise fail every
	// remaining item and record them as permanent failures, since the batch
	// never re-enters pending.
	ctx = context.WithoutCancel(ctx)

	results := make([]ItemResult, 0, len(fileIDs))
	var success, skipped, failed int
	var itemErrors []string

	for _, fileID := range fileIDs {
		exists, err := s.documents.Exists(fileID)
		if err != nil {
			return nil, err
		}
		if exists {
			skipped++
			results = append(results, ItemResult{
				FileID:  fileID,
				Status:  ItemSkipped,
				Message: "already processed",
			})
			continue
		}

		res, err := s.backend.Extract(ctx, fileID)
		if err != nil {
			failed++
			itemErrors = append(itemErrors, fileID+": "+err.Error())
			results = append(results, ItemResult{
				FileID:  fileID,
				Status:  ItemError,
				Message: err.Error(),
			})
			s.logger.Warn("file extraction failed",
				zap.String("job_id", batch.JobID),
				zap.String("file_id", fileID),
				zap.Error(err))
			continue
		}

		doc := &models.Document{
			FileID:     fileID,
			FolderID:   folderID,
			FolderName: folderName,
			Title:      res.FileName,
			FileURL:    res.FileURL,
			Content:    res.Content,
			OCRMethod:  res.OCRMethod,
			CharCount:  res.CharCount,
		}
		s.resolvePage(doc)

		if _, err := s.documents.Upsert(doc); err != nil {
			return nil, err
		}

		success++
		results = append(results, ItemResult{
			FileID:    fileID,
			Status:    ItemSuccess,
			CharCount: doc.CharCount,
			OCRMethod: doc.OCRMethod,
			PageURL:   doc.PageURL,
		})
	}

	batchStatus := models.BatchStatusCompleted
	if success == 0 && failed > 0 {
		batchStatus = models.BatchStatusFailed
	}
	if err := s.batches.Finish(batch.ID, batchStatus, strings.Join(itemErrors, "; ")); err != nil {
		return nil, err
	}

	if err := s.jobs.AddCounters(batch.JobID, success, failed); err != nil {
		return nil, err
	}

	return s.finishResult(batch, job, batchStatus, results, success, skipped, failed)
}

// finishResult computes has_next, drives the job to completed when drained,
// and assembles the caller-facing result.
func (s *Service) finishResult(batch *models.JobBatch, job *models.OCRJob, batchStatus string, results []ItemResult, success, skipped, failed int) (*BatchResult, error) {
	next, err := s.NextPendingBatch(batch.JobID)
	if err != nil {
		return nil, err
	}

	jobStatus := job.Status
	if next == nil {
		ok, err := s.jobs.UpdateStatus(batch.JobID,
			[]string{models.JobStatusProcessing}, models.JobStatusCompleted)
		if err != nil {
			return nil, err
		}
		if ok {
			jobStatus = models.JobStatusCompleted
			s.logger.Info("job completed", zap.String("job_id", batch.JobID))
		}
	}

	if results == nil {
		results = []ItemResult{}
	}
	return &BatchResult{
		BatchID:     batch.ID,
		JobID:       batch.JobID,
		BatchNumber: batch.BatchNumber,
		Status:      batchStatus,
		Processed:   success,
		Skipped:     skipped,
		Failed:      failed,
		HasNext:     next != nil,
		JobStatus:   jobStatus,
		Results:     results,
	}, nil
}

// sourceFolder maps a job source to the folder fields stored on documents.
func (s *Service) sourceFolder(sourceID string) (string, string) {
	if sourceID == SourceMediaLibrary {
		return SourceMediaLibrary, mediaLibraryName
	}
	folder, err := s.folders.FindByFolderID(sourceID)
	if err != nil {
		return sourceID, ""
	}
	return sourceID, folder.FolderName
}

// resolvePage links the document to the published page that embeds it, when
// one exists. Resolution failures are not fatal; the document just stays
// unlinked.
func (s *Service) resolvePage(doc *models.Document) {
	var page *models.Page
	var err error
	if extractor.IsMediaFileID(doc.FileID) {
		page, err = s.pages.FindByAttachment(extractor.MediaName(doc.FileID))
	} else {
		page, err = s.pages.FindByFileRef(doc.FileID)
	}
	if err != nil {
		s.logger.Warn("page resolution failed",
			zap.String("file_id", doc.FileID),
			zap.Error(err))
		return
	}
	if page == nil {
		return
	}
	doc.PageID = &page.ID
	doc.PageTitle = page.Title
	doc.PageURL = page.URL
}

func (s *Service) buildStatus(job *models.OCRJob, counts map[string]int) *JobStatus {
	return &JobStatus{
		JobID:          job.JobID,
		SourceID:       job.SourceID,
		Status:         job.Status,
		TotalFiles:     job.TotalFiles,
		ProcessedFiles: job.ProcessedFiles,
		FailedFiles:    job.FailedFiles,
		Progress:       progress(job.ProcessedFiles, job.TotalFiles),
		Batches:        counts,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}
}

func (s *Service) findJob(jobID string) (*models.OCRJob, error) {
	job, err := s.jobs.FindByJobID(jobID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// progress is percent complete rounded to one decimal place.
func progress(processed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(processed)/float64(total)*1000) / 10
}
