package repository

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"jsearch/internal/models"
)

// JobRepository handles background OCR jobs and their batches' creation and
// lifecycle rows.
type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// activeJobStatuses are the states that block a second job for the same source.
var activeJobStatuses = []string{models.JobStatusProcessing, models.JobStatusPaused}

// CreateWithBatches creates a job and its pending batches in one transaction.
// If an active job already exists for the source, it returns that job instead
// of creating a duplicate; the second return value reports whether a new job
// was created. The existing-job check runs inside the same transaction as the
// insert so two near-simultaneous creates cannot both insert.
func (r *JobRepository) CreateWithBatches(jobID, sourceID string, fileIDs []string, batchSize int) (*models.OCRJob, bool, error) {
	var job *models.OCRJob
	created := false

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.OCRJob
		err := tx.Where("source_id = ? AND status IN ?", sourceID, activeJobStatuses).
			Order("created_at DESC").
			First(&existing).Error
		if err == nil {
			job = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		job = &models.OCRJob{
			JobID:      jobID,
			SourceID:   sourceID,
			TotalFiles: len(fileIDs),
			Status:     models.JobStatusProcessing,
		}
		if err := tx.Create(job).Error; err != nil {
			return err
		}

		batches := make([]models.JobBatch, 0, (len(fileIDs)+batchSize-1)/batchSize)
		for i := 0; i < len(fileIDs); i += batchSize {
			end := i + batchSize
			if end > len(fileIDs) {
				end = len(fileIDs)
			}
			raw, err := json.Marshal(fileIDs[i:end])
			if err != nil {
				return err
			}
			batches = append(batches, models.JobBatch{
				JobID:       jobID,
				BatchNumber: i/batchSize + 1,
				FileIDs:     string(raw),
				Status:      models.BatchStatusPending,
			})
		}
		if err := tx.Create(&batches).Error; err != nil {
			return err
		}

		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return job, created, nil
}

func (r *JobRepository) FindByJobID(jobID string) (*models.OCRJob, error) {
	var job models.OCRJob
	if err := r.db.Where("job_id = ?", jobID).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepository) FindActiveBySource(sourceID string) (*models.OCRJob, error) {
	var job models.OCRJob
	err := r.db.Where("source_id = ? AND status IN ?", sourceID, activeJobStatuses).
		Order("created_at DESC").
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListActive returns jobs still of interest to operators: running, paused, and
// completed ones the sweeper has not reclaimed yet.
func (r *JobRepository) ListActive() ([]models.OCRJob, error) {
	var jobs []models.OCRJob
	err := r.db.Where("status IN ?", []string{
		models.JobStatusProcessing,
		models.JobStatusPaused,
		models.JobStatusCompleted,
	}).Order("created_at DESC").Find(&jobs).Error
	return jobs, err
}

// UpdateStatus transitions a job's status only when its current status is one
// of `from`. It reports whether the transition happened, so callers can
// distinguish a lost guard race from success.
func (r *JobRepository) UpdateStatus(jobID string, from []string, to string) (bool, error) {
	res := r.db.Model(&models.OCRJob{}).
		Where("job_id = ? AND status IN ?", jobID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AddCounters atomically bumps the job's processed/failed counters.
func (r *JobRepository) AddCounters(jobID string, processed, failed int) error {
	if processed == 0 && failed == 0 {
		// Still bump updated_at so the retention sweep sees activity.
		return r.db.Model(&models.OCRJob{}).
			Where("job_id = ?", jobID).
			Update("updated_at", time.Now()).Error
	}
	return r.db.Model(&models.OCRJob{}).
		Where("job_id = ?", jobID).
		Updates(map[string]interface{}{
			"processed_files": gorm.Expr("processed_files + ?", processed),
			"failed_files":    gorm.Expr("failed_files + ?", failed),
		}).Error
}

// DeleteWithBatches hard-deletes a job and all its batches. It reports whether
// a job row was actually removed.
func (r *JobRepository) DeleteWithBatches(jobID string) (bool, error) {
	deleted := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", jobID).Delete(&models.JobBatch{}).Error; err != nil {
			return err
		}
		res := tx.Where("job_id = ?", jobID).Delete(&models.OCRJob{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}

// DeleteFinishedBefore removes jobs (and their batches) in the given terminal
// statuses whose timestamp column is older than the cutoff. Used by the
// cleanup sweeper.
func (r *JobRepository) DeleteFinishedBefore(statuses []string, column string, cutoff time.Time) (int64, error) {
	var jobIDs []string
	err := r.db.Model(&models.OCRJob{}).
		Where("status IN ? AND "+column+" < ?", statuses, cutoff).
		Pluck("job_id", &jobIDs).Error
	if err != nil {
		return 0, err
	}
	if len(jobIDs) == 0 {
		return 0, nil
	}

	var deleted int64
	err = r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id IN ?", jobIDs).Delete(&models.JobBatch{}).Error; err != nil {
			return err
		}
		res := tx.Where("job_id IN ?", jobIDs).Delete(&models.OCRJob{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}
