package repository

import (
	"time"

	"gorm.io/gorm"

	"jsearch/internal/models"
)

// BatchRepository handles per-batch state for background OCR jobs.
type BatchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

func (r *BatchRepository) FindByID(id uint) (*models.JobBatch, error) {
	var batch models.JobBatch
	if err := r.db.First(&batch, id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

// NextPending returns the lowest-numbered pending batch of a job. The total
// order over batch_number is what lets an external driving loop retry this
// call freely: a batch that left pending is never returned again.
func (r *BatchRepository) NextPending(jobID string) (*models.JobBatch, error) {
	var batch models.JobBatch
	err := r.db.Where("job_id = ? AND status = ?", jobID, models.BatchStatusPending).
		Order("batch_number ASC").
		First(&batch).Error
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// MarkProcessing transitions a batch pending -> processing with a conditional
// update. Only one of two concurrent callers wins; the loser sees false and
// must treat the batch as already claimed.
func (r *BatchRepository) MarkProcessing(id uint) (bool, error) {
	res := r.db.Model(&models.JobBatch{}).
		Where("id = ? AND status = ?", id, models.BatchStatusPending).
		Update("status", models.BatchStatusProcessing)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Finish moves a batch to a terminal status and stamps processed_at.
func (r *BatchRepository) Finish(id uint, status, errMsg string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       status,
		"processed_at": &now,
	}
	if errMsg != "" {
		updates["error"] = errMsg
	}
	return r.db.Model(&models.JobBatch{}).Where("id = ?", id).Updates(updates).Error
}

// CancelPending flips all still-pending batches of a job to cancelled.
// Batches already terminal are left as historical record.
func (r *BatchRepository) CancelPending(jobID string) error {
	return r.db.Model(&models.JobBatch{}).
		Where("job_id = ? AND status = ?", jobID, models.BatchStatusPending).
		Update("status", models.BatchStatusCancelled).Error
}

// CountByStatus returns batch counts per status for a job.
func (r *BatchRepository) CountByStatus(jobID string) (map[string]int, error) {
	type row struct {
		Status string
		Count  int
	}
	var rows []row
	err := r.db.Model(&models.JobBatch{}).
		Select("status, COUNT(*) as count").
		Where("job_id = ?", jobID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, rw := range rows {
		counts[rw.Status] = rw.Count
	}
	return counts, nil
}

// ListByJob returns all batches of a job ordered by batch_number.
func (r *BatchRepository) ListByJob(jobID string) ([]models.JobBatch, error) {
	var batches []models.JobBatch
	err := r.db.Where("job_id = ?", jobID).
		Order("batch_number ASC").
		Find(&batches).Error
	return batches, err
}
