package models

import "time"

// Job status values. A job starts at processing and drains to completed even
// when items failed; `failed` exists for historical rows only.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusPaused     = "paused"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusCancelled  = "cancelled"
)

// Batch status values. Transitions are monotonic: a batch never re-enters
// pending once it left.
const (
	BatchStatusPending    = "pending"
	BatchStatusProcessing = "processing"
	BatchStatusCompleted  = "completed"
	BatchStatusFailed     = "failed"
	BatchStatusCancelled  = "cancelled"
)

// OCRJob is one background OCR run over a source (a drive folder or the
// media library), split into fixed-size batches processed by an external
// driving loop.
type OCRJob struct {
	ID             uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	JobID          string    `gorm:"column:job_id;size:255;uniqueIndex:unique_job_id" json:"job_id"`
	SourceID       string    `gorm:"column:source_id;size:255;index:idx_ocr_jobs_source" json:"source_id"`
	TotalFiles     int       `gorm:"column:total_files;default:0" json:"total_files"`
	ProcessedFiles int       `gorm:"column:processed_files;default:0" json:"processed_files"`
	FailedFiles    int       `gorm:"column:failed_files;default:0" json:"failed_files"`
	Status         string    `gorm:"column:status;size:20;index:idx_ocr_jobs_status" json:"status"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (OCRJob) TableName() string {
	return "ocr_jobs"
}

// JobBatch is an ordered chunk of a job's files, the unit of one
// process-batch call. FileIDs holds a JSON array preserving input order.
type JobBatch struct {
	ID          uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	JobID       string     `gorm:"column:job_id;size:255;index:idx_job_batches_job" json:"job_id"`
	BatchNumber int        `gorm:"column:batch_number" json:"batch_number"`
	FileIDs     string     `gorm:"column:file_ids;type:longtext" json:"file_ids"`
	Status      string     `gorm:"column:status;size:20;index:idx_job_batches_status" json:"status"`
	Error       string     `gorm:"column:error;type:text" json:"error,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	ProcessedAt *time.Time `gorm:"column:processed_at" json:"processed_at,omitempty"`
}

func (JobBatch) TableName() string {
	return "job_batches"
}
