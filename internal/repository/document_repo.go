package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"jsearch/internal/models"
)

// DocumentRepository handles the search index: extracted document rows keyed
// by file_id.
type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Exists reports whether a file has already been processed.
func (r *DocumentRepository) Exists(fileID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Document{}).
		Where("file_id = ?", fileID).
		Count(&count).Error
	return count > 0, err
}

func (r *DocumentRepository) FindByFileID(fileID string) (*models.Document, error) {
	var doc models.Document
	if err := r.db.Where("file_id = ?", fileID).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// Upsert inserts a document or replaces the row with the same file_id.
// Returns the row ID.
func (r *DocumentRepository) Upsert(doc *models.Document) (uint, error) {
	var existing models.Document
	err := r.db.Where("file_id = ?", doc.FileID).First(&existing).Error
	switch {
	case err == nil:
		doc.ID = existing.ID
		doc.CreatedAt = existing.CreatedAt
		if err := r.db.Save(doc).Error; err != nil {
			return 0, err
		}
		return doc.ID, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := r.db.Create(doc).Error; err != nil {
			return 0, err
		}
		return doc.ID, nil
	default:
		return 0, err
	}
}

// Search runs a LIKE match over title, page title and content. LIKE rather
// than FULLTEXT because the index must handle Thai text, which FULLTEXT
// tokenization breaks on.
func (r *DocumentRepository) Search(q, folderID string, limit, offset int) ([]models.Document, error) {
	var docs []models.Document
	like := "%" + escapeLike(q) + "%"
	query := r.db.Where("title LIKE ? OR page_title LIKE ? OR content LIKE ?", like, like, like)
	if folderID != "" {
		query = query.Where("folder_id = ?", folderID)
	}
	err := query.Order("last_updated DESC").
		Limit(limit).Offset(offset).
		Find(&docs).Error
	return docs, err
}

func (r *DocumentRepository) CountSearch(q, folderID string) (int64, error) {
	var count int64
	like := "%" + escapeLike(q) + "%"
	query := r.db.Model(&models.Document{}).
		Where("title LIKE ? OR page_title LIKE ? OR content LIKE ?", like, like, like)
	if folderID != "" {
		query = query.Where("folder_id = ?", folderID)
	}
	err := query.Count(&count).Error
	return count, err
}

// RecentByFolder returns the latest indexed documents for a folder, for the
// detailed job-status view.
func (r *DocumentRepository) RecentByFolder(folderID string, limit int) ([]models.Document, error) {
	var docs []models.Document
	err := r.db.Select("file_id", "title", "char_count", "created_at").
		Where("folder_id = ?", folderID).
		Order("created_at DESC").
		Limit(limit).
		Find(&docs).Error
	return docs, err
}

// ListAll returns documents ordered by last update, for admin listings.
func (r *DocumentRepository) ListAll(folderID string, limit, offset int) ([]models.Document, error) {
	var docs []models.Document
	query := r.db.Order("last_updated DESC").Limit(limit).Offset(offset)
	if folderID != "" {
		query = query.Where("folder_id = ?", folderID)
	}
	err := query.Find(&docs).Error
	return docs, err
}

// IndexStats summarizes the document index.
type IndexStats struct {
	TotalDocuments int64      `json:"total_documents"`
	WithPages      int64      `json:"with_pages"`
	WithoutPages   int64      `json:"without_pages"`
	LastUpdated    *time.Time `json:"last_updated"`
}

func (r *DocumentRepository) Stats() (*IndexStats, error) {
	stats := &IndexStats{}
	if err := r.db.Model(&models.Document{}).Count(&stats.TotalDocuments).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&models.Document{}).Where("page_id IS NOT NULL").Count(&stats.WithPages).Error; err != nil {
		return nil, err
	}
	stats.WithoutPages = stats.TotalDocuments - stats.WithPages

	var last models.Document
	err := r.db.Select("last_updated").Order("last_updated DESC").First(&last).Error
	if err == nil {
		stats.LastUpdated = &last.UpdatedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return stats, nil
}

// DeleteByFileID removes one document from the index. Reports whether a row
// was removed.
func (r *DocumentRepository) DeleteByFileID(fileID string) (bool, error) {
	res := r.db.Where("file_id = ?", fileID).Delete(&models.Document{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// escapeLike escapes LIKE wildcards in user-supplied query text.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
