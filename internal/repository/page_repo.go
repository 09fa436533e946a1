package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"jsearch/internal/models"
)

// PageRepository handles published site pages, used for page-link resolution
// on extracted documents and for global search.
type PageRepository struct {
	db *gorm.DB
}

func NewPageRepository(db *gorm.DB) *PageRepository {
	return &PageRepository{db: db}
}

func (r *PageRepository) FindByID(id uint) (*models.Page, error) {
	var page models.Page
	if err := r.db.First(&page, id).Error; err != nil {
		return nil, err
	}
	return &page, nil
}

// FindByFileRef looks for the newest published page whose content embeds the
// given drive file (by its share URL). Returns nil, nil when no page matches.
func (r *PageRepository) FindByFileRef(fileID string) (*models.Page, error) {
	pattern := "%drive.google.com/file/d/" + escapeLike(fileID) + "%"
	var page models.Page
	err := r.db.Where("status = ? AND content LIKE ?", models.PageStatusPublished, pattern).
		Order("updated_at DESC").
		First(&page).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// FindByAttachment resolves a media-library file to the page that references
// it by filename. Returns nil, nil when no page matches.
func (r *PageRepository) FindByAttachment(filename string) (*models.Page, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, nil
	}
	pattern := "%" + escapeLike(filename) + "%"
	var page models.Page
	err := r.db.Where("status = ? AND content LIKE ?", models.PageStatusPublished, pattern).
		Order("updated_at DESC").
		First(&page).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// Search runs a LIKE match over published pages not already represented by an
// indexed document.
func (r *PageRepository) Search(q string, limit, offset int) ([]models.Page, error) {
	var pages []models.Page
	like := "%" + escapeLike(q) + "%"
	err := r.db.Where("status = ? AND (title LIKE ? OR content LIKE ?)", models.PageStatusPublished, like, like).
		Where("id NOT IN (?)", r.db.Model(&models.Document{}).Select("page_id").Where("page_id IS NOT NULL")).
		Order("updated_at DESC").
		Limit(limit).Offset(offset).
		Find(&pages).Error
	return pages, err
}

func (r *PageRepository) CountSearch(q string) (int64, error) {
	var count int64
	like := "%" + escapeLike(q) + "%"
	err := r.db.Model(&models.Page{}).
		Where("status = ? AND (title LIKE ? OR content LIKE ?)", models.PageStatusPublished, like, like).
		Where("id NOT IN (?)", r.db.Model(&models.Document{}).Select("page_id").Where("page_id IS NOT NULL")).
		Count(&count).Error
	return count, err
}
