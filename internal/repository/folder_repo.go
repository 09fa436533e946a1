package repository

import (
	"gorm.io/gorm"

	"jsearch/internal/models"
)

// FolderRepository handles registered drive folders.
type FolderRepository struct {
	db *gorm.DB
}

func NewFolderRepository(db *gorm.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

func (r *FolderRepository) FindAll() ([]models.Folder, error) {
	var folders []models.Folder
	err := r.db.Order("is_default DESC, folder_name ASC").Find(&folders).Error
	return folders, err
}

func (r *FolderRepository) FindByFolderID(folderID string) (*models.Folder, error) {
	var folder models.Folder
	if err := r.db.Where("folder_id = ?", folderID).First(&folder).Error; err != nil {
		return nil, err
	}
	return &folder, nil
}

func (r *FolderRepository) FindDefault() (*models.Folder, error) {
	var folder models.Folder
	if err := r.db.Where("is_default = ?", true).First(&folder).Error; err != nil {
		return nil, err
	}
	return &folder, nil
}

// Create inserts a folder. Only one folder may be the default, so a new
// default clears the previous one in the same transaction.
func (r *FolderRepository) Create(folder *models.Folder) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if folder.IsDefault {
			if err := clearDefault(tx); err != nil {
				return err
			}
		}
		return tx.Create(folder).Error
	})
}

func (r *FolderRepository) Update(folder *models.Folder) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if folder.IsDefault {
			if err := clearDefault(tx); err != nil {
				return err
			}
		}
		return tx.Save(folder).Error
	})
}

func (r *FolderRepository) Delete(folderID string) (bool, error) {
	res := r.db.Where("folder_id = ?", folderID).Delete(&models.Folder{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func clearDefault(tx *gorm.DB) error {
	return tx.Model(&models.Folder{}).
		Where("is_default = ?", true).
		Update("is_default", false).Error
}
