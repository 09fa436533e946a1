package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"jsearch/internal/models"
)

// Migrate ensures all jsearch tables exist.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		// Search index
		&models.Document{},
		&models.Folder{},
		&models.Page{},
		// Background OCR queue
		&models.OCRJob{},
		&models.JobBatch{},
	}
}
