package repository

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"jsearch/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Document{}, &models.Folder{}, &models.Page{},
		&models.OCRJob{}, &models.JobBatch{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func TestDocumentUpsert(t *testing.T) {
	repo := NewDocumentRepository(newTestDB(t))

	id1, err := repo.Upsert(&models.Document{
		FileID:  "f1",
		Title:   "first pass",
		Content: "old content",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	id2, err := repo.Upsert(&models.Document{
		FileID:    "f1",
		Title:     "second pass",
		Content:   "new content",
		CharCount: 11,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if id2 != id1 {
		t.Fatalf("upsert created a new row: %d != %d", id2, id1)
	}

	doc, err := repo.FindByFileID("f1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if doc.Title != "second pass" || doc.Content != "new content" {
		t.Errorf("row not replaced: %+v", doc)
	}

	exists, err := repo.Exists("f1")
	if err != nil || !exists {
		t.Errorf("Exists = %v, %v, want true", exists, err)
	}
	exists, err = repo.Exists("f2")
	if err != nil || exists {
		t.Errorf("Exists for unknown = %v, %v, want false", exists, err)
	}
}

func TestDocumentDelete(t *testing.T) {
	repo := NewDocumentRepository(newTestDB(t))
	if _, err := repo.Upsert(&models.Document{FileID: "f1", Title: "t"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	deleted, err := repo.DeleteByFileID("f1")
	if err != nil || !deleted {
		t.Fatalf("delete = %v, %v, want true", deleted, err)
	}
	deleted, err = repo.DeleteByFileID("f1")
	if err != nil || deleted {
		t.Fatalf("second delete = %v, %v, want false", deleted, err)
	}
}

func TestPageFindByFileRef(t *testing.T) {
	db := newTestDB(t)
	repo := NewPageRepository(db)

	pages := []models.Page{
		{
			Title:   "embedding page",
			URL:     "/docs",
			Content: `<a href="https://drive.google.com/file/d/abc123/view">doc</a>`,
			Status:  models.PageStatusPublished,
		},
		{
			Title:   "draft page",
			URL:     "/draft",
			Content: `https://drive.google.com/file/d/draft456/view`,
			Status:  "draft",
		},
	}
	for i := range pages {
		if err := db.Create(&pages[i]).Error; err != nil {
			t.Fatalf("seed page: %v", err)
		}
	}

	page, err := repo.FindByFileRef("abc123")
	if err != nil {
		t.Fatalf("FindByFileRef: %v", err)
	}
	if page == nil || page.Title != "embedding page" {
		t.Fatalf("page = %+v, want the embedding page", page)
	}

	// Drafts never resolve.
	page, err = repo.FindByFileRef("draft456")
	if err != nil {
		t.Fatalf("FindByFileRef draft: %v", err)
	}
	if page != nil {
		t.Fatalf("draft page resolved: %+v", page)
	}

	// Unknown files resolve to nothing, not an error.
	page, err = repo.FindByFileRef("missing")
	if err != nil || page != nil {
		t.Fatalf("missing ref = %+v, %v, want nil, nil", page, err)
	}
}

func TestFolderDefaultIsExclusive(t *testing.T) {
	repo := NewFolderRepository(newTestDB(t))

	if err := repo.Create(&models.Folder{FolderID: "a", FolderName: "A", IsDefault: true}); err != nil {
		t.Fatalf("create a: %v", err)
	}
	if err := repo.Create(&models.Folder{FolderID: "b", FolderName: "B", IsDefault: true}); err != nil {
		t.Fatalf("create b: %v", err)
	}

	def, err := repo.FindDefault()
	if err != nil {
		t.Fatalf("FindDefault: %v", err)
	}
	if def.FolderID != "b" {
		t.Fatalf("default = %s, want b", def.FolderID)
	}

	folders, err := repo.FindAll()
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	defaults := 0
	for _, f := range folders {
		if f.IsDefault {
			defaults++
		}
	}
	if defaults != 1 {
		t.Fatalf("default count = %d, want exactly 1", defaults)
	}
}
