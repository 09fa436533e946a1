package models

import "time"

// Document is one indexed file: the canonical extraction result and the
// processed-file marker in one row. Presence of a file_id here means "already
// processed, do not reprocess".
type Document struct {
	ID         uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	FileID     string    `gorm:"column:file_id;size:255;uniqueIndex:unique_file_id" json:"file_id"`
	FolderID   string    `gorm:"column:folder_id;size:255;index:idx_documents_folder" json:"folder_id,omitempty"`
	FolderName string    `gorm:"column:folder_name;size:255" json:"folder_name,omitempty"`
	PageID     *uint     `gorm:"column:page_id;index:idx_documents_page" json:"page_id,omitempty"`
	PageTitle  string    `gorm:"column:page_title;size:255" json:"page_title,omitempty"`
	PageURL    string    `gorm:"column:page_url;type:text" json:"page_url,omitempty"`
	Title      string    `gorm:"column:title;size:255" json:"title"`
	FileURL    string    `gorm:"column:file_url;type:text" json:"file_url"`
	Content    string    `gorm:"column:content;type:longtext" json:"content"`
	OCRMethod  string    `gorm:"column:ocr_method;size:50" json:"ocr_method,omitempty"`
	CharCount  int       `gorm:"column:char_count;default:0" json:"char_count"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:last_updated;autoUpdateTime;index:idx_documents_updated" json:"last_updated"`
}

func (Document) TableName() string {
	return "documents"
}

// Folder is a registered drive folder that documents can be ingested from.
type Folder struct {
	ID         uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	FolderID   string    `gorm:"column:folder_id;size:255;uniqueIndex:unique_folder_id" json:"folder_id"`
	FolderName string    `gorm:"column:folder_name;size:255" json:"folder_name"`
	IsDefault  bool      `gorm:"column:is_default;default:false" json:"is_default"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Folder) TableName() string {
	return "folders"
}

// Page is a published site page or post. Extracted documents link back to the
// page that embeds them, and global search unions pages with documents.
type Page struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title     string    `gorm:"column:title;size:255" json:"title"`
	URL       string    `gorm:"column:url;type:text" json:"url"`
	Content   string    `gorm:"column:content;type:longtext" json:"content"`
	Status    string    `gorm:"column:status;size:20;index:idx_pages_status" json:"status"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Page) TableName() string {
	return "pages"
}

// PageStatusPublished marks pages visible to search and link resolution.
const PageStatusPublished = "published"
