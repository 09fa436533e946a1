// Package extractor provides the document extraction backends: a client for
// the remote OCR API and a built-in parser for digital PDFs.
package extractor

import (
	"context"
	"strings"
)

// MediaPrefix marks file IDs that come from the local media library rather
// than an external drive, so the two namespaces never collide in the index.
const MediaPrefix = "media_"

// MediaFileID builds the index key for an uploaded library file.
func MediaFileID(name string) string {
	return MediaPrefix + name
}

// IsMediaFileID reports whether a file ID refers to a library file.
func IsMediaFileID(fileID string) bool {
	return strings.HasPrefix(fileID, MediaPrefix)
}

// MediaName strips the library prefix from a file ID.
func MediaName(fileID string) string {
	return strings.TrimPrefix(fileID, MediaPrefix)
}

// Result is one extracted document.
type Result struct {
	FileID    string `json:"file_id"`
	FileName  string `json:"file_name"`
	FileURL   string `json:"pdf_url"`
	Content   string `json:"content"`
	CharCount int    `json:"char_count"`
	OCRMethod string `json:"ocr_method"`
}

// FileInfo is one listable file in a drive folder.
type FileInfo struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
}

// Extractor turns a file ID into extracted text. Implementations must be safe
// for sequential per-item calls from a batch processor.
type Extractor interface {
	Extract(ctx context.Context, fileID string) (*Result, error)
}
