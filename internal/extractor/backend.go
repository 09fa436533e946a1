package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"jsearch/internal/config"
)

const (
	methodAPI    = "api"
	methodParser = "parser"

	ocrMethodAPI    = "ocr_api"
	ocrMethodParser = "pdf_parser"
)

// Backend routes extraction requests to the right implementation: drive file
// IDs go to the OCR API, library files go either to the API upload endpoint
// or to the local PDF parser depending on configuration.
type Backend struct {
	client    *Client
	parser    *Parser
	uploadDir string
	method    string
	logger    *zap.Logger
}

func NewBackend(client *Client, cfg *config.MediaConfig, logger *zap.Logger) *Backend {
	return &Backend{
		client:    client,
		parser:    NewParser(),
		uploadDir: cfg.UploadDir,
		method:    cfg.Method,
		logger:    logger,
	}
}

// Extract implements Extractor.
func (b *Backend) Extract(ctx context.Context, fileID string) (*Result, error) {
	if IsMediaFileID(fileID) {
		return b.extractMedia(ctx, fileID)
	}
	return b.client.ExtractFile(ctx, fileID)
}

func (b *Backend) extractMedia(ctx context.Context, fileID string) (*Result, error) {
	name := MediaName(fileID)
	path := filepath.Join(b.uploadDir, filepath.Base(name))
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("media file %s: %w", name, err)
	}

	if b.method == methodAPI {
		res, err := b.client.ExtractUpload(ctx, path, name)
		if err != nil {
			return nil, err
		}
		res.FileID = fileID
		res.OCRMethod = ocrMethodAPI
		return res, nil
	}

	content, err := b.parser.Parse(ctx, path)
	if err != nil {
		return nil, err
	}
	if content == "" {
		b.logger.Warn("pdf has no text layer", zap.String("file", name))
	}
	return &Result{
		FileID:    fileID,
		FileName:  name,
		Content:   content,
		CharCount: len(content),
		OCRMethod: ocrMethodParser,
	}, nil
}

// ListMediaFiles scans the upload directory for PDF files and returns their
// library file IDs.
func (b *Backend) ListMediaFiles() ([]FileInfo, error) {
	entries, err := os.ReadDir(b.uploadDir)
	if err != nil {
		return nil, fmt.Errorf("read upload dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) != ".pdf" {
			continue
		}
		files = append(files, FileInfo{
			FileID:   MediaFileID(e.Name()),
			FileName: e.Name(),
		})
	}
	return files, nil
}

// Client exposes the underlying OCR API client for folder listing and health
// checks.
func (b *Backend) Client() *Client {
	return b.client
}
