package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"jsearch/internal/config"
)

// Client talks to the external OCR API.
type Client struct {
	r        *resty.Client
	language string
}

// NewClient creates an OCR API client with the configured base URL, key and
// timeout.
func NewClient(cfg *config.OCRConfig) *Client {
	r := resty.New().
		SetBaseURL(cfg.URL).
		SetHeader("X-API-Key", cfg.Key).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second)

	return &Client{r: r, language: cfg.Language}
}

type apiError struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func (e *apiError) text() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Detail != "" {
		return e.Detail
	}
	return "ocr api request failed"
}

// Health checks the OCR API /health endpoint.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.r.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("ocr api health check: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("ocr api health check: status %d", resp.StatusCode())
	}
	return nil
}

// ExtractFile runs OCR on a drive file by its ID.
func (c *Client) ExtractFile(ctx context.Context, fileID string) (*Result, error) {
	var body struct {
		Result *Result `json:"result"`
	}
	var errBody apiError

	resp, err := c.r.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"file_id":      fileID,
			"ocr_language": c.language,
		}).
		SetResult(&body).
		SetError(&errBody).
		Post("/api/v1/ocr/file")
	if err != nil {
		return nil, fmt.Errorf("ocr file %s: %w", fileID, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("ocr file %s: %s (status %d)", fileID, errBody.text(), resp.StatusCode())
	}
	if body.Result == nil {
		return nil, fmt.Errorf("ocr file %s: invalid api response", fileID)
	}
	if body.Result.CharCount == 0 {
		body.Result.CharCount = len(body.Result.Content)
	}
	return body.Result, nil
}

// ExtractUpload uploads a local file to the OCR API.
func (c *Client) ExtractUpload(ctx context.Context, filePath, filename string) (*Result, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("ocr upload %s: %w", filename, err)
	}

	resp, err := c.r.R().
		SetContext(ctx).
		SetFile("file", filePath).
		SetFormData(map[string]string{"ocr_language": c.language}).
		Post("/api/v1/ocr/upload")
	if err != nil {
		return nil, fmt.Errorf("ocr upload %s: %w", filename, err)
	}
	if resp.StatusCode() != 200 {
		var errBody apiError
		_ = json.Unmarshal(resp.Body(), &errBody)
		return nil, fmt.Errorf("ocr upload %s: %s (status %d)", filename, errBody.text(), resp.StatusCode())
	}

	// The upload endpoint wraps the payload in a "result" object; fall back to
	// the bare body if the wrapper is absent.
	var wrapped struct {
		Result *Result `json:"result"`
	}
	if err := json.Unmarshal(resp.Body(), &wrapped); err == nil && wrapped.Result != nil {
		res := wrapped.Result
		if res.FileName == "" {
			res.FileName = filename
		}
		if res.CharCount == 0 {
			res.CharCount = len(res.Content)
		}
		return res, nil
	}

	var res Result
	if err := json.Unmarshal(resp.Body(), &res); err != nil {
		return nil, fmt.Errorf("ocr upload %s: invalid api response", filename)
	}
	if res.FileName == "" {
		res.FileName = filename
	}
	if res.CharCount == 0 {
		res.CharCount = len(res.Content)
	}
	return &res, nil
}

// ListFiles lists the PDF files of a drive folder, used once at job creation.
func (c *Client) ListFiles(ctx context.Context, folderID string) ([]FileInfo, error) {
	var body struct {
		Files []FileInfo `json:"files"`
	}
	var errBody apiError

	resp, err := c.r.R().
		SetContext(ctx).
		SetQueryParam("folder_id", folderID).
		SetResult(&body).
		SetError(&errBody).
		Get("/api/v1/files/list")
	if err != nil {
		return nil, fmt.Errorf("list files %s: %w", folderID, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("list files %s: %s (status %d)", folderID, errBody.text(), resp.StatusCode())
	}
	return body.Files, nil
}
