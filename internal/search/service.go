// Package search implements keyword search over the document index, with
// optional inclusion of published site pages and a short-lived response
// cache.
package search

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"jsearch/internal/config"
	"jsearch/internal/models"
	"jsearch/internal/repository"
)

// Result types.
const (
	ResultDocument = "document"
	ResultPage     = "page"
)

// Result is one search hit.
type Result struct {
	Type       string    `json:"type"`
	FileID     string    `json:"file_id,omitempty"`
	Title      string    `json:"title"`
	URL        string    `json:"url,omitempty"`
	Snippet    string    `json:"snippet"`
	FolderID   string    `json:"folder_id,omitempty"`
	FolderName string    `json:"folder_name,omitempty"`
	PageTitle  string    `json:"page_title,omitempty"`
	PageURL    string    `json:"page_url,omitempty"`
	CharCount  int       `json:"char_count,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Response is a full search page.
type Response struct {
	Query      string   `json:"query"`
	Total      int64    `json:"total"`
	Page       int      `json:"page"`
	PerPage    int      `json:"per_page"`
	TotalPages int      `json:"total_pages"`
	Cached     bool     `json:"cached"`
	Results    []Result `json:"results"`
}

// Request carries the search parameters.
type Request struct {
	Query    string
	FolderID string
	Page     int
	PerPage  int
	// Global additionally searches published pages not already represented
	// by an indexed document.
	Global bool
}

// Service runs searches and caches their responses.
type Service struct {
	documents *repository.DocumentRepository
	pages     *repository.PageRepository
	cache     Cache
	cfg       *config.SearchConfig
	logger    *zap.Logger
}

func NewService(
	documents *repository.DocumentRepository,
	pages *repository.PageRepository,
	cache Cache,
	cfg *config.SearchConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		documents: documents,
		pages:     pages,
		cache:     cache,
		cfg:       cfg,
		logger:    logger,
	}
}

// Query runs a keyword search. Responses are cached; a hit is returned with
// Cached set so callers can see it.
func (s *Service) Query(ctx context.Context, req Request) (*Response, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PerPage < 1 || req.PerPage > 100 {
		req.PerPage = 10
	}

	key := s.cacheKey(req)
	if raw, ok := s.cache.Get(ctx, key); ok {
		var resp Response
		if err := json.Unmarshal(raw, &resp); err == nil {
			resp.Cached = true
			return &resp, nil
		}
	}

	resp, err := s.query(req)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(resp); err == nil {
		s.cache.Set(ctx, key, raw, s.cfg.CacheTTL)
	}
	return resp, nil
}

func (s *Service) query(req Request) (*Response, error) {
	offset := (req.Page - 1) * req.PerPage

	docs, err := s.documents.Search(req.Query, req.FolderID, req.PerPage, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.documents.CountSearch(req.Query, req.FolderID)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(docs))
	for _, d := range docs {
		results = append(results, s.documentResult(&d, req.Query))
	}

	// Page hits are appended after document hits on each page. Folder
	// filtering never applies to pages, they have no folder.
	if req.Global && s.cfg.IncludePages && req.FolderID == "" {
		pageTotal, err := s.pages.CountSearch(req.Query)
		if err != nil {
			return nil, err
		}
		if len(results) < req.PerPage {
			pages, err := s.pages.Search(req.Query, req.PerPage-len(results), pageOffset(offset, len(docs), total))
			if err != nil {
				return nil, err
			}
			for _, p := range pages {
				results = append(results, s.pageResult(&p, req.Query))
			}
		}
		total += pageTotal
	}

	totalPages := int((total + int64(req.PerPage) - 1) / int64(req.PerPage))
	return &Response{
		Query:      req.Query,
		Total:      total,
		Page:       req.Page,
		PerPage:    req.PerPage,
		TotalPages: totalPages,
		Results:    results,
	}, nil
}

// pageOffset is how far into the page results this response page starts,
// once the document results are exhausted.
func pageOffset(offset, gotDocs int, docTotal int64) int {
	if gotDocs > 0 {
		return 0
	}
	po := offset - int(docTotal)
	if po < 0 {
		po = 0
	}
	return po
}

func (s *Service) documentResult(d *models.Document, query string) Result {
	return Result{
		Type:       ResultDocument,
		FileID:     d.FileID,
		Title:      d.Title,
		URL:        d.FileURL,
		Snippet:    Snippet(d.Content, query, s.cfg.SnippetLength),
		FolderID:   d.FolderID,
		FolderName: d.FolderName,
		PageTitle:  d.PageTitle,
		PageURL:    d.PageURL,
		CharCount:  d.CharCount,
		UpdatedAt:  d.UpdatedAt,
	}
}

func (s *Service) pageResult(p *models.Page, query string) Result {
	return Result{
		Type:      ResultPage,
		Title:     p.Title,
		URL:       p.URL,
		Snippet:   Snippet(p.Content, query, s.cfg.SnippetLength),
		UpdatedAt: p.UpdatedAt,
	}
}

// Stats summarizes the index.
func (s *Service) Stats() (*repository.IndexStats, error) {
	return s.documents.Stats()
}

func (s *Service) cacheKey(req Request) string {
	raw := fmt.Sprintf("%s|%s|%d|%d|%t", req.Query, req.FolderID, req.Page, req.PerPage, req.Global)
	sum := sha1.Sum([]byte(raw))
	return "jsearch:search:" + hex.EncodeToString(sum[:])
}
