package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"jsearch/internal/config"
	"jsearch/internal/extractor"
	"jsearch/internal/handler/api"
	"jsearch/internal/middleware"
	"jsearch/internal/queue"
	"jsearch/internal/repository"
	"jsearch/internal/search"
)

// Setup wires repositories, services and routes onto the Echo server.
// redisClient may be nil; caching, rate limiting and the sweep marker then
// fall back to their in-memory implementations. The returned sweeper is also
// used by the cron scheduler.
func Setup(
	e *echo.Echo,
	db *gorm.DB,
	redisClient *redis.Client,
	cfg *config.Config,
	logger *zap.Logger,
) *queue.Sweeper {
	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())

	// Repositories
	jobRepo := repository.NewJobRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	pageRepo := repository.NewPageRepository(db)
	folderRepo := repository.NewFolderRepository(db)

	// Extraction backend
	ocrClient := extractor.NewClient(&cfg.OCR)
	backend := extractor.NewBackend(ocrClient, &cfg.Media, logger)

	// Redis-backed pieces with in-memory fallbacks
	var marker queue.Marker
	var cache search.Cache
	if redisClient != nil {
		marker = queue.NewRedisMarker(redisClient)
		cache = search.NewRedisCache(redisClient)
	} else {
		marker = queue.NewMemoryMarker()
		cache = search.NewMemoryCache()
	}
	limiter := middleware.NewRateLimiter(redisClient, cfg.Search.RateLimit, cfg.Search.RateWindow)

	// Services
	jobService := queue.NewService(jobRepo, batchRepo, documentRepo, pageRepo, folderRepo, backend, logger)
	sweeper := queue.NewSweeper(jobRepo, marker, logger)
	searchService := search.NewService(documentRepo, pageRepo, cache, &cfg.Search, logger)

	// Handlers
	jobHandler := api.NewJobHandler(jobService, sweeper, backend, folderRepo, documentRepo, logger)
	searchHandler := api.NewSearchHandler(searchService, logger)
	ocrHandler := api.NewOCRHandler(backend, documentRepo, pageRepo, logger)
	folderHandler := api.NewFolderHandler(folderRepo, logger)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Public search, rate limited per client IP
	e.GET("/api/search", searchHandler.Query, middleware.RateLimit(limiter))
	e.GET("/api/search/stats", searchHandler.Stats)

	// Management routes behind the API key
	mgmt := e.Group("/api", middleware.APIAuth(cfg.API.Key))

	mgmt.POST("/jobs/folder", jobHandler.StartFolderJob)
	mgmt.POST("/jobs/media", jobHandler.StartMediaJob)
	mgmt.GET("/jobs", jobHandler.ListJobs)
	mgmt.GET("/jobs/:id", jobHandler.GetStatus)
	mgmt.GET("/jobs/:id/detail", jobHandler.GetStatusDetailed)
	mgmt.GET("/jobs/:id/next", jobHandler.NextBatch)
	mgmt.POST("/jobs/:id/pause", jobHandler.Pause)
	mgmt.POST("/jobs/:id/resume", jobHandler.Resume)
	mgmt.POST("/jobs/:id/cancel", jobHandler.Cancel)
	mgmt.DELETE("/jobs/:id", jobHandler.Delete)
	mgmt.POST("/batches/:id/process", jobHandler.ProcessBatch)

	mgmt.POST("/ocr", ocrHandler.Extract)
	mgmt.GET("/documents", ocrHandler.ListDocuments)
	mgmt.DELETE("/documents/:file_id", ocrHandler.DeleteDocument)

	mgmt.GET("/folders", folderHandler.List)
	mgmt.POST("/folders", folderHandler.Create)
	mgmt.PUT("/folders/:id", folderHandler.Update)
	mgmt.DELETE("/folders/:id", folderHandler.Delete)

	return sweeper
}
