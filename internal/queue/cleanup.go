package queue

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"jsearch/internal/models"
	"jsearch/internal/repository"
)

const (
	completedRetention = time.Hour
	staleRetention     = 7 * 24 * time.Hour

	sweepInterval = 10 * time.Minute
	sweepMarker   = "jsearch:sweep:last"
)

// Marker gates the opportunistic sweep so only one caller per interval runs
// it. TryAcquire returns true when this caller should sweep.
type Marker interface {
	TryAcquire(ctx context.Context, ttl time.Duration) bool
}

// RedisMarker coordinates the sweep across instances with SET NX.
type RedisMarker struct {
	client *redis.Client
}

func NewRedisMarker(client *redis.Client) *RedisMarker {
	return &RedisMarker{client: client}
}

func (m *RedisMarker) TryAcquire(ctx context.Context, ttl time.Duration) bool {
	ok, err := m.client.SetNX(ctx, sweepMarker, time.Now().Unix(), ttl).Result()
	if err != nil {
		// Redis trouble should not block cleanup entirely.
		return true
	}
	return ok
}

// MemoryMarker is the single-process fallback when Redis is unavailable.
type MemoryMarker struct {
	mu      sync.Mutex
	lastRun time.Time
}

func NewMemoryMarker() *MemoryMarker {
	return &MemoryMarker{}
}

func (m *MemoryMarker) TryAcquire(_ context.Context, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if time.Since(m.lastRun) < ttl {
		return false
	}
	m.lastRun = time.Now()
	return true
}

// Sweeper reclaims finished jobs: completed jobs an hour after their last
// update, and any terminal job after a week.
type Sweeper struct {
	jobs   *repository.JobRepository
	marker Marker
	logger *zap.Logger
}

func NewSweeper(jobs *repository.JobRepository, marker Marker, logger *zap.Logger) *Sweeper {
	return &Sweeper{jobs: jobs, marker: marker, logger: logger}
}

// MaybeSweep runs both sweeps if the interval gate allows it. Called from hot
// read paths, so it must stay cheap when gated.
func (s *Sweeper) MaybeSweep(ctx context.Context) {
	if !s.marker.TryAcquire(ctx, sweepInterval) {
		return
	}
	if _, err := s.CleanupCompleted(); err != nil {
		s.logger.Error("completed-job sweep failed", zap.Error(err))
	}
	if _, err := s.CleanupStale(); err != nil {
		s.logger.Error("stale-job sweep failed", zap.Error(err))
	}
}

// CleanupCompleted deletes completed jobs untouched for an hour.
func (s *Sweeper) CleanupCompleted() (int64, error) {
	n, err := s.jobs.DeleteFinishedBefore(
		[]string{models.JobStatusCompleted},
		"updated_at",
		time.Now().Add(-completedRetention),
	)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("completed jobs reclaimed", zap.Int64("count", n))
	}
	return n, nil
}

// CleanupStale deletes any terminal job older than a week, catching jobs that
// never completed cleanly.
func (s *Sweeper) CleanupStale() (int64, error) {
	n, err := s.jobs.DeleteFinishedBefore(
		[]string{models.JobStatusCompleted, models.JobStatusCancelled, models.JobStatusFailed},
		"created_at",
		time.Now().Add(-staleRetention),
	)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("stale jobs reclaimed", zap.Int64("count", n))
	}
	return n, nil
}
