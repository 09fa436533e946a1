package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"jsearch/internal/extractor"
	"jsearch/internal/models"
	"jsearch/internal/repository"
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

// fakeExtractor succeeds with canned content unless the file ID is listed in
// fail.
type fakeExtractor struct {
	fail  map[string]bool
	calls []string
}

func (f *fakeExtractor) Extract(_ context.Context, fileID string) (*extractor.Result, error) {
	f.calls = append(f.calls, fileID)
	if f.fail[fileID] {
		return nil, errors.New("extraction blew up")
	}
	content := "content of " + fileID
	return &extractor.Result{
		FileID:    fileID,
		FileName:  fileID + ".pdf",
		Content:   content,
		CharCount: len(content),
		OCRMethod: "ocr_api",
	}, nil
}

func newTestService(t *testing.T) (*Service, *fakeExtractor, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	fake := &fakeExtractor{fail: map[string]bool{}}
	svc := NewService(
		repository.NewJobRepository(db),
		repository.NewBatchRepository(db),
		repository.NewDocumentRepository(db),
		repository.NewPageRepository(db),
		repository.NewFolderRepository(db),
		fake,
		zap.NewNop(),
	)
	return svc, fake, db
}

func fileIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("file%02d", i+1)
	}
	return ids
}

func TestCreateJobSplitsBatches(t *testing.T) {
	svc, _, db := newTestService(t)

	job, created, err := svc.CreateJob("folder1", fileIDs(12))
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if !created {
		t.Fatal("expected a new job")
	}
	if job.Status != models.JobStatusProcessing {
		t.Fatalf("job status = %s, want processing", job.Status)
	}
	if job.TotalFiles != 12 {
		t.Fatalf("total_files = %d, want 12", job.TotalFiles)
	}

	var batches []models.JobBatch
	if err := db.Order("batch_number").Find(&batches).Error; err != nil {
		t.Fatalf("load batches: %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("batch count = %d, want 3", len(batches))
	}
	wantSizes := []int{5, 5, 2}
	var concat []string
	for i, b := range batches {
		if b.BatchNumber != i+1 {
			t.Errorf("batch %d number = %d", i, b.BatchNumber)
		}
		if b.Status != models.BatchStatusPending {
			t.Errorf("batch %d status = %s, want pending", i, b.Status)
		}
		var ids []string
		if err := json.Unmarshal([]byte(b.FileIDs), &ids); err != nil {
			t.Fatalf("batch %d payload: %v", i, err)
		}
		if len(ids) != wantSizes[i] {
			t.Errorf("batch %d size = %d, want %d", i, len(ids), wantSizes[i])
		}
		concat = append(concat, ids...)
	}

	// The batches partition the input: concatenated in batch order they give
	// back the original list, nothing duplicated, nothing lost.
	want := fileIDs(12)
	if len(concat) != len(want) {
		t.Fatalf("concatenated ids = %d, want %d", len(concat), len(want))
	}
	for i := range want {
		if concat[i] != want[i] {
			t.Fatalf("concatenated ids[%d] = %s, want %s", i, concat[i], want[i])
		}
	}
}

func TestCreateJobReusesActiveJob(t *testing.T) {
	svc, _, _ := newTestService(t)

	first, _, err := svc.CreateJob("folder1", fileIDs(3))
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	second, created, err := svc.CreateJob("folder1", fileIDs(7))
	if err != nil {
		t.Fatalf("CreateJob again: %v", err)
	}
	if created {
		t.Fatal("expected the active job to be reused")
	}
	if second.JobID != first.JobID {
		t.Fatalf("reused job id = %s, want %s", second.JobID, first.JobID)
	}

	// A different source is not blocked.
	_, created, err = svc.CreateJob("folder2", fileIDs(3))
	if err != nil {
		t.Fatalf("CreateJob other source: %v", err)
	}
	if !created {
		t.Fatal("expected a new job for the other source")
	}
}

func TestCreateJobEmptyFileList(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, _, err := svc.CreateJob("folder1", nil); !errors.Is(err, ErrEmptyFileList) {
		t.Fatalf("err = %v, want ErrEmptyFileList", err)
	}
}

func processAll(t *testing.T, svc *Service, jobID string) []*BatchResult {
	t.Helper()
	var results []*BatchResult
	for {
		batch, err := svc.NextPendingBatch(jobID)
		if err != nil {
			t.Fatalf("NextPendingBatch: %v", err)
		}
		if batch == nil {
			return results
		}
		res, err := svc.ProcessBatch(context.Background(), batch.ID)
		if err != nil {
			t.Fatalf("ProcessBatch %d: %v", batch.ID, err)
		}
		results = append(results, res)
	}
}

func TestProcessBatchDrivesJobToCompleted(t *testing.T) {
	svc, _, _ := newTestService(t)

	job, _, err := svc.CreateJob("folder1", fileIDs(12))
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	results := processAll(t, svc, job.JobID)
	if len(results) != 3 {
		t.Fatalf("processed %d batches, want 3", len(results))
	}
	if !results[0].HasNext || !results[1].HasNext {
		t.Error("early batches should report has_next")
	}
	if results[2].HasNext {
		t.Error("last batch should not report has_next")
	}
	if results[2].JobStatus != models.JobStatusCompleted {
		t.Errorf("final job status = %s, want completed", results[2].JobStatus)
	}

	status, err := svc.Status(job.JobID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.ProcessedFiles != 12 || status.FailedFiles != 0 {
		t.Errorf("counters = %d/%d, want 12/0", status.ProcessedFiles, status.FailedFiles)
	}
	if status.Progress != 100 {
		t.Errorf("progress = %v, want 100", status.Progress)
	}
	if status.Batches[models.BatchStatusCompleted] != 3 {
		t.Errorf("completed batches = %d, want 3", status.Batches[models.BatchStatusCompleted])
	}
}

func TestProcessBatchPartialFailure(t *testing.T) {
	svc, fake, _ := newTestService(t)
	fake.fail["file03"] = true

	job, _, err := svc.CreateJob("folder1", fileIDs(5))
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	results := processAll(t, svc, job.JobID)
	if len(results) != 1 {
		t.Fatalf("processed %d batches, want 1", len(results))
	}
	res := results[0]

	// One failure among successes still completes the batch.
	if res.Status != models.BatchStatusCompleted {
		t.Errorf("batch status = %s, want completed", res.Status)
	}
	if res.Processed != 4 || res.Failed != 1 {
		t.Errorf("batch counters = %d/%d, want 4/1", res.Processed, res.Failed)
	}
	if res.JobStatus != models.JobStatusCompleted {
		t.Errorf("job status = %s, want completed despite failure", res.JobStatus)
	}

	var item *ItemResult
	for i := range res.Results {
		if res.Results[i].FileID == "file03" {
			item = &res.Results[i]
		}
	}
	if item == nil || item.Status != ItemError || item.Message == "" {
		t.Errorf("failed item result = %+v, want error with message", item)
	}
}

func TestProcessBatchSkipsIndexedFiles(t *testing.T) {
	svc, fake, db := newTestService(t)

	// file01 and file04 are already in the index.
	for _, id := range []string{"file01", "file04"} {
		if err := db.Create(&models.Document{FileID: id, Title: id, Content: "x"}).Error; err != nil {
			t.Fatalf("seed document: %v", err)
		}
	}

	job, _, err := svc.CreateJob("folder1", fileIDs(5))
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	results := processAll(t, svc, job.JobID)
	res := results[0]

	if res.Processed != 3 || res.Skipped != 2 || res.Failed != 0 {
		t.Fatalf("counters = %d/%d/%d, want 3/2/0", res.Processed, res.Skipped, res.Failed)
	}
	if len(fake.calls) != 3 {
		t.Errorf("extractor called %d times, want 3", len(fake.calls))
	}

	// Skips stay out of the job counters.
	status, _ := svc.Status(job.JobID)
	if status.ProcessedFiles != 3 || status.FailedFiles != 0 {
		t.Errorf("job counters = %d/%d, want 3/0", status.ProcessedFiles, status.FailedFiles)
	}
}

func TestProcessBatchAllFailed(t *testing.T) {
	svc, fake, _ := newTestService(t)
	for _, id := range fileIDs(5) {
		fake.fail[id] = true
	}

	job, _, err := svc.CreateJob("folder1", fileIDs(5))
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	results := processAll(t, svc, job.JobID)
	res := results[0]

	if res.Status != models.BatchStatusFailed {
		t.Errorf("batch status = %s, want failed", res.Status)
	}
	// The job still drains to completed.
	if res.JobStatus != models.JobStatusCompleted {
		t.Errorf("job status = %s, want completed", res.JobStatus)
	}
	status, _ := svc.Status(job.JobID)
	if status.ProcessedFiles != 0 || status.FailedFiles != 5 {
		t.Errorf("counters = %d/%d, want 0/5", status.ProcessedFiles, status.FailedFiles)
	}
}

func TestProcessBatchMalformedPayload(t *testing.T) {
	svc, _, db := newTestService(t)

	job, _, err := svc.CreateJob("folder1", fileIDs(5))
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	batch, err := svc.NextPendingBatch(job.JobID)
	if err != nil {
		t.Fatalf("NextPendingBatch: %v", err)
	}
	if err := db.Model(&models.JobBatch{}).Where("id = ?", batch.ID).
		Update("file_ids", "{not json").Error; err != nil {
		t.Fatalf("corrupt payload: %v", err)
	}

	res, err := svc.ProcessBatch(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if res.Status != models.BatchStatusFailed {
		t.Errorf("batch status = %s, want failed", res.Status)
	}

	// Counters stay untouched.
	status, _ := svc.Status(job.JobID)
	if status.ProcessedFiles != 0 || status.FailedFiles != 0 {
		t.Errorf("counters = %d/%d, want 0/0", status.ProcessedFiles, status.FailedFiles)
	}

	var stored models.JobBatch
	if err := db.First(&stored, batch.ID).Error; err != nil {
		t.Fatalf("reload batch: %v", err)
	}
	if stored.Error == "" || stored.ProcessedAt == nil {
		t.Errorf("failed batch should carry error and processed_at, got %+v", stored)
	}
}

func TestProcessBatchClaimIsExclusive(t *testing.T) {
	svc, _, _ := newTestService(t)

	job, _, err := svc.CreateJob("folder1", fileIDs(5))
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	batch, _ := svc.NextPendingBatch(job.JobID)

	if _, err := svc.ProcessBatch(context.Background(), batch.ID); err != nil {
		t.Fatalf("first ProcessBatch: %v", err)
	}
	if _, err := svc.ProcessBatch(context.Background(), batch.ID); !errors.Is(err, ErrBatchConflict) {
		t.Fatalf("second ProcessBatch err = %v, want ErrBatchConflict", err)
	}
}

// ctxAwareExtractor refuses to work once its context is cancelled, the way a
// real HTTP client does.
type ctxAwareExtractor struct {
	inner *fakeExtractor
}

func (e *ctxAwareExtractor) Extract(ctx context.Context, fileID string) (*extractor.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.inner.Extract(ctx, fileID)
}

func TestProcessBatchSurvivesCallerDisconnect(t *testing.T) {
	db := newTestDB(t)
	fake := &ctxAwareExtractor{inner: &fakeExtractor{fail: map[string]bool{}}}
	svc := NewService(
		repository.NewJobRepository(db),
		repository.NewBatchRepository(db),
		repository.NewDocumentRepository(db),
		repository.NewPageRepository(db),
		repository.NewFolderRepository(db),
		fake,
		zap.NewNop(),
	)

	job, _, err := svc.CreateJob("folder1", fileIDs(5))
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	batch, _ := svc.NextPendingBatch(job.JobID)

	// The caller disconnects before the batch runs. Once claimed, the batch
	// must still run its items to completion.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := svc.ProcessBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if res.Status != models.BatchStatusCompleted {
		t.Errorf("batch status = %s, want completed", res.Status)
	}
	if res.Processed != 5 || res.Failed != 0 {
		t.Errorf("counters = %d/%d, want 5/0", res.Processed, res.Failed)
	}

	status, _ := svc.Status(job.JobID)
	if status.ProcessedFiles != 5 || status.FailedFiles != 0 {
		t.Errorf("job counters = %d/%d, want 5/0", status.ProcessedFiles, status.FailedFiles)
	}
}

func TestProcessBatchUnknownBatch(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.ProcessBatch(context.Background(), 9999); !errors.Is(err, ErrBatchNotFound) {
		t.Fatalf("err = %v, want ErrBatchNotFound", err)
	}
}

func TestPauseResumeRoundtrip(t *testing.T) {
	svc, _, _ := newTestService(t)

	job, _, err := svc.CreateJob("folder1", fileIDs(12))
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	if err := svc.Pause(job.JobID); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	status, _ := svc.Status(job.JobID)
	if status.Status != models.JobStatusPaused {
		t.Fatalf("status = %s, want paused", status.Status)
	}

	// Pausing twice is a conflict.
	var transition *InvalidTransitionError
	if err := svc.Pause(job.JobID); !errors.As(err, &transition) {
		t.Fatalf("second Pause err = %v, want InvalidTransitionError", err)
	}

	info, err := svc.Resume(job.JobID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if !info.HasNext || info.NextBatchID == nil {
		t.Fatalf("resume info = %+v, want a next batch", info)
	}

	// Resuming a running job is a no-op success.
	if _, err := svc.Resume(job.JobID); err != nil {
		t.Fatalf("Resume while processing: %v", err)
	}
}

func TestPauseResumeDrainMatchesUninterrupted(t *testing.T) {
	svc, fake, _ := newTestService(t)

	// Distinct file IDs per run, or the second run would skip everything the
	// first one indexed. The failures sit at the same positions in both.
	idsFor := func(prefix string) []string {
		ids := make([]string, 12)
		for i := range ids {
			ids[i] = fmt.Sprintf("%s%02d", prefix, i+1)
		}
		return ids
	}
	fake.fail["a03"] = true
	fake.fail["a08"] = true
	fake.fail["b03"] = true
	fake.fail["b08"] = true

	straight, _, err := svc.CreateJob("folderA", idsFor("a"))
	if err != nil {
		t.Fatalf("CreateJob straight: %v", err)
	}
	processAll(t, svc, straight.JobID)

	// The second run is identical except it pauses between the first and
	// second batch.
	interrupted, _, err := svc.CreateJob("folderB", idsFor("b"))
	if err != nil {
		t.Fatalf("CreateJob interrupted: %v", err)
	}
	batch, _ := svc.NextPendingBatch(interrupted.JobID)
	if _, err := svc.ProcessBatch(context.Background(), batch.ID); err != nil {
		t.Fatalf("ProcessBatch before pause: %v", err)
	}
	if err := svc.Pause(interrupted.JobID); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if _, err := svc.Resume(interrupted.JobID); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	processAll(t, svc, interrupted.JobID)

	got, _ := svc.Status(interrupted.JobID)
	want, _ := svc.Status(straight.JobID)
	if got.Status != models.JobStatusCompleted {
		t.Fatalf("interrupted job status = %s, want completed", got.Status)
	}
	if got.ProcessedFiles != want.ProcessedFiles || got.FailedFiles != want.FailedFiles {
		t.Fatalf("interrupted counters = %d/%d, straight = %d/%d, want equal",
			got.ProcessedFiles, got.FailedFiles, want.ProcessedFiles, want.FailedFiles)
	}
	if got.Progress != want.Progress {
		t.Fatalf("interrupted progress = %v, straight = %v, want equal", got.Progress, want.Progress)
	}
	if want.ProcessedFiles != 10 || want.FailedFiles != 2 {
		t.Fatalf("straight counters = %d/%d, want 10/2", want.ProcessedFiles, want.FailedFiles)
	}
}

func TestCancelFlipsPendingBatches(t *testing.T) {
	svc, _, _ := newTestService(t)

	job, _, err := svc.CreateJob("folder1", fileIDs(12))
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	batch, _ := svc.NextPendingBatch(job.JobID)
	if _, err := svc.ProcessBatch(context.Background(), batch.ID); err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}

	if err := svc.Cancel(job.JobID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	status, _ := svc.Status(job.JobID)
	if status.Status != models.JobStatusCancelled {
		t.Fatalf("status = %s, want cancelled", status.Status)
	}
	// The processed batch keeps its history, the rest are cancelled.
	if status.Batches[models.BatchStatusCompleted] != 1 {
		t.Errorf("completed batches = %d, want 1", status.Batches[models.BatchStatusCompleted])
	}
	if status.Batches[models.BatchStatusCancelled] != 2 {
		t.Errorf("cancelled batches = %d, want 2", status.Batches[models.BatchStatusCancelled])
	}

	// A cancelled job has no next batch and cannot be cancelled again.
	next, _ := svc.NextPendingBatch(job.JobID)
	if next != nil {
		t.Error("cancelled job should have no pending batch")
	}
	var transition *InvalidTransitionError
	if err := svc.Cancel(job.JobID); !errors.As(err, &transition) {
		t.Fatalf("second Cancel err = %v, want InvalidTransitionError", err)
	}
}

func TestDeleteJob(t *testing.T) {
	svc, _, _ := newTestService(t)

	job, _, err := svc.CreateJob("folder1", fileIDs(3))
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := svc.Delete(job.JobID, false); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Status(job.JobID); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("Status after delete err = %v, want ErrJobNotFound", err)
	}

	// Deleting a missing job fails plainly but succeeds with force.
	if err := svc.Delete("job_missing", false); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("Delete missing err = %v, want ErrJobNotFound", err)
	}
	if err := svc.Delete("job_missing", true); err != nil {
		t.Fatalf("forced Delete missing: %v", err)
	}
}

func TestStatusDetailed(t *testing.T) {
	svc, fake, _ := newTestService(t)
	fake.fail["file02"] = true

	job, _, err := svc.CreateJob("folder1", fileIDs(7))
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	batch, _ := svc.NextPendingBatch(job.JobID)
	if _, err := svc.ProcessBatch(context.Background(), batch.ID); err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}

	detail, err := svc.StatusDetailed(job.JobID)
	if err != nil {
		t.Fatalf("StatusDetailed: %v", err)
	}
	// 4 of 7 succeeded; the failed file still counts as remaining.
	if detail.RemainingFiles != 3 {
		t.Errorf("remaining_files = %d, want 3", detail.RemainingFiles)
	}
	if len(detail.BatchList) != 2 {
		t.Fatalf("batch list len = %d, want 2", len(detail.BatchList))
	}
	if detail.BatchList[0].Status != models.BatchStatusCompleted {
		t.Errorf("first batch status = %s, want completed", detail.BatchList[0].Status)
	}
	if detail.BatchList[1].Status != models.BatchStatusPending {
		t.Errorf("second batch status = %s, want pending", detail.BatchList[1].Status)
	}
	if len(detail.RecentDocuments) != 4 {
		t.Errorf("recent documents = %d, want 4", len(detail.RecentDocuments))
	}
}

func TestStatusUnknownJob(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Status("job_nope"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestProgressRounding(t *testing.T) {
	cases := []struct {
		processed, total int
		want             float64
	}{
		{0, 0, 0},
		{0, 10, 0},
		{1, 3, 33.3},
		{2, 3, 66.7},
		{7, 12, 58.3},
		{12, 12, 100},
	}
	for _, tc := range cases {
		if got := progress(tc.processed, tc.total); got != tc.want {
			t.Errorf("progress(%d, %d) = %v, want %v", tc.processed, tc.total, got, tc.want)
		}
	}
}
