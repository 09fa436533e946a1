package repository

import (
	"testing"

	"jsearch/internal/models"
)

func TestUpdateStatusGuard(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))

	_, _, err := repo.CreateWithBatches("job_1", "folder1", []string{"f1", "f2"}, 5)
	if err != nil {
		t.Fatalf("CreateWithBatches: %v", err)
	}

	ok, err := repo.UpdateStatus("job_1", []string{models.JobStatusProcessing}, models.JobStatusPaused)
	if err != nil || !ok {
		t.Fatalf("pause transition = %v, %v, want true", ok, err)
	}

	// A guard that no longer matches reports false, it must not silently
	// succeed. This is what a caller losing the read-then-update race sees.
	ok, err = repo.UpdateStatus("job_1", []string{models.JobStatusProcessing}, models.JobStatusCancelled)
	if err != nil {
		t.Fatalf("guarded transition: %v", err)
	}
	if ok {
		t.Fatal("transition with stale guard should report false")
	}

	job, err := repo.FindByJobID("job_1")
	if err != nil {
		t.Fatalf("FindByJobID: %v", err)
	}
	if job.Status != models.JobStatusPaused {
		t.Fatalf("status = %s, want paused untouched", job.Status)
	}

	// Unknown jobs also report false.
	ok, err = repo.UpdateStatus("job_missing", []string{models.JobStatusPaused}, models.JobStatusProcessing)
	if err != nil || ok {
		t.Fatalf("unknown job transition = %v, %v, want false", ok, err)
	}
}
