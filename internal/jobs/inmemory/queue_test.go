package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/purchase-analytics/internal/jobs"
)

// waitForStatus polls the store until the job reaches status or the deadline passes.
func waitForStatus(t *testing.T, s *Store, id string, status jobs.JobStatus) *jobs.RebuildJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := s.GetJob(context.Background(), id)
		if err == nil && job.Status == status {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := s.GetJob(context.Background(), id)
	t.Fatalf("job %s did not reach %s, last state %+v", id, status, job)
	return nil
}

func TestQueue_ProcessesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		rebuild := job.(*jobs.RebuildJob)
		rebuild.BuildID = "build-1"
		rebuild.CleanRows = 3
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	job := &jobs.RebuildJob{Trigger: "api"}
	if err := q.PublishRebuild(ctx, job); err != nil {
		t.Fatal(err)
	}
	if job.JobID == "" {
		t.Fatal("expected a job id to be assigned")
	}
	if job.MaxRetries != jobs.DefaultMaxRetries {
		t.Errorf("expected default max retries, got %d", job.MaxRetries)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.BuildID != "build-1" || done.CleanRows != 3 {
		t.Errorf("expected handler results to be stored, got %+v", done)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Error("expected start and completion times")
	}

	if err := q.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestQueue_PublishDoesNotShareCallerJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		job.(*jobs.RebuildJob).BuildID = "build-2"
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	job := &jobs.RebuildJob{Trigger: "api"}
	if err := q.PublishRebuild(ctx, job); err != nil {
		t.Fatal(err)
	}
	waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)

	if job.Status != jobs.JobStatusPending || job.BuildID != "" || job.StartedAt != nil {
		t.Errorf("expected the caller's job to be untouched by the worker, got %+v", job)
	}

	if err := q.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestQueue_RetriesThenFails(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, store, WithBackoff(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	if err := q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		calls.Add(1)
		return errors.New("raw table missing")
	}); err != nil {
		t.Fatal(err)
	}

	job := &jobs.RebuildJob{MaxRetries: 2}
	if err := q.PublishRebuild(ctx, job); err != nil {
		t.Fatal(err)
	}

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if failed.RetryCount != 2 {
		t.Errorf("expected 2 retries, got %d", failed.RetryCount)
	}
	if failed.Error != "raw table missing" {
		t.Errorf("unexpected error %q", failed.Error)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}

func TestQueue_RetrySucceeds(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, store, WithBackoff(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	if err := q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		if calls.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	job := &jobs.RebuildJob{}
	if err := q.PublishRebuild(ctx, job); err != nil {
		t.Fatal(err)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.RetryCount != 1 || done.Error != "" {
		t.Errorf("unexpected job %+v", done)
	}
}

func TestQueue_Closed(t *testing.T) {
	q := NewQueue(1, nil, WithWorkers(2))
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected second close to be a no-op, got %v", err)
	}

	if err := q.PublishRebuild(context.Background(), &jobs.RebuildJob{}); !errors.Is(err, jobs.ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}
	if err := q.Start(context.Background(), nil); !errors.Is(err, jobs.ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}
}
