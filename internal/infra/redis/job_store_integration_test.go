//go:build integration

package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"thewell-curation/internal/config"
	"thewell-curation/internal/domain"
	"thewell-curation/internal/domain/model"
	"thewell-curation/internal/domain/ports/repository"
)

func redisTestConfig() config.RedisConfig {
	return config.RedisConfig{
		URL: "localhost:6379",
		DB:  1,
	}
}

func testClient(t *testing.T) *Client {
	t.Helper()
	cfg := redisTestConfig()
	cli, err := NewClient(context.Background(), &cfg)
	if err != nil {
		t.Skip("redis not available:", err)
	}
	t.Cleanup(func() { _ = cli.Close() })
	return cli
}

// testQueue returns a unique queue name so runs never collide on shared keys.
func testQueue() string {
	return "it-" + uuid.NewString()
}

func TestJobStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	store := NewJobStore(testClient(t))
	queue := testQueue()

	t.Run("add, get and duplicate detection", func(t *testing.T) {
		job := model.NewReviewJob("doc-1", "doc-1", map[string]any{"title": "Doc"}, 2)
		if err := store.AddJob(ctx, queue, job, repository.AddOptions{Priority: 2, Attempts: 3}); err != nil {
			t.Fatalf("AddJob: %v", err)
		}

		got, err := store.GetJob(ctx, queue, "doc-1")
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if got.Priority != 2 || got.MaxAttempts != 3 || got.State != model.QueueStateWaiting {
			t.Errorf("job = priority %d attempts %d state %q", got.Priority, got.MaxAttempts, got.State)
		}

		err = store.AddJob(ctx, queue, job, repository.AddOptions{})
		if !errors.Is(err, domain.ErrAlreadyExists) {
			t.Errorf("duplicate add err = %v, want already exists", err)
		}

		_, err = store.GetJob(ctx, queue, "missing")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("missing get err = %v, want not found", err)
		}
	})

	t.Run("update promotes waiting to active on in-review", func(t *testing.T) {
		job, err := store.GetJob(ctx, queue, "doc-1")
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		job.StartReview("alice", "", time.Now())
		if err := store.UpdateJob(ctx, queue, job); err != nil {
			t.Fatalf("UpdateJob: %v", err)
		}

		got, err := store.GetJob(ctx, queue, "doc-1")
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if got.State != model.QueueStateActive {
			t.Errorf("state = %q, want active", got.State)
		}

		stats, err := store.QueueStats(ctx, queue)
		if err != nil {
			t.Fatalf("QueueStats: %v", err)
		}
		if stats.Active != 1 || stats.Waiting != 0 {
			t.Errorf("stats = %+v, want active 1 / waiting 0", stats)
		}
	})

	t.Run("waiting jobs come back in priority order", func(t *testing.T) {
		q := testQueue()
		for i, priority := range []int{1, 5, 3} {
			id := fmt.Sprintf("doc-%d", i)
			job := model.NewReviewJob(id, id, nil, priority)
			if err := store.AddJob(ctx, q, job, repository.AddOptions{Priority: priority}); err != nil {
				t.Fatalf("AddJob %s: %v", id, err)
			}
		}

		jobs, err := store.GetJobs(ctx, q, []model.QueueState{model.QueueStateWaiting}, 0, 10)
		if err != nil {
			t.Fatalf("GetJobs: %v", err)
		}
		if len(jobs) != 3 {
			t.Fatalf("got %d jobs, want 3", len(jobs))
		}
		if jobs[0].ID != "doc-1" || jobs[1].ID != "doc-2" || jobs[2].ID != "doc-0" {
			t.Errorf("order = %s, %s, %s", jobs[0].ID, jobs[1].ID, jobs[2].ID)
		}

		if err := store.ChangePriority(ctx, q, "doc-0", 9); err != nil {
			t.Fatalf("ChangePriority: %v", err)
		}
		jobs, err = store.GetJobs(ctx, q, []model.QueueState{model.QueueStateWaiting}, 0, 1)
		if err != nil {
			t.Fatalf("GetJobs: %v", err)
		}
		if len(jobs) != 1 || jobs[0].ID != "doc-0" {
			t.Errorf("head after re-prioritize = %v", jobs)
		}
	})

	t.Run("completion and failure are terminal states", func(t *testing.T) {
		q := testQueue()
		for _, id := range []string{"done", "dead"} {
			job := model.NewReviewJob(id, id, nil, 1)
			if err := store.AddJob(ctx, q, job, repository.AddOptions{Priority: 1}); err != nil {
				t.Fatalf("AddJob %s: %v", id, err)
			}
		}

		if err := store.MoveToCompleted(ctx, q, "done", "approved", false); err != nil {
			t.Fatalf("MoveToCompleted: %v", err)
		}
		if err := store.MoveToFailed(ctx, q, "dead", "spam", false); err != nil {
			t.Fatalf("MoveToFailed: %v", err)
		}

		done, err := store.GetJob(ctx, q, "done")
		if err != nil {
			t.Fatalf("GetJob done: %v", err)
		}
		if done.State != model.QueueStateCompleted || done.Result != "approved" || done.FinishedOn.IsZero() {
			t.Errorf("done = state %q result %q finished %v", done.State, done.Result, done.FinishedOn)
		}

		dead, err := store.GetJob(ctx, q, "dead")
		if err != nil {
			t.Fatalf("GetJob dead: %v", err)
		}
		if dead.State != model.QueueStateFailed || dead.FailedReason != "spam" {
			t.Errorf("dead = state %q reason %q", dead.State, dead.FailedReason)
		}

		stats, err := store.QueueStats(ctx, q)
		if err != nil {
			t.Fatalf("QueueStats: %v", err)
		}
		if stats.Completed != 1 || stats.Failed != 1 || stats.Waiting != 0 {
			t.Errorf("stats = %+v", stats)
		}
	})

	t.Run("removeOnComplete drops the record", func(t *testing.T) {
		q := testQueue()
		job := model.NewReviewJob("gone", "gone", nil, 1)
		if err := store.AddJob(ctx, q, job, repository.AddOptions{Priority: 1}); err != nil {
			t.Fatalf("AddJob: %v", err)
		}
		if err := store.MoveToCompleted(ctx, q, "gone", "approved", true); err != nil {
			t.Fatalf("MoveToCompleted: %v", err)
		}
		if _, err := store.GetJob(ctx, q, "gone"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("err = %v, want not found", err)
		}
	})
}

func TestLocker_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	locker := NewLocker(testClient(t))
	key := "it:lock:" + uuid.NewString()

	token, err := locker.TryLock(ctx, key, 5*time.Second)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}

	if _, err := locker.TryLock(ctx, key, 5*time.Second); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("second TryLock err = %v, want conflict", err)
	}

	// A wrong token never releases someone else's lock.
	if err := locker.Unlock(ctx, key, "wrong-token"); err != nil {
		t.Fatalf("Unlock wrong token: %v", err)
	}
	if _, err := locker.TryLock(ctx, key, 5*time.Second); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("lock released by wrong token, err = %v", err)
	}

	if err := locker.Unlock(ctx, key, token); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	if _, err := locker.TryLock(ctx, key, time.Second); err != nil {
		t.Errorf("relock after unlock: %v", err)
	}
}
