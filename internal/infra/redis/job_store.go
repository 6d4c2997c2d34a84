package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"

	"thewell-curation/internal/domain"
	"thewell-curation/internal/domain/model"
	"thewell-curation/internal/domain/ports/repository"
)

// Compile-time check
var _ repository.JobStore = (*JobStore)(nil)

const keyPrefix = "curation:queue:"

// JobStore keeps each queue as a priority-scored waiting ZSET plus plain sets
// per delivery state, with the job record itself JSON-encoded in a hash. The
// review axis lives inside the record; the delivery axis lives in the
// containers. A job whose review moves to in-review is promoted from waiting
// to active so queue depth mirrors what reviewers are actually holding.
type JobStore struct {
	cli *redis.Client
}

func NewJobStore(c *Client) *JobStore {
	return &JobStore{cli: c.cli}
}

func jobKey(queue, id string) string {
	return keyPrefix + queue + ":job:" + id
}

func stateKey(queue string, state model.QueueState) string {
	return keyPrefix + queue + ":" + string(state)
}

// Waiting jobs are scored by negated priority so ZRANGE walks highest
// priority first.
func waitingScore(priority int) float64 {
	return -float64(priority)
}

func (s *JobStore) GetJob(ctx context.Context, queue, id string) (*model.ReviewJob, error) {
	raw, err := s.cli.HGet(ctx, jobKey(queue, id), "data").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	var job model.ReviewJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

func (s *JobStore) AddJob(ctx context.Context, queue string, job *model.ReviewJob, opts repository.AddOptions) error {
	exists, err := s.cli.Exists(ctx, jobKey(queue, job.ID)).Result()
	if err != nil {
		return fmt.Errorf("add job %s: %w", job.ID, err)
	}
	if exists > 0 {
		return domain.ErrAlreadyExists
	}

	job.Priority = opts.Priority
	if opts.Attempts > 0 {
		job.MaxAttempts = opts.Attempts
	} else {
		job.MaxAttempts = 1
	}
	job.State = model.QueueStateWaiting

	if err := s.writeJob(ctx, queue, job); err != nil {
		return err
	}
	if err := s.cli.ZAdd(ctx, stateKey(queue, model.QueueStateWaiting), &redis.Z{
		Score:  waitingScore(job.Priority),
		Member: job.ID,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	return nil
}

func (s *JobStore) UpdateJob(ctx context.Context, queue string, job *model.ReviewJob) error {
	exists, err := s.cli.Exists(ctx, jobKey(queue, job.ID)).Result()
	if err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	if exists == 0 {
		return domain.ErrNotFound
	}

	if job.Status == model.ReviewStatusInReview && job.State == model.QueueStateWaiting {
		pipe := s.cli.TxPipeline()
		pipe.ZRem(ctx, stateKey(queue, model.QueueStateWaiting), job.ID)
		pipe.SAdd(ctx, stateKey(queue, model.QueueStateActive), job.ID)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("promote job %s to active: %w", job.ID, err)
		}
		job.State = model.QueueStateActive
	}
	return s.writeJob(ctx, queue, job)
}

func (s *JobStore) MoveToCompleted(ctx context.Context, queue, id, result string, removeOnComplete bool) error {
	return s.finish(ctx, queue, id, model.QueueStateCompleted, removeOnComplete, func(job *model.ReviewJob) {
		job.Result = result
	})
}

func (s *JobStore) MoveToFailed(ctx context.Context, queue, id, reason string, removeOnFail bool) error {
	return s.finish(ctx, queue, id, model.QueueStateFailed, removeOnFail, func(job *model.ReviewJob) {
		job.FailedReason = reason
	})
}

func (s *JobStore) finish(ctx context.Context, queue, id string, target model.QueueState, remove bool, apply func(*model.ReviewJob)) error {
	job, err := s.GetJob(ctx, queue, id)
	if err != nil {
		return err
	}

	if err := s.removeFromState(ctx, queue, job.State, id); err != nil {
		return err
	}
	if remove {
		return s.cli.Del(ctx, jobKey(queue, id)).Err()
	}

	job.State = target
	job.FinishedOn = time.Now()
	apply(job)
	if err := s.writeJob(ctx, queue, job); err != nil {
		return err
	}
	return s.cli.SAdd(ctx, stateKey(queue, target), id).Err()
}

func (s *JobStore) ChangePriority(ctx context.Context, queue, id string, priority int) error {
	job, err := s.GetJob(ctx, queue, id)
	if err != nil {
		return err
	}
	job.Priority = priority
	if job.State == model.QueueStateWaiting {
		if err := s.cli.ZAdd(ctx, stateKey(queue, model.QueueStateWaiting), &redis.Z{
			Score:  waitingScore(priority),
			Member: id,
		}).Err(); err != nil {
			return fmt.Errorf("rescore job %s: %w", id, err)
		}
	}
	return s.writeJob(ctx, queue, job)
}

func (s *JobStore) GetJobs(ctx context.Context, queue string, states []model.QueueState, offset, limit int) ([]*model.ReviewJob, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var jobs []*model.ReviewJob
	for _, state := range states {
		ids, ordered, err := s.stateMembers(ctx, queue, state)
		if err != nil {
			return nil, err
		}
		batch := make([]*model.ReviewJob, 0, len(ids))
		for _, id := range ids {
			job, err := s.GetJob(ctx, queue, id)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue // container member without a record; skip
				}
				return nil, err
			}
			batch = append(batch, job)
		}
		if !ordered {
			sort.SliceStable(batch, func(i, j int) bool {
				return batch[i].UpdatedAt.After(batch[j].UpdatedAt)
			})
		}
		jobs = append(jobs, batch...)
	}

	if offset >= len(jobs) {
		return []*model.ReviewJob{}, nil
	}
	end := offset + limit
	if end > len(jobs) {
		end = len(jobs)
	}
	return jobs[offset:end], nil
}

func (s *JobStore) QueueStats(ctx context.Context, queue string) (model.QueueStats, error) {
	pipe := s.cli.TxPipeline()
	waiting := pipe.ZCard(ctx, stateKey(queue, model.QueueStateWaiting))
	active := pipe.SCard(ctx, stateKey(queue, model.QueueStateActive))
	completed := pipe.SCard(ctx, stateKey(queue, model.QueueStateCompleted))
	failed := pipe.SCard(ctx, stateKey(queue, model.QueueStateFailed))
	delayed := pipe.SCard(ctx, stateKey(queue, model.QueueStateDelayed))
	if _, err := pipe.Exec(ctx); err != nil {
		return model.QueueStats{}, fmt.Errorf("queue stats %s: %w", queue, err)
	}
	return model.QueueStats{
		Waiting:   int(waiting.Val()),
		Active:    int(active.Val()),
		Completed: int(completed.Val()),
		Failed:    int(failed.Val()),
		Delayed:   int(delayed.Val()),
	}, nil
}

func (s *JobStore) writeJob(ctx context.Context, queue string, job *model.ReviewJob) error {
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	if err := s.cli.HSet(ctx, jobKey(queue, job.ID), "data", b).Err(); err != nil {
		return fmt.Errorf("write job %s: %w", job.ID, err)
	}
	return nil
}

func (s *JobStore) removeFromState(ctx context.Context, queue string, state model.QueueState, id string) error {
	var err error
	if state == model.QueueStateWaiting {
		err = s.cli.ZRem(ctx, stateKey(queue, state), id).Err()
	} else {
		err = s.cli.SRem(ctx, stateKey(queue, state), id).Err()
	}
	if err != nil {
		return fmt.Errorf("dequeue job %s from %s: %w", id, state, err)
	}
	return nil
}

// stateMembers returns the ids in a state container and whether the order is
// meaningful (only the waiting ZSET has one).
func (s *JobStore) stateMembers(ctx context.Context, queue string, state model.QueueState) ([]string, bool, error) {
	if state == model.QueueStateWaiting {
		ids, err := s.cli.ZRange(ctx, stateKey(queue, state), 0, -1).Result()
		if err != nil {
			return nil, false, fmt.Errorf("list %s jobs: %w", state, err)
		}
		return ids, true, nil
	}
	ids, err := s.cli.SMembers(ctx, stateKey(queue, state)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("list %s jobs: %w", state, err)
	}
	return ids, false, nil
}
