//go:build !integration

package web

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"thewell-curation/internal/domain"
	"thewell-curation/internal/domain/model"
	"thewell-curation/internal/domain/ports/repository"
)

// Compile-time checks
var (
	_ repository.JobStore  = (*fakeJobStore)(nil)
	_ repository.AuditSink = (*fakeAuditSink)(nil)
	_ repository.Locker    = (*fakeLocker)(nil)
)

// fakeJobStore is a minimal in-memory JobStore so the handlers run against
// the real use cases end to end.
type fakeJobStore struct {
	mu     sync.Mutex
	queues map[string]map[string]*model.ReviewJob
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{queues: map[string]map[string]*model.ReviewJob{}}
}

func (f *fakeJobStore) queue(name string) map[string]*model.ReviewJob {
	q, ok := f.queues[name]
	if !ok {
		q = map[string]*model.ReviewJob{}
		f.queues[name] = q
	}
	return q
}

func (f *fakeJobStore) put(queue string, job *model.ReviewJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue(queue)[job.ID] = job.Clone()
}

func (f *fakeJobStore) stored(queue, id string) *model.ReviewJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job, ok := f.queue(queue)[id]; ok {
		return job.Clone()
	}
	return nil
}

func (f *fakeJobStore) count(queue string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue(queue))
}

func (f *fakeJobStore) GetJob(_ context.Context, queue, id string) (*model.ReviewJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.queue(queue)[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job.Clone(), nil
}

func (f *fakeJobStore) AddJob(_ context.Context, queue string, job *model.ReviewJob, opts repository.AddOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.queue(queue)
	if _, ok := q[job.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := job.Clone()
	cp.Priority = opts.Priority
	cp.MaxAttempts = opts.Attempts
	if cp.MaxAttempts <= 0 {
		cp.MaxAttempts = 1
	}
	cp.State = model.QueueStateWaiting
	q[job.ID] = cp
	return nil
}

func (f *fakeJobStore) UpdateJob(_ context.Context, queue string, job *model.ReviewJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.queue(queue)
	current, ok := q[job.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cp := job.Clone()
	cp.State = current.State
	if cp.Status == model.ReviewStatusInReview && cp.State == model.QueueStateWaiting {
		cp.State = model.QueueStateActive
	}
	q[job.ID] = cp
	return nil
}

func (f *fakeJobStore) MoveToCompleted(_ context.Context, queue, id, result string, remove bool) error {
	return f.finish(queue, id, model.QueueStateCompleted, remove, func(j *model.ReviewJob) { j.Result = result })
}

func (f *fakeJobStore) MoveToFailed(_ context.Context, queue, id, reason string, remove bool) error {
	return f.finish(queue, id, model.QueueStateFailed, remove, func(j *model.ReviewJob) { j.FailedReason = reason })
}

func (f *fakeJobStore) finish(queue, id string, target model.QueueState, remove bool, apply func(*model.ReviewJob)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.queue(queue)
	job, ok := q[id]
	if !ok {
		return domain.ErrNotFound
	}
	if remove {
		delete(q, id)
		return nil
	}
	job.State = target
	job.FinishedOn = time.Now()
	apply(job)
	return nil
}

func (f *fakeJobStore) ChangePriority(_ context.Context, queue, id string, priority int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.queue(queue)[id]
	if !ok {
		return domain.ErrNotFound
	}
	job.Priority = priority
	return nil
}

func (f *fakeJobStore) GetJobs(_ context.Context, queue string, states []model.QueueState, offset, limit int) ([]*model.ReviewJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := map[model.QueueState]struct{}{}
	for _, st := range states {
		want[st] = struct{}{}
	}
	var out []*model.ReviewJob
	for _, job := range f.queue(queue) {
		if _, ok := want[job.State]; ok {
			out = append(out, job.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeJobStore) QueueStats(_ context.Context, queue string) (model.QueueStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stats model.QueueStats
	for _, job := range f.queue(queue) {
		switch job.State {
		case model.QueueStateWaiting:
			stats.Waiting++
		case model.QueueStateActive:
			stats.Active++
		case model.QueueStateCompleted:
			stats.Completed++
		case model.QueueStateFailed:
			stats.Failed++
		case model.QueueStateDelayed:
			stats.Delayed++
		}
	}
	return stats, nil
}

type fakeAuditSink struct {
	mu      sync.Mutex
	records []*model.AuditRecord
}

func (f *fakeAuditSink) LogCurationAction(_ context.Context, action, documentID, actor string, details map[string]any) (*model.AuditRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := &model.AuditRecord{
		ID:         fmt.Sprintf("audit-%d", len(f.records)+1),
		Action:     action,
		DocumentID: documentID,
		Actor:      actor,
		Details:    details,
		CreatedAt:  time.Now(),
	}
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *fakeAuditSink) ListByDocument(_ context.Context, documentID string, limit int) ([]*model.AuditRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.AuditRecord
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		if f.records[i].DocumentID == documentID {
			out = append(out, f.records[i])
		}
	}
	return out, nil
}

// fakeLocker always grants the lock; lock contention is covered at the
// use case level.
type fakeLocker struct{}

func (fakeLocker) TryLock(context.Context, string, time.Duration) (string, error) { return "t", nil }
func (fakeLocker) Unlock(context.Context, string, string) error                   { return nil }
