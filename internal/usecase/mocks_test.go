//go:build !integration

// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"thewell-curation/internal/domain"
	"thewell-curation/internal/domain/model"
	"thewell-curation/internal/domain/ports/repository"
)

// memJobStore is a small in-memory job store used by unit tests. It mirrors
// the Redis adapter's semantics: waiting jobs order by priority, an in-review
// update promotes waiting to active, finishing stamps FinishedOn.
type memJobStore struct {
	mu     sync.Mutex
	queues map[string]map[string]*model.ReviewJob

	AddErr      error // used by tests to simulate enqueue failures
	UpdateErr   error
	CompleteErr error
	GetErrFor   map[string]error // per-id lookup failures
}

func newMemJobStore() *memJobStore {
	return &memJobStore{queues: make(map[string]map[string]*model.ReviewJob)}
}

func (m *memJobStore) queue(name string) map[string]*model.ReviewJob {
	q, ok := m.queues[name]
	if !ok {
		q = make(map[string]*model.ReviewJob)
		m.queues[name] = q
	}
	return q
}

// put seeds a job directly, bypassing AddJob error injection.
func (m *memJobStore) put(queue string, job *model.ReviewJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue(queue)[job.ID] = job.Clone()
}

// stored returns the persisted record, or nil.
func (m *memJobStore) stored(queue, id string) *model.ReviewJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.queue(queue)[id]; ok {
		return job.Clone()
	}
	return nil
}

func (m *memJobStore) jobsIn(queue string) []*model.ReviewJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ReviewJob
	for _, job := range m.queue(queue) {
		out = append(out, job.Clone())
	}
	return out
}

func (m *memJobStore) GetJob(ctx context.Context, queue, id string) (*model.ReviewJob, error) {
	if err := m.GetErrFor[id]; err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.queue(queue)[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job.Clone(), nil
}

func (m *memJobStore) AddJob(ctx context.Context, queue string, job *model.ReviewJob, opts repository.AddOptions) error {
	if m.AddErr != nil {
		return m.AddErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queue(queue)[job.ID]; ok {
		return domain.ErrAlreadyExists
	}
	job.Priority = opts.Priority
	if opts.Attempts > 0 {
		job.MaxAttempts = opts.Attempts
	} else {
		job.MaxAttempts = 1
	}
	job.State = model.QueueStateWaiting
	m.queue(queue)[job.ID] = job.Clone()
	return nil
}

func (m *memJobStore) UpdateJob(ctx context.Context, queue string, job *model.ReviewJob) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queue(queue)[job.ID]; !ok {
		return domain.ErrNotFound
	}
	if job.Status == model.ReviewStatusInReview && job.State == model.QueueStateWaiting {
		job.State = model.QueueStateActive
	}
	m.queue(queue)[job.ID] = job.Clone()
	return nil
}

func (m *memJobStore) MoveToCompleted(ctx context.Context, queue, id, result string, removeOnComplete bool) error {
	if m.CompleteErr != nil {
		return m.CompleteErr
	}
	return m.finish(queue, id, model.QueueStateCompleted, removeOnComplete, func(job *model.ReviewJob) {
		job.Result = result
	})
}

func (m *memJobStore) MoveToFailed(ctx context.Context, queue, id, reason string, removeOnFail bool) error {
	return m.finish(queue, id, model.QueueStateFailed, removeOnFail, func(job *model.ReviewJob) {
		job.FailedReason = reason
	})
}

func (m *memJobStore) finish(queue, id string, target model.QueueState, remove bool, apply func(*model.ReviewJob)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.queue(queue)[id]
	if !ok {
		return domain.ErrNotFound
	}
	if remove {
		delete(m.queue(queue), id)
		return nil
	}
	job.State = target
	job.FinishedOn = time.Now()
	apply(job)
	return nil
}

func (m *memJobStore) ChangePriority(ctx context.Context, queue, id string, priority int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.queue(queue)[id]
	if !ok {
		return domain.ErrNotFound
	}
	job.Priority = priority
	return nil
}

func (m *memJobStore) GetJobs(ctx context.Context, queue string, states []model.QueueState, offset, limit int) ([]*model.ReviewJob, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	want := make(map[model.QueueState]struct{}, len(states))
	for _, st := range states {
		want[st] = struct{}{}
	}
	var jobs []*model.ReviewJob
	for _, job := range m.queue(queue) {
		if _, ok := want[job.State]; ok {
			jobs = append(jobs, job.Clone())
		}
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].Priority != jobs[j].Priority {
			return jobs[i].Priority > jobs[j].Priority
		}
		return jobs[i].ID < jobs[j].ID
	})

	if offset >= len(jobs) {
		return []*model.ReviewJob{}, nil
	}
	end := offset + limit
	if end > len(jobs) {
		end = len(jobs)
	}
	return jobs[offset:end], nil
}

func (m *memJobStore) QueueStats(ctx context.Context, queue string) (model.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats model.QueueStats
	for _, job := range m.queue(queue) {
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

// memAuditSink records every action in memory.
type memAuditSink struct {
	mu      sync.Mutex
	records []*model.AuditRecord

	LogErr error // used by tests to simulate sink outages
}

func newMemAuditSink() *memAuditSink {
	return &memAuditSink{}
}

func (m *memAuditSink) LogCurationAction(ctx context.Context, action, documentID, actor string, details map[string]any) (*model.AuditRecord, error) {
	if m.LogErr != nil {
		return nil, m.LogErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := &model.AuditRecord{
		ID:         action + "-" + documentID,
		Action:     action,
		DocumentID: documentID,
		Actor:      actor,
		Details:    details,
		CreatedAt:  time.Now(),
	}
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *memAuditSink) ListByDocument(ctx context.Context, documentID string, limit int) ([]*model.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AuditRecord
	for _, rec := range m.records {
		if rec.DocumentID == documentID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memAuditSink) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec.Action)
	}
	return out
}
