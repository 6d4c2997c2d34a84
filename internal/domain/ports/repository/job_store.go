package repository

import (
	"context"

	"thewell-curation/internal/domain/model"
)

// AddOptions controls queue placement for a newly enqueued job.
type AddOptions struct {
	Priority int
	Attempts int
}

// JobStore is the priority-queue-backed persistence layer holding review
// jobs. It owns the delivery axis (queue states, attempts); the workflow
// engine owns the review axis. This port is the single abstraction boundary
// between the engine and whatever queue backs it.
type JobStore interface {
	// GetJob returns the job by id, or domain.ErrNotFound.
	GetJob(ctx context.Context, queue, id string) (*model.ReviewJob, error)

	// AddJob enqueues a new job in waiting state.
	AddJob(ctx context.Context, queue string, job *model.ReviewJob, opts AddOptions) error

	// UpdateJob persists the job's data. The write must merge over the
	// stored record, never erase fields the caller did not touch.
	UpdateJob(ctx context.Context, queue string, job *model.ReviewJob) error

	// MoveToCompleted transitions the job to the completed queue state,
	// recording result. When removeOnComplete is true the record is dropped
	// instead of retained.
	MoveToCompleted(ctx context.Context, queue, id, result string, removeOnComplete bool) error

	// MoveToFailed transitions the job to the failed queue state carrying
	// reason as the failure cause.
	MoveToFailed(ctx context.Context, queue, id, reason string, removeOnFail bool) error

	// ChangePriority re-scores the job inside its queue.
	ChangePriority(ctx context.Context, queue, id string, priority int) error

	// GetJobs pages through jobs in the given queue states.
	GetJobs(ctx context.Context, queue string, states []model.QueueState, offset, limit int) ([]*model.ReviewJob, error)

	// QueueStats returns the point-in-time depth counters for a queue.
	QueueStats(ctx context.Context, queue string) (model.QueueStats, error)
}
