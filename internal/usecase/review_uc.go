package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"thewell-curation/internal/domain"
	"thewell-curation/internal/domain/model"
	"thewell-curation/internal/domain/ports/repository"
)

// Queues names the three queues the engine touches.
type Queues struct {
	Review     string
	Processing string
	Rejected   string
}

// DefaultQueues match the upstream pipeline's queue names.
var DefaultQueues = Queues{
	Review:     "document-review",
	Processing: "document-processing",
	Rejected:   "rejected-documents",
}

const (
	// Retry budget for the downstream processing job spawned on approval.
	processingAttempts = 3
	// Requeued rejections get a single delivery attempt at lowest priority.
	rejectedAttempts = 1

	jobLockTTL = 10 * time.Second
)

type StartReviewOptions struct {
	Notes string
	// Priority escalates the job's queue priority when > 0.
	Priority int
}

type ApproveOptions struct {
	Notes      string
	Visibility string
	// Tags replace the job's tag set at approval time; nil leaves it alone.
	Tags []string
}

type RejectOptions struct {
	Reason    string
	Notes     string
	Permanent bool
}

type FlagOptions struct {
	Type     string
	Reason   string
	Priority int
}

// Compile-time check
var _ ReviewUseCase = (*reviewUC)(nil)

// ReviewUseCase applies single-document workflow transitions against the job
// store. Every mutation runs under a per-job lock and emits one audit record.
type ReviewUseCase interface {
	StartReview(ctx context.Context, id, actor string, opts StartReviewOptions) (*model.ReviewJob, error)
	Approve(ctx context.Context, id, actor string, opts ApproveOptions) (*model.ReviewJob, error)
	Reject(ctx context.Context, id, actor string, opts RejectOptions) (*model.ReviewJob, error)
	Flag(ctx context.Context, id, actor string, opts FlagOptions) (*model.ReviewJob, error)
	Assign(ctx context.Context, id, actor, assignTo string) (*model.ReviewJob, error)
	AddTags(ctx context.Context, id, actor string, tags []string) (*model.ReviewJob, error)
	RemoveTags(ctx context.Context, id, actor string, tags []string) (*model.ReviewJob, error)
	PendingDocuments(ctx context.Context, offset, limit int) ([]*model.ReviewJob, error)
	Document(ctx context.Context, id string) (*model.ReviewJob, []*model.AuditRecord, error)
}

type reviewUC struct {
	store  repository.JobStore
	sink   repository.AuditSink
	locker repository.Locker
	queues Queues

	log *zerolog.Logger
}

func NewReviewUseCase(store repository.JobStore, sink repository.AuditSink, locker repository.Locker, queues Queues, logger *zerolog.Logger) *reviewUC {
	if queues.Review == "" {
		queues = DefaultQueues
	}
	l := logger.With().Str("component", "ReviewUC").Logger()
	return &reviewUC{store: store, sink: sink, locker: locker, queues: queues, log: &l}
}

// lockJob serializes writers on a single job id. A busy lock surfaces as
// domain.ErrConflict instead of a silent lost update.
func (r *reviewUC) lockJob(ctx context.Context, id string) (func(), error) {
	key := "review:lock:" + id
	token, err := r.locker.TryLock(ctx, key, jobLockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock job %s: %w", id, err)
	}
	return func() {
		if err := r.locker.Unlock(ctx, key, token); err != nil {
			r.log.Warn().Err(err).Str("job_id", id).Msg("unlock failed; lock will expire by TTL")
		}
	}, nil
}

func (r *reviewUC) audit(ctx context.Context, action, documentID, actor string, details map[string]any) {
	if _, err := r.sink.LogCurationAction(ctx, action, documentID, actor, details); err != nil {
		r.log.Warn().Err(err).Str("action", action).Str("document_id", documentID).Msg("audit sink write failed")
	}
}

func (r *reviewUC) StartReview(ctx context.Context, id, actor string, opts StartReviewOptions) (*model.ReviewJob, error) {
	unlock, err := r.lockJob(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	job, err := r.store.GetJob(ctx, r.queues.Review, id)
	if err != nil {
		return nil, err
	}
	previous := job.Status

	now := time.Now()
	job.StartReview(actor, opts.Notes, now)
	if opts.Priority > 0 && opts.Priority != job.Priority {
		if err := r.store.ChangePriority(ctx, r.queues.Review, id, opts.Priority); err != nil {
			return nil, fmt.Errorf("escalate priority: %w", err)
		}
		job.Priority = opts.Priority
	}
	if err := r.store.UpdateJob(ctx, r.queues.Review, job); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}

	r.audit(ctx, "review_started", job.DocumentID, actor, map[string]any{
		"previousStatus": string(previous),
		"notes":          opts.Notes,
		"priority":       job.Priority,
	})
	return job, nil
}

// Approve is two-phase: the downstream processing job is enqueued first and
// the review job is only completed once that enqueue succeeded. A failed
// enqueue leaves the approval metadata in place so re-running is safe.
func (r *reviewUC) Approve(ctx context.Context, id, actor string, opts ApproveOptions) (*model.ReviewJob, error) {
	unlock, err := r.lockJob(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	job, err := r.store.GetJob(ctx, r.queues.Review, id)
	if err != nil {
		return nil, err
	}

	visibility := opts.Visibility
	if visibility == "" {
		visibility = "internal"
	}
	now := time.Now()
	job.Approve(actor, opts.Notes, visibility, opts.Tags, now)
	if err := r.store.UpdateJob(ctx, r.queues.Review, job); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}

	downstream := model.NewReviewJob(uuid.NewString(), job.DocumentID, approvedPayload(job, actor), job.Priority)
	if err := r.store.AddJob(ctx, r.queues.Processing, downstream, repository.AddOptions{
		Priority: job.Priority,
		Attempts: processingAttempts,
	}); err != nil {
		return nil, fmt.Errorf("enqueue processing job: %w", err)
	}
	if err := r.store.MoveToCompleted(ctx, r.queues.Review, id, string(model.ReviewStatusApproved), false); err != nil {
		return nil, fmt.Errorf("complete review job: %w", err)
	}

	r.audit(ctx, "document_approved", job.DocumentID, actor, map[string]any{
		"visibility":      visibility,
		"tags":            job.Tags,
		"processingJobId": downstream.ID,
	})
	return job, nil
}

func (r *reviewUC) Reject(ctx context.Context, id, actor string, opts RejectOptions) (*model.ReviewJob, error) {
	if strings.TrimSpace(opts.Reason) == "" {
		return nil, domain.ErrReasonRequired
	}

	unlock, err := r.lockJob(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	job, err := r.store.GetJob(ctx, r.queues.Review, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	job.Reject(actor, opts.Reason, opts.Notes, opts.Permanent, now)
	if err := r.store.UpdateJob(ctx, r.queues.Review, job); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}

	if opts.Permanent {
		if err := r.store.MoveToFailed(ctx, r.queues.Review, id, opts.Reason, false); err != nil {
			return nil, fmt.Errorf("fail review job: %w", err)
		}
	} else {
		requeued := model.NewReviewJob(uuid.NewString(), job.DocumentID, rejectedPayload(job, actor), 0)
		if err := r.store.AddJob(ctx, r.queues.Rejected, requeued, repository.AddOptions{
			Priority: 0,
			Attempts: rejectedAttempts,
		}); err != nil {
			return nil, fmt.Errorf("enqueue rejected job: %w", err)
		}
		if err := r.store.MoveToCompleted(ctx, r.queues.Review, id, string(model.ReviewStatusRejected), false); err != nil {
			return nil, fmt.Errorf("complete review job: %w", err)
		}
	}

	r.audit(ctx, "document_rejected", job.DocumentID, actor, map[string]any{
		"reason":    opts.Reason,
		"permanent": opts.Permanent,
	})
	return job, nil
}

func (r *reviewUC) Flag(ctx context.Context, id, actor string, opts FlagOptions) (*model.ReviewJob, error) {
	if strings.TrimSpace(opts.Type) == "" {
		return nil, domain.ErrFlagTypeRequired
	}
	if opts.Priority <= 0 {
		opts.Priority = 1
	}

	unlock, err := r.lockJob(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	job, err := r.store.GetJob(ctx, r.queues.Review, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	flag := job.AddFlag(actor, opts.Type, opts.Reason, opts.Priority, now)

	// Escalation is monotonic: a lower-priority flag never demotes the job.
	if flag.Priority > job.Priority {
		if err := r.store.ChangePriority(ctx, r.queues.Review, id, flag.Priority); err != nil {
			return nil, fmt.Errorf("escalate priority: %w", err)
		}
		job.Priority = flag.Priority
	}
	if err := r.store.UpdateJob(ctx, r.queues.Review, job); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}

	r.audit(ctx, "document_flagged", job.DocumentID, actor, map[string]any{
		"flagId":   flag.ID,
		"flagType": flag.Type,
		"reason":   flag.Reason,
		"priority": flag.Priority,
	})
	return job, nil
}

func (r *reviewUC) Assign(ctx context.Context, id, actor, assignTo string) (*model.ReviewJob, error) {
	if strings.TrimSpace(assignTo) == "" {
		return nil, fmt.Errorf("%w: assignTo is required", domain.ErrInvalidArgument)
	}

	unlock, err := r.lockJob(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	job, err := r.store.GetJob(ctx, r.queues.Review, id)
	if err != nil {
		return nil, err
	}

	job.Assign(assignTo, actor, time.Now())
	if err := r.store.UpdateJob(ctx, r.queues.Review, job); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}

	r.audit(ctx, "document_assigned", job.DocumentID, actor, map[string]any{
		"assignedTo": assignTo,
	})
	return job, nil
}

func (r *reviewUC) AddTags(ctx context.Context, id, actor string, tags []string) (*model.ReviewJob, error) {
	if len(tags) == 0 {
		return nil, fmt.Errorf("%w: tags must be a non-empty array", domain.ErrInvalidArgument)
	}

	unlock, err := r.lockJob(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	job, err := r.store.GetJob(ctx, r.queues.Review, id)
	if err != nil {
		return nil, err
	}

	job.AddTags(tags, time.Now())
	if err := r.store.UpdateJob(ctx, r.queues.Review, job); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}

	r.audit(ctx, "tags_added", job.DocumentID, actor, map[string]any{"tags": tags})
	return job, nil
}

func (r *reviewUC) RemoveTags(ctx context.Context, id, actor string, tags []string) (*model.ReviewJob, error) {
	if len(tags) == 0 {
		return nil, fmt.Errorf("%w: tags must be a non-empty array", domain.ErrInvalidArgument)
	}

	unlock, err := r.lockJob(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	job, err := r.store.GetJob(ctx, r.queues.Review, id)
	if err != nil {
		return nil, err
	}

	job.RemoveTags(tags, time.Now())
	if err := r.store.UpdateJob(ctx, r.queues.Review, job); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}

	r.audit(ctx, "tags_removed", job.DocumentID, actor, map[string]any{"tags": tags})
	return job, nil
}

func (r *reviewUC) PendingDocuments(ctx context.Context, offset, limit int) ([]*model.ReviewJob, error) {
	return r.store.GetJobs(ctx, r.queues.Review, []model.QueueState{model.QueueStateWaiting}, offset, limit)
}

func (r *reviewUC) Document(ctx context.Context, id string) (*model.ReviewJob, []*model.AuditRecord, error) {
	job, err := r.store.GetJob(ctx, r.queues.Review, id)
	if err != nil {
		return nil, nil, err
	}
	trail, err := r.sink.ListByDocument(ctx, job.DocumentID, 50)
	if err != nil {
		// The document itself resolved; an unavailable trail is not fatal.
		r.log.Warn().Err(err).Str("document_id", job.DocumentID).Msg("audit trail lookup failed")
		trail = nil
	}
	return job, trail, nil
}

// approvedPayload merges the document snapshot with the approval outcome for
// the downstream processing job.
func approvedPayload(job *model.ReviewJob, actor string) map[string]any {
	p := make(map[string]any, len(job.Payload)+4)
	for k, v := range job.Payload {
		p[k] = v
	}
	p["documentId"] = job.DocumentID
	p["visibility"] = job.Visibility
	p["approvedBy"] = actor
	if len(job.Tags) > 0 {
		p["tags"] = append([]string(nil), job.Tags...)
	}
	return p
}

func rejectedPayload(job *model.ReviewJob, actor string) map[string]any {
	p := make(map[string]any, len(job.Payload)+3)
	for k, v := range job.Payload {
		p[k] = v
	}
	p["documentId"] = job.DocumentID
	p["rejectionReason"] = job.RejectionReason
	p["rejectedBy"] = actor
	return p
}
