package usecase

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"

	"thewell-curation/internal/domain"
	"thewell-curation/internal/domain/model"
	"thewell-curation/internal/domain/ports/repository"
)

// statsScanLimit bounds how many finished jobs a single aggregation reads.
const statsScanLimit = 1000

// ReviewStats is the point-in-time queue depth plus derived throughput for
// jobs finished within the requested timeframe.
type ReviewStats struct {
	Pending        int `json:"pending"`
	InReview       int `json:"inReview"`
	CompletedTotal int `json:"completedTotal"`

	Approved          int    `json:"approved"`
	Rejected          int    `json:"rejected"`
	Flagged           int    `json:"flagged"`
	ApprovalRate      int    `json:"approvalRate"`
	AvgProcessingTime int    `json:"avgProcessingTime"` // seconds
	DocumentsPerHour  int    `json:"documentsPerHour"`
	Timeframe         string `json:"timeframe"`
}

// ReviewerWorkload counts one reviewer's share of the queue.
type ReviewerWorkload struct {
	Pending   int `json:"pending"`
	InReview  int `json:"inReview"`
	Completed int `json:"completed"`
}

// WorkflowMetrics buckets in-flight and finished jobs by review status and
// per-reviewer workload.
type WorkflowMetrics struct {
	Pending  int `json:"pending"`
	InReview int `json:"inReview"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Flagged  int `json:"flagged"`

	RejectionRate int `json:"rejectionRate"`
	AvgReviewTime int `json:"avgReviewTime"` // seconds

	Workload  map[string]*ReviewerWorkload `json:"reviewerWorkload"`
	Timeframe string                       `json:"timeframe"`
}

// DocumentWorkflowStatus is the per-id answer of WorkflowStatus. Status is a
// review status, or the sentinel "not-found" / "error".
type DocumentWorkflowStatus struct {
	DocumentID      string     `json:"documentId"`
	Status          string     `json:"status"`
	WorkflowStage   string     `json:"workflowStage,omitempty"`
	AssignedTo      string     `json:"assignedTo,omitempty"`
	ReviewStartedAt *time.Time `json:"reviewStartedAt,omitempty"`
	LastUpdated     *time.Time `json:"lastUpdated,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

// StatsUseCase is read-only: it aggregates over the job store and never
// mutates a job.
type StatsUseCase interface {
	ReviewStats(ctx context.Context, timeframe time.Duration) (*ReviewStats, error)
	WorkflowMetrics(ctx context.Context, timeframe time.Duration) (*WorkflowMetrics, error)
	WorkflowStatus(ctx context.Context, ids []string) ([]DocumentWorkflowStatus, error)
}

type statsUC struct {
	store  repository.JobStore
	queues Queues

	log *zerolog.Logger
}

func NewStatsUseCase(store repository.JobStore, queues Queues, logger *zerolog.Logger) *statsUC {
	if queues.Review == "" {
		queues = DefaultQueues
	}
	l := logger.With().Str("component", "StatsUC").Logger()
	return &statsUC{store: store, queues: queues, log: &l}
}

func (s *statsUC) ReviewStats(ctx context.Context, timeframe time.Duration) (*ReviewStats, error) {
	if timeframe <= 0 {
		timeframe = 24 * time.Hour
	}
	counts, err := s.store.QueueStats(ctx, s.queues.Review)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-timeframe)
	finished, err := s.finishedJobs(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	stats := &ReviewStats{
		Pending:        counts.Waiting,
		InReview:       counts.Active,
		CompletedTotal: counts.Completed,
		Timeframe:      timeframe.String(),
	}

	var processingTotal time.Duration
	var processingSamples int
	for _, job := range finished {
		switch job.Status {
		case model.ReviewStatusApproved:
			stats.Approved++
		case model.ReviewStatusRejected:
			stats.Rejected++
		}
		if job.Flagged() {
			stats.Flagged++
		}
		if !job.ProcessedOn.IsZero() && !job.FinishedOn.IsZero() {
			processingTotal += job.FinishedOn.Sub(job.ProcessedOn)
			processingSamples++
		}
	}

	stats.ApprovalRate = ratePercent(stats.Approved, stats.Approved+stats.Rejected)
	if processingSamples > 0 {
		stats.AvgProcessingTime = int(math.Round(processingTotal.Seconds() / float64(processingSamples)))
	}
	if stats.AvgProcessingTime > 0 {
		stats.DocumentsPerHour = int(math.Round(3600 / float64(stats.AvgProcessingTime)))
	}
	return stats, nil
}

func (s *statsUC) WorkflowMetrics(ctx context.Context, timeframe time.Duration) (*WorkflowMetrics, error) {
	if timeframe <= 0 {
		timeframe = 24 * time.Hour
	}
	cutoff := time.Now().Add(-timeframe)

	jobs, err := s.store.GetJobs(ctx, s.queues.Review,
		[]model.QueueState{model.QueueStateActive, model.QueueStateCompleted, model.QueueStateFailed},
		0, statsScanLimit)
	if err != nil {
		return nil, err
	}

	m := &WorkflowMetrics{
		Workload:  map[string]*ReviewerWorkload{},
		Timeframe: timeframe.String(),
	}

	var reviewTotal time.Duration
	var reviewSamples int
	for _, job := range jobs {
		// In-flight jobs have no finish time; finished ones must fall in the window.
		if !job.FinishedOn.IsZero() && job.FinishedOn.Before(cutoff) {
			continue
		}

		switch job.Status {
		case model.ReviewStatusPending:
			m.Pending++
		case model.ReviewStatusInReview:
			m.InReview++
		case model.ReviewStatusApproved:
			m.Approved++
		case model.ReviewStatusRejected:
			m.Rejected++
		}
		if job.Flagged() {
			m.Flagged++
		}
		if !job.FinishedOn.IsZero() && !job.ReviewStartedAt.IsZero() {
			reviewTotal += job.FinishedOn.Sub(job.ReviewStartedAt)
			reviewSamples++
		}

		key := job.AssignedTo
		if key == "" {
			key = "unassigned"
		}
		wl := m.Workload[key]
		if wl == nil {
			wl = &ReviewerWorkload{}
			m.Workload[key] = wl
		}
		switch job.Status {
		case model.ReviewStatusPending:
			wl.Pending++
		case model.ReviewStatusInReview:
			wl.InReview++
		case model.ReviewStatusApproved, model.ReviewStatusRejected:
			wl.Completed++
		}
	}

	m.RejectionRate = ratePercent(m.Rejected, m.Approved+m.Rejected)
	if reviewSamples > 0 {
		m.AvgReviewTime = int(math.Round(reviewTotal.Seconds() / float64(reviewSamples)))
	}
	return m, nil
}

// WorkflowStatus resolves each id independently; a failed lookup becomes a
// sentinel entry and never aborts the batch.
func (s *statsUC) WorkflowStatus(ctx context.Context, ids []string) ([]DocumentWorkflowStatus, error) {
	if len(ids) == 0 {
		return nil, domain.ErrEmptyDocumentIDs
	}

	out := make([]DocumentWorkflowStatus, 0, len(ids))
	for _, id := range ids {
		job, err := s.store.GetJob(ctx, s.queues.Review, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				out = append(out, DocumentWorkflowStatus{DocumentID: id, Status: "not-found"})
				continue
			}
			s.log.Warn().Err(err).Str("document_id", id).Msg("workflow status lookup failed")
			out = append(out, DocumentWorkflowStatus{DocumentID: id, Status: "error", Error: err.Error()})
			continue
		}

		entry := DocumentWorkflowStatus{
			DocumentID:    id,
			Status:        string(job.Status),
			WorkflowStage: workflowStage(job),
			AssignedTo:    job.AssignedTo,
		}
		if !job.ReviewStartedAt.IsZero() {
			t := job.ReviewStartedAt
			entry.ReviewStartedAt = &t
		}
		if !job.UpdatedAt.IsZero() {
			t := job.UpdatedAt
			entry.LastUpdated = &t
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *statsUC) finishedJobs(ctx context.Context, cutoff time.Time) ([]*model.ReviewJob, error) {
	jobs, err := s.store.GetJobs(ctx, s.queues.Review,
		[]model.QueueState{model.QueueStateCompleted, model.QueueStateFailed},
		0, statsScanLimit)
	if err != nil {
		return nil, err
	}
	filtered := jobs[:0]
	for _, job := range jobs {
		if !job.FinishedOn.IsZero() && !job.FinishedOn.Before(cutoff) {
			filtered = append(filtered, job)
		}
	}
	return filtered, nil
}

// ratePercent is 0 when the denominator is 0, never a division error.
func ratePercent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

func workflowStage(job *model.ReviewJob) string {
	switch job.Status {
	case model.ReviewStatusPending:
		return "queued"
	case model.ReviewStatusInReview:
		return "manual-review"
	case model.ReviewStatusApproved:
		return "processing"
	case model.ReviewStatusRejected:
		if job.Permanent {
			return "closed"
		}
		return "requeued"
	}
	return "unknown"
}
