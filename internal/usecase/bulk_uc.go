package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"thewell-curation/internal/domain"
	"thewell-curation/internal/domain/model"
)

// BulkItemResult records one id that went through the transition.
type BulkItemResult struct {
	DocumentID string             `json:"documentId"`
	Status     model.ReviewStatus `json:"status"`
}

// BulkItemError records one id that did not, with the reason.
type BulkItemError struct {
	DocumentID string `json:"documentId"`
	Error      string `json:"error"`
}

type BulkSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// BulkOutcome is the aggregate of a bulk call. Partial success is a normal,
// non-error outcome at the batch level.
type BulkOutcome struct {
	Results []BulkItemResult `json:"results"`
	Errors  []BulkItemError  `json:"errors"`
	Summary BulkSummary      `json:"summary"`
}

// Compile-time check
var _ BulkUseCase = (*bulkUC)(nil)

// BulkUseCase wraps the single-document transitions to operate over a list of
// document ids. Batch-level validation fails fast before any per-item work;
// per-item failures are isolated and never abort the remaining ids.
type BulkUseCase interface {
	BulkApprove(ctx context.Context, ids []string, actor string, opts ApproveOptions) (*BulkOutcome, error)
	BulkReject(ctx context.Context, ids []string, actor string, opts RejectOptions) (*BulkOutcome, error)
	BulkStartReview(ctx context.Context, ids []string, actor string, opts StartReviewOptions) (*BulkOutcome, error)
	BulkFlag(ctx context.Context, ids []string, actor string, opts FlagOptions) (*BulkOutcome, error)
	BulkAssign(ctx context.Context, ids []string, actor, assignTo string) (*BulkOutcome, error)
	BulkAddTags(ctx context.Context, ids []string, actor string, tags []string) (*BulkOutcome, error)
	BulkRemoveTags(ctx context.Context, ids []string, actor string, tags []string) (*BulkOutcome, error)
}

type bulkUC struct {
	review ReviewUseCase
	log    *zerolog.Logger
}

func NewBulkUseCase(review ReviewUseCase, logger *zerolog.Logger) *bulkUC {
	l := logger.With().Str("component", "BulkUC").Logger()
	return &bulkUC{review: review, log: &l}
}

// run iterates ids sequentially so per-item error attribution stays
// deterministic and the job store is not hammered concurrently.
func (b *bulkUC) run(ctx context.Context, operation string, ids []string, apply func(ctx context.Context, id string) (*model.ReviewJob, error)) (*BulkOutcome, error) {
	if len(ids) == 0 {
		return nil, domain.ErrEmptyDocumentIDs
	}

	out := &BulkOutcome{
		Results: make([]BulkItemResult, 0, len(ids)),
		Errors:  []BulkItemError{},
	}
	for _, id := range ids {
		job, err := apply(ctx, id)
		if err != nil {
			out.Errors = append(out.Errors, BulkItemError{DocumentID: id, Error: itemErrorMessage(err)})
			continue
		}
		out.Results = append(out.Results, BulkItemResult{DocumentID: id, Status: job.Status})
	}
	out.Summary = BulkSummary{
		Total:      len(ids),
		Successful: len(out.Results),
		Failed:     len(out.Errors),
	}
	b.log.Info().
		Str("operation", operation).
		Int("total", out.Summary.Total).
		Int("successful", out.Summary.Successful).
		Int("failed", out.Summary.Failed).
		Msg("bulk operation finished")
	return out, nil
}

func itemErrorMessage(err error) string {
	if errors.Is(err, domain.ErrNotFound) {
		return "Document not found"
	}
	return err.Error()
}

func (b *bulkUC) BulkApprove(ctx context.Context, ids []string, actor string, opts ApproveOptions) (*BulkOutcome, error) {
	return b.run(ctx, "approve", ids, func(ctx context.Context, id string) (*model.ReviewJob, error) {
		return b.review.Approve(ctx, id, actor, opts)
	})
}

func (b *bulkUC) BulkReject(ctx context.Context, ids []string, actor string, opts RejectOptions) (*BulkOutcome, error) {
	if strings.TrimSpace(opts.Reason) == "" {
		return nil, domain.ErrReasonRequired
	}
	return b.run(ctx, "reject", ids, func(ctx context.Context, id string) (*model.ReviewJob, error) {
		return b.review.Reject(ctx, id, actor, opts)
	})
}

func (b *bulkUC) BulkStartReview(ctx context.Context, ids []string, actor string, opts StartReviewOptions) (*BulkOutcome, error) {
	return b.run(ctx, "start-review", ids, func(ctx context.Context, id string) (*model.ReviewJob, error) {
		return b.review.StartReview(ctx, id, actor, opts)
	})
}

func (b *bulkUC) BulkFlag(ctx context.Context, ids []string, actor string, opts FlagOptions) (*BulkOutcome, error) {
	if strings.TrimSpace(opts.Type) == "" {
		return nil, domain.ErrFlagTypeRequired
	}
	return b.run(ctx, "flag", ids, func(ctx context.Context, id string) (*model.ReviewJob, error) {
		return b.review.Flag(ctx, id, actor, opts)
	})
}

func (b *bulkUC) BulkAssign(ctx context.Context, ids []string, actor, assignTo string) (*BulkOutcome, error) {
	if strings.TrimSpace(assignTo) == "" {
		return nil, fmt.Errorf("%w: assignTo is required", domain.ErrInvalidArgument)
	}
	return b.run(ctx, "assign", ids, func(ctx context.Context, id string) (*model.ReviewJob, error) {
		return b.review.Assign(ctx, id, actor, assignTo)
	})
}

func (b *bulkUC) BulkAddTags(ctx context.Context, ids []string, actor string, tags []string) (*BulkOutcome, error) {
	if len(tags) == 0 {
		return nil, fmt.Errorf("%w: tags must be a non-empty array", domain.ErrInvalidArgument)
	}
	return b.run(ctx, "add-tags", ids, func(ctx context.Context, id string) (*model.ReviewJob, error) {
		return b.review.AddTags(ctx, id, actor, tags)
	})
}

func (b *bulkUC) BulkRemoveTags(ctx context.Context, ids []string, actor string, tags []string) (*BulkOutcome, error) {
	if len(tags) == 0 {
		return nil, fmt.Errorf("%w: tags must be a non-empty array", domain.ErrInvalidArgument)
	}
	return b.run(ctx, "remove-tags", ids, func(ctx context.Context, id string) (*model.ReviewJob, error) {
		return b.review.RemoveTags(ctx, id, actor, tags)
	})
}
