package model

import (
	"time"

	"github.com/google/uuid"
)

// ReviewStatus is the human-curation lifecycle of a document. It is distinct
// from QueueState, which the job store owns.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusInReview ReviewStatus = "in-review"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

var reviewStatusSet = map[ReviewStatus]struct{}{
	ReviewStatusPending:  {},
	ReviewStatusInReview: {},
	ReviewStatusApproved: {},
	ReviewStatusRejected: {},
}

// Valid reports whether s is one of the known review statuses.
func (s ReviewStatus) Valid() bool {
	_, ok := reviewStatusSet[s]
	return ok
}

// Terminal reports whether no further review transitions apply.
func (s ReviewStatus) Terminal() bool {
	return s == ReviewStatusApproved || s == ReviewStatusRejected
}

// QueueState is the delivery axis owned by the job store.
type QueueState string

const (
	QueueStateWaiting   QueueState = "waiting"
	QueueStateActive    QueueState = "active"
	QueueStateCompleted QueueState = "completed"
	QueueStateFailed    QueueState = "failed"
	QueueStateDelayed   QueueState = "delayed"
)

// Flag is an additive signal layered on a job regardless of its status.
type Flag struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Reason    string    `json:"reason,omitempty"`
	FlaggedBy string    `json:"flaggedBy"`
	FlaggedAt time.Time `json:"flaggedAt"`
	Priority  int       `json:"priority"`
	Resolved  bool      `json:"resolved"`
}

// QueueStats is a point-in-time depth snapshot of a single queue.
type QueueStats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Delayed   int `json:"delayed"`
}

// ReviewJob is the unit the workflow engine mutates. Field groups are only
// ever touched by their owning transition; Flags and Tags grow additively and
// shrink only through the explicit remove operations.
type ReviewJob struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"documentId"`
	Payload    map[string]any `json:"payload,omitempty"`

	Status   ReviewStatus `json:"status"`
	Priority int          `json:"priority"`

	Flags []Flag   `json:"flags,omitempty"`
	Tags  []string `json:"tags,omitempty"`

	AssignedTo string    `json:"assignedTo,omitempty"`
	AssignedBy string    `json:"assignedBy,omitempty"`
	AssignedAt time.Time `json:"assignedAt,omitempty"`

	ReviewStartedBy string    `json:"reviewStartedBy,omitempty"`
	ReviewStartedAt time.Time `json:"reviewStartedAt,omitempty"`
	ReviewNotes     string    `json:"reviewNotes,omitempty"`

	ApprovedBy string    `json:"approvedBy,omitempty"`
	ApprovedAt time.Time `json:"approvedAt,omitempty"`
	Visibility string    `json:"visibility,omitempty"`

	RejectedBy      string    `json:"rejectedBy,omitempty"`
	RejectedAt      time.Time `json:"rejectedAt,omitempty"`
	RejectionReason string    `json:"rejectionReason,omitempty"`
	Permanent       bool      `json:"permanent,omitempty"`

	// Delivery bookkeeping owned by the job store; read-only for the engine.
	AttemptsMade int `json:"attemptsMade"`
	MaxAttempts  int `json:"maxAttempts"`

	State        QueueState `json:"state"`
	ProcessedOn  time.Time  `json:"processedOn,omitempty"`
	FinishedOn   time.Time  `json:"finishedOn,omitempty"`
	Result       string     `json:"result,omitempty"`
	FailedReason string     `json:"failedReason,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewReviewJob builds a pending job for a document snapshot.
func NewReviewJob(id, documentID string, payload map[string]any, priority int) *ReviewJob {
	now := time.Now()
	return &ReviewJob{
		ID:         id,
		DocumentID: documentID,
		Payload:    payload,
		Status:     ReviewStatusPending,
		Priority:   priority,
		State:      QueueStateWaiting,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (j *ReviewJob) touch(now time.Time) {
	j.UpdatedAt = now
}

// StartReview moves the job to in-review and records who picked it up.
// Calling it again resets ReviewStartedAt; it is idempotent, not cumulative.
func (j *ReviewJob) StartReview(actor, notes string, now time.Time) {
	j.Status = ReviewStatusInReview
	j.AssignedTo = actor
	j.ReviewStartedBy = actor
	j.ReviewStartedAt = now
	if j.ProcessedOn.IsZero() {
		j.ProcessedOn = now
	}
	if notes != "" {
		j.ReviewNotes = notes
	}
	j.touch(now)
}

// Approve records the terminal approval decision. Caller-supplied tags replace
// the existing set at approval time, unlike the additive tag operations.
func (j *ReviewJob) Approve(actor, notes, visibility string, tags []string, now time.Time) {
	j.Status = ReviewStatusApproved
	j.ApprovedBy = actor
	j.ApprovedAt = now
	j.Visibility = visibility
	if tags != nil {
		j.Tags = dedupe(tags)
	}
	if notes != "" {
		j.ReviewNotes = notes
	}
	j.touch(now)
}

// Reject records the terminal rejection decision.
func (j *ReviewJob) Reject(actor, reason, notes string, permanent bool, now time.Time) {
	j.Status = ReviewStatusRejected
	j.RejectedBy = actor
	j.RejectedAt = now
	j.RejectionReason = reason
	j.Permanent = permanent
	if notes != "" {
		j.ReviewNotes = notes
	}
	j.touch(now)
}

// AddFlag appends a flag with a fresh id and returns it. Flags never change
// the review status.
func (j *ReviewJob) AddFlag(actor, flagType, reason string, priority int, now time.Time) Flag {
	f := Flag{
		ID:        uuid.NewString(),
		Type:      flagType,
		Reason:    reason,
		FlaggedBy: actor,
		FlaggedAt: now,
		Priority:  priority,
		Resolved:  false,
	}
	j.Flags = append(j.Flags, f)
	j.touch(now)
	return f
}

// Assign overwrites the current reviewer assignment.
func (j *ReviewJob) Assign(assignTo, assignedBy string, now time.Time) {
	j.AssignedTo = assignTo
	j.AssignedBy = assignedBy
	j.AssignedAt = now
	j.touch(now)
}

// AddTags unions tags into the job's tag set, preserving first-seen order.
func (j *ReviewJob) AddTags(tags []string, now time.Time) {
	seen := make(map[string]struct{}, len(j.Tags))
	for _, t := range j.Tags {
		seen[t] = struct{}{}
	}
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		j.Tags = append(j.Tags, t)
	}
	j.touch(now)
}

// RemoveTags set-subtracts tags; removing an absent tag is a no-op.
func (j *ReviewJob) RemoveTags(tags []string, now time.Time) {
	drop := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		drop[t] = struct{}{}
	}
	kept := j.Tags[:0]
	for _, t := range j.Tags {
		if _, ok := drop[t]; !ok {
			kept = append(kept, t)
		}
	}
	j.Tags = kept
	j.touch(now)
}

// Flagged reports whether the job carries at least one flag.
func (j *ReviewJob) Flagged() bool {
	return len(j.Flags) > 0
}

// Clone returns a deep copy so read-modify-write never aliases caller state.
func (j *ReviewJob) Clone() *ReviewJob {
	cp := *j
	if j.Payload != nil {
		cp.Payload = make(map[string]any, len(j.Payload))
		for k, v := range j.Payload {
			cp.Payload[k] = v
		}
	}
	cp.Flags = append([]Flag(nil), j.Flags...)
	cp.Tags = append([]string(nil), j.Tags...)
	return &cp
}

func dedupe(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
