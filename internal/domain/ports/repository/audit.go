package repository

import (
	"context"

	"thewell-curation/internal/domain/model"
)

// AuditSink receives a structured record for every mutating curation action.
// Engine callers treat it as fire-and-forget: a sink failure is logged and
// never blocks the user-facing transition.
type AuditSink interface {
	LogCurationAction(ctx context.Context, action, documentID, actor string, details map[string]any) (*model.AuditRecord, error)
	ListByDocument(ctx context.Context, documentID string, limit int) ([]*model.AuditRecord, error)
}
