package postgres

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"thewell-curation/internal/domain"
	"thewell-curation/internal/domain/model"
	"thewell-curation/internal/domain/ports/repository"
	"thewell-curation/internal/infra/metrics"
)

var _ repository.AuditSink = (*auditRepo)(nil)

// auditRepo persists one row per mutating curation action. Record ids are
// ULIDs so the trail sorts chronologically by primary key.
type auditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *auditRepo {
	return &auditRepo{pool: pool}
}

func (r *auditRepo) LogCurationAction(ctx context.Context, action, documentID, actor string, details map[string]any) (*model.AuditRecord, error) {
	rec := &model.AuditRecord{
		ID:         ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		Action:     action,
		DocumentID: documentID,
		Actor:      actor,
		Details:    details,
		CreatedAt:  time.Now(),
	}

	var detailsJSON []byte
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return nil, fmt.Errorf("encode audit details: %w", err)
		}
		detailsJSON = b
	}

	const q = `
INSERT INTO curation_audit (id, action, document_id, actor, details, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.pool.Exec(ctx, q, rec.ID, rec.Action, nullable(rec.DocumentID), rec.Actor, detailsJSON, rec.CreatedAt); err != nil {
		metrics.IncAuditWriteFailure()
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert audit record: %w", err)
	}
	return rec, nil
}

func (r *auditRepo) ListByDocument(ctx context.Context, documentID string, limit int) ([]*model.AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	const q = `
SELECT id, action, document_id, actor, details, created_at
FROM curation_audit
WHERE document_id = $1
ORDER BY id DESC
LIMIT $2`

	rows, err := r.pool.Query(ctx, q, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var out []*model.AuditRecord
	for rows.Next() {
		var rec model.AuditRecord
		var docID *string
		var detailsJSON []byte
		if err := rows.Scan(&rec.ID, &rec.Action, &docID, &rec.Actor, &detailsJSON, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		if docID != nil {
			rec.DocumentID = *docID
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &rec.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
