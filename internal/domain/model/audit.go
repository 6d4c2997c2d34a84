package model

import "time"

// AuditRecord is one entry in the curation audit trail. Every mutating
// workflow action produces exactly one record.
type AuditRecord struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	DocumentID string         `json:"documentId,omitempty"`
	Actor      string         `json:"actor"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}
