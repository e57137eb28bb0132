package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEvent captures one state-changing call against a batch.
type AuditEvent struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	BatchID        uuid.UUID `json:"batch_id"`
	Actor          string    `json:"actor"`
	Action         string    `json:"action"`
	BeforeCounts   RowCounts `json:"before_counts"`
	AfterCounts    RowCounts `json:"after_counts"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewAuditEvent stamps a fresh event for a state-changing call.
func NewAuditEvent(organizationID, batchID uuid.UUID, actor, action string, before, after RowCounts) AuditEvent {
	return AuditEvent{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		BatchID:        batchID,
		Actor:          actor,
		Action:         action,
		BeforeCounts:   before,
		AfterCounts:    after,
		CreatedAt:      time.Now(),
	}
}
