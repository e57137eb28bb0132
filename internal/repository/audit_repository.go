package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/campusops/enrollsync/internal/db"
	"github.com/campusops/enrollsync/internal/domain"

	"github.com/google/uuid"
)

type auditRepository struct {
	q db.Querier
}

func (r *auditRepository) Record(ctx context.Context, event domain.AuditEvent) error {
	before, err := json.Marshal(event.BeforeCounts)
	if err != nil {
		return fmt.Errorf("failed to marshal before counts: %w", err)
	}
	after, err := json.Marshal(event.AfterCounts)
	if err != nil {
		return fmt.Errorf("failed to marshal after counts: %w", err)
	}

	_, err = r.q.Exec(ctx,
		`INSERT INTO audit_events (id, organization_id, batch_id, actor, action, before_counts, after_counts, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.OrganizationID, event.BatchID, event.Actor, event.Action,
		before, after, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

func (r *auditRepository) ListByBatch(ctx context.Context, organizationID, batchID uuid.UUID) ([]domain.AuditEvent, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, organization_id, batch_id, actor, action, before_counts, after_counts, created_at
		 FROM audit_events
		 WHERE organization_id = $1 AND batch_id = $2
		 ORDER BY created_at ASC`,
		organizationID, batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	events := []domain.AuditEvent{}
	for rows.Next() {
		var event domain.AuditEvent
		var before, after []byte
		if err := rows.Scan(
			&event.ID, &event.OrganizationID, &event.BatchID, &event.Actor, &event.Action,
			&before, &after, &event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if len(before) > 0 {
			if err := json.Unmarshal(before, &event.BeforeCounts); err != nil {
				return nil, fmt.Errorf("failed to decode before counts: %w", err)
			}
		}
		if len(after) > 0 {
			if err := json.Unmarshal(after, &event.AfterCounts); err != nil {
				return nil, fmt.Errorf("failed to decode after counts: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}

	return events, nil
}
