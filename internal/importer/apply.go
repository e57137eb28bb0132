package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/campusops/enrollsync/internal/db"
	"github.com/campusops/enrollsync/internal/domain"
	"github.com/campusops/enrollsync/internal/repository"

	"github.com/google/uuid"
)

// RowOutcome reports what the apply step did for one staged row.
type RowOutcome struct {
	RowNumber int                 `json:"row_number"`
	Action    domain.ChangeAction `json:"action"`
	TargetID  *uuid.UUID          `json:"target_id,omitempty"`
}

// ApplyResult is the final status and per-row outcome of a commit attempt.
type ApplyResult struct {
	Batch    domain.Batch `json:"batch"`
	Outcomes []RowOutcome `json:"outcomes"`
}

// ApplyBatch commits all non-excluded proposed changes of a PROPOSED_OK
// batch inside one transaction. Either the whole batch commits or none of
// it does. A statement failure rolls back and leaves the batch retryable in
// APPLY_FAILED; a failed commit has an unknown outcome and parks the batch
// in RECONCILE_REQUIRED for an operator.
func (s *Service) ApplyBatch(ctx context.Context, organizationID, batchID uuid.UUID, actor string) (ApplyResult, error) {
	var result ApplyResult

	txErr := s.store.InTx(ctx, func(tx repository.Store) error {
		batches := tx.Batches()

		batch, err := batches.GetByID(ctx, organizationID, batchID)
		if err != nil {
			return err
		}
		if !batch.Status.IsApplyable() {
			return fmt.Errorf("%w: batch is %s", ErrStateConflict, batch.Status)
		}

		rows, _, err := batches.ListRows(ctx, organizationID, batchID, nil, batch.Counts.Total, 0)
		if err != nil {
			return err
		}

		outcomes := make([]RowOutcome, 0, len(rows))
		for _, row := range rows {
			if row.Change.IsExcluded || row.Status != domain.RowStatusValid {
				continue
			}

			switch row.Change.Action {
			case domain.ActionInsert:
				if row.Record == nil {
					return fmt.Errorf("row %d has no record to insert", row.RowNumber)
				}
				enrollment := domain.NewEnrollment(organizationID, *row.Record)
				if err := tx.Enrollments().Create(ctx, enrollment); err != nil {
					return err
				}
				target := enrollment.ID
				outcomes = append(outcomes, RowOutcome{RowNumber: row.RowNumber, Action: domain.ActionInsert, TargetID: &target})
			case domain.ActionUpdate:
				if row.Record == nil || row.Change.TargetID == nil {
					return fmt.Errorf("row %d has no update target", row.RowNumber)
				}
				target, err := tx.Enrollments().GetByID(ctx, organizationID, *row.Change.TargetID)
				if err != nil {
					return err
				}
				if err := tx.Enrollments().Update(ctx, row.Record.ApplyTo(target)); err != nil {
					return err
				}
				outcomes = append(outcomes, RowOutcome{RowNumber: row.RowNumber, Action: domain.ActionUpdate, TargetID: row.Change.TargetID})
			case domain.ActionNoop:
				// deliberate skip, still reported
				outcomes = append(outcomes, RowOutcome{RowNumber: row.RowNumber, Action: domain.ActionNoop, TargetID: row.Change.TargetID})
			default:
				return fmt.Errorf("row %d has no decided action", row.RowNumber)
			}
		}

		appliedAt := nowUTC()
		batch.Status = domain.BatchStatusApplied
		batch.AppliedBy = &actor
		batch.AppliedAt = &appliedAt
		if err := batches.UpdateStatus(ctx, batch); err != nil {
			return err
		}

		if err := tx.Audits().Record(ctx, domain.NewAuditEvent(
			organizationID, batchID, actor, "batch.apply", batch.Counts, batch.Counts,
		)); err != nil {
			return err
		}

		result = ApplyResult{Batch: batch, Outcomes: outcomes}
		return nil
	})

	if txErr == nil {
		s.log.Info().
			Str("batch_id", batchID.String()).
			Int("rows", len(result.Outcomes)).
			Msg("batch applied")
		return result, nil
	}

	if errors.Is(txErr, ErrStateConflict) || errors.Is(txErr, repository.ErrNotFound) {
		return ApplyResult{}, txErr
	}

	// System failure: record an explicit failure status so the batch is never
	// left looking half-applied.
	failedStatus := domain.BatchStatusApplyFailed
	if errors.Is(txErr, db.ErrCommitFailed) {
		failedStatus = domain.BatchStatusReconcileRequired
	}

	batch, err := s.store.Batches().GetByID(ctx, organizationID, batchID)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("apply failed (%v) and batch could not be reloaded: %w", txErr, err)
	}
	batch.Status = failedStatus
	if err := s.store.Batches().UpdateStatus(ctx, batch); err != nil {
		return ApplyResult{}, fmt.Errorf("apply failed (%v) and failure status could not be persisted: %w", txErr, err)
	}

	s.log.Error().
		Str("batch_id", batchID.String()).
		Str("status", string(failedStatus)).
		Err(txErr).
		Msg("batch apply failed")

	return ApplyResult{Batch: batch}, fmt.Errorf("failed to apply batch: %w", txErr)
}
