package importer

import (
	"context"
	"fmt"

	"github.com/campusops/enrollsync/internal/domain"
	"github.com/campusops/enrollsync/internal/repository"

	"github.com/google/uuid"
)

// Decision is a reviewer's answer for one ambiguous row: link it to one of
// its recorded candidates, or treat it as a new record.
type Decision struct {
	Kind     domain.ResolutionKind
	TargetID *uuid.UUID
}

// ExcludeRow drops an invalid row from the batch. The row keeps its data and
// history; only its status changes. The batch recount and status recompute
// happen in the same transaction as the row mutation.
func (s *Service) ExcludeRow(ctx context.Context, organizationID, batchID, rowID uuid.UUID, actor string) (domain.Batch, error) {
	var updated domain.Batch

	err := s.store.InTx(ctx, func(tx repository.Store) error {
		batches := tx.Batches()

		batch, err := batches.GetByID(ctx, organizationID, batchID)
		if err != nil {
			return err
		}
		if !batch.Status.IsReviewable() {
			return fmt.Errorf("%w: batch is %s", ErrStateConflict, batch.Status)
		}

		row, err := batches.GetRow(ctx, organizationID, batchID, rowID)
		if err != nil {
			return err
		}
		if row.Status != domain.RowStatusInvalid {
			return fmt.Errorf("%w: only invalid rows can be excluded, row is %s", ErrStateConflict, row.Status)
		}

		before := batch.Counts

		row.Status = domain.RowStatusExcluded
		row.Change.IsExcluded = true
		if err := batches.UpdateRow(ctx, row); err != nil {
			return err
		}

		batch, err = s.recompute(ctx, batches, batch)
		if err != nil {
			return err
		}

		if err := tx.Audits().Record(ctx, domain.NewAuditEvent(
			organizationID, batchID, actor, "row.exclude", before, batch.Counts,
		)); err != nil {
			return err
		}

		updated = batch
		return nil
	})
	if err != nil {
		return domain.Batch{}, err
	}

	s.log.Info().
		Str("batch_id", batchID.String()).
		Str("row_id", rowID.String()).
		Str("status", string(updated.Status)).
		Msg("row excluded")

	return updated, nil
}

// ResolveRow applies a reviewer decision to an ambiguous row. Linking to a
// target that is not one of the row's recorded candidates is rejected.
func (s *Service) ResolveRow(ctx context.Context, organizationID, batchID, rowID uuid.UUID, decision Decision, actor string) (domain.Batch, error) {
	var updated domain.Batch

	err := s.store.InTx(ctx, func(tx repository.Store) error {
		batches := tx.Batches()

		batch, err := batches.GetByID(ctx, organizationID, batchID)
		if err != nil {
			return err
		}
		if !batch.Status.IsReviewable() {
			return fmt.Errorf("%w: batch is %s", ErrStateConflict, batch.Status)
		}

		row, err := batches.GetRow(ctx, organizationID, batchID, rowID)
		if err != nil {
			return err
		}
		if row.Status != domain.RowStatusAmbiguous {
			return fmt.Errorf("%w: only ambiguous rows can be resolved, row is %s", ErrStateConflict, row.Status)
		}
		if row.Record == nil {
			return fmt.Errorf("ambiguous row %d has no parsed record", row.RowNumber)
		}

		before := batch.Counts
		resolution := domain.Resolution{ResolvedBy: actor, ResolvedAt: nowUTC()}

		switch decision.Kind {
		case domain.ResolutionLinked:
			if decision.TargetID == nil {
				return fmt.Errorf("%w: linked resolution requires a target", ErrStateConflict)
			}
			if !hasCandidate(row.Candidates, *decision.TargetID) {
				return fmt.Errorf("%w: target %s is not a recorded candidate", ErrStateConflict, decision.TargetID)
			}
			target, err := tx.Enrollments().GetByID(ctx, organizationID, *decision.TargetID)
			if err != nil {
				return err
			}
			row.Change = ChangeAgainst(*row.Record, target)
			resolution.Kind = domain.ResolutionLinked
			resolution.LinkedTargetID = decision.TargetID
		case domain.ResolutionNew:
			row.Change = domain.ProposedChange{Action: domain.ActionInsert}
			resolution.Kind = domain.ResolutionNew
		default:
			return fmt.Errorf("%w: unknown resolution kind %q", ErrStateConflict, decision.Kind)
		}

		row.Status = domain.RowStatusValid
		row.Resolution = &resolution
		if err := batches.UpdateRow(ctx, row); err != nil {
			return err
		}

		batch, err = s.recompute(ctx, batches, batch)
		if err != nil {
			return err
		}

		if err := tx.Audits().Record(ctx, domain.NewAuditEvent(
			organizationID, batchID, actor, "row.resolve", before, batch.Counts,
		)); err != nil {
			return err
		}

		updated = batch
		return nil
	})
	if err != nil {
		return domain.Batch{}, err
	}

	s.log.Info().
		Str("batch_id", batchID.String()).
		Str("row_id", rowID.String()).
		Str("kind", string(decision.Kind)).
		Str("status", string(updated.Status)).
		Msg("row resolved")

	return updated, nil
}

// recompute re-derives the counts from authoritative row state and persists
// the batch in its recomputed status.
func (s *Service) recompute(ctx context.Context, batches repository.BatchRepository, batch domain.Batch) (domain.Batch, error) {
	counts, err := batches.RecountRows(ctx, batch.ID)
	if err != nil {
		return domain.Batch{}, err
	}

	batch.Counts = counts
	batch.Status = domain.DeriveStatus(counts)
	if err := batches.UpdateStatus(ctx, batch); err != nil {
		return domain.Batch{}, err
	}

	return batch, nil
}

func hasCandidate(candidates []domain.MatchCandidate, targetID uuid.UUID) bool {
	for _, candidate := range candidates {
		if candidate.TargetID == targetID {
			return true
		}
	}
	return false
}
