package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campusops/enrollsync/internal/domain"
	"github.com/campusops/enrollsync/internal/fileparse"
	"github.com/campusops/enrollsync/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrStateConflict is returned when a mutating operation is attempted while
// the batch or row is not in an eligible status. The batch is left unchanged.
var ErrStateConflict = errors.New("operation not legal in current state")

// Service runs the bulk-import reconciliation pipeline: parse, validate,
// match, diff, and stage one proposed change per row, then carry the batch
// through review and commit.
type Service struct {
	store   repository.Store
	matcher *Matcher
	log     zerolog.Logger
}

// NewService wires the import engine over the given store.
func NewService(store repository.Store, log zerolog.Logger) *Service {
	return &Service{
		store:   store,
		matcher: NewMatcher(store.Enrollments()),
		log:     log.With().Str("component", "importer").Logger(),
	}
}

// CreateBatchRequest describes one uploaded roster file.
type CreateBatchRequest struct {
	OrganizationID uuid.UUID
	FileName       string
	Payload        []byte
	CreatedBy      string
}

// CreateBatch ingests a whole file synchronously: every row is validated,
// matched, and diffed before the batch is persisted in its first resting
// status. Structural parse failures fail the batch without creating rows.
func (s *Service) CreateBatch(ctx context.Context, req CreateBatchRequest) (domain.Batch, error) {
	if req.OrganizationID == uuid.Nil {
		return domain.Batch{}, errors.New("organization id is required")
	}
	if strings.TrimSpace(req.FileName) == "" {
		return domain.Batch{}, errors.New("file name is required")
	}

	batch := domain.NewBatch(req.OrganizationID, req.FileName, "", req.CreatedBy)
	batch.Status = domain.BatchStatusParsing

	table, err := fileparse.Parse(req.FileName, req.Payload)
	if err != nil {
		if errors.Is(err, fileparse.ErrStructural) || errors.Is(err, fileparse.ErrUnsupportedFormat) {
			return s.failBatch(ctx, batch, domain.BatchStatusFailedValidation, err)
		}
		return s.failBatch(ctx, batch, domain.BatchStatusFailedSystem, err)
	}
	batch.FileKind = table.Kind
	batch.IgnoredColumns = IgnoredColumns(table.Headers)

	rows, err := s.stageRows(ctx, batch, table)
	if err != nil {
		// Store unavailable mid-pipeline: the batch is retryable wholesale.
		return s.failBatch(ctx, batch, domain.BatchStatusFailedSystem, err)
	}

	batch.Counts = countRows(rows)
	batch.Status = domain.DeriveStatus(batch.Counts)

	err = s.store.InTx(ctx, func(tx repository.Store) error {
		if err := tx.Batches().Create(ctx, batch, rows); err != nil {
			return err
		}
		return tx.Audits().Record(ctx, domain.NewAuditEvent(
			batch.OrganizationID, batch.ID, req.CreatedBy, "batch.create",
			domain.RowCounts{}, batch.Counts,
		))
	})
	if err != nil {
		return domain.Batch{}, fmt.Errorf("failed to persist batch: %w", err)
	}

	s.log.Info().
		Str("batch_id", batch.ID.String()).
		Str("status", string(batch.Status)).
		Int("total", batch.Counts.Total).
		Int("invalid", batch.Counts.Invalid).
		Int("ambiguous", batch.Counts.Ambiguous).
		Msg("batch created")

	return batch, nil
}

// stageRows runs validate → match → diff → build for every parsed row, in
// ascending row-number order. Rows are independent of each other.
func (s *Service) stageRows(ctx context.Context, batch domain.Batch, table fileparse.Table) ([]domain.StagedRow, error) {
	rows := make([]domain.StagedRow, 0, len(table.Rows))

	for _, parsed := range table.Rows {
		staged := domain.StagedRow{
			ID:        uuid.New(),
			BatchID:   batch.ID,
			RowNumber: parsed.Number,
			RawValues: parsed.Cells,
		}

		record, fieldErrors := ValidateRow(parsed.Cells)
		if record == nil {
			staged.Status = domain.RowStatusInvalid
			staged.Errors = fieldErrors
			rows = append(rows, staged)
			continue
		}
		staged.Record = record

		candidates, err := s.matcher.Match(ctx, batch.OrganizationID, *record)
		if err != nil {
			return nil, err
		}

		change, status, tied, err := BuildChange(*record, candidates, func(id uuid.UUID) (domain.Enrollment, error) {
			return s.store.Enrollments().GetByID(ctx, batch.OrganizationID, id)
		})
		if err != nil {
			return nil, err
		}

		staged.Status = status
		staged.Change = change
		staged.Candidates = tied
		rows = append(rows, staged)
	}

	return rows, nil
}

// failBatch persists a batch that never reached a proposed state. No rows
// are created for it.
func (s *Service) failBatch(ctx context.Context, batch domain.Batch, status domain.BatchStatus, cause error) (domain.Batch, error) {
	message := cause.Error()
	batch.Status = status
	batch.ParseError = &message

	if err := s.store.Batches().Create(ctx, batch, nil); err != nil {
		return domain.Batch{}, fmt.Errorf("failed to persist failed batch: %w", err)
	}

	s.log.Warn().
		Str("batch_id", batch.ID.String()).
		Str("status", string(status)).
		Str("cause", message).
		Msg("batch failed before staging")

	return batch, nil
}

// countRows derives all bucket counts from row state. Counts are never
// patched incrementally anywhere in the engine.
func countRows(rows []domain.StagedRow) domain.RowCounts {
	var counts domain.RowCounts
	for _, row := range rows {
		counts.Total++
		switch row.Status {
		case domain.RowStatusValid:
			counts.Valid++
			switch row.Change.Action {
			case domain.ActionInsert:
				counts.Inserts++
			case domain.ActionUpdate:
				counts.Updates++
			}
		case domain.RowStatusInvalid:
			counts.Invalid++
		case domain.RowStatusAmbiguous:
			counts.Ambiguous++
		case domain.RowStatusExcluded:
			counts.Excluded++
		}
	}
	return counts
}

func nowUTC() time.Time { return time.Now().UTC() }

// GetBatch returns one batch scoped to the caller's organization.
func (s *Service) GetBatch(ctx context.Context, organizationID, batchID uuid.UUID) (domain.Batch, error) {
	return s.store.Batches().GetByID(ctx, organizationID, batchID)
}

// ListBatches returns a page of batches, optionally filtered by status.
func (s *Service) ListBatches(ctx context.Context, organizationID uuid.UUID, statuses []domain.BatchStatus, limit, offset int) ([]domain.Batch, int, error) {
	return s.store.Batches().List(ctx, organizationID, statuses, limit, offset)
}

// ListRows returns a page of staged rows in ascending row-number order.
func (s *Service) ListRows(ctx context.Context, organizationID, batchID uuid.UUID, status *domain.RowStatus, limit, offset int) ([]domain.StagedRow, int, error) {
	if _, err := s.store.Batches().GetByID(ctx, organizationID, batchID); err != nil {
		return nil, 0, err
	}
	return s.store.Batches().ListRows(ctx, organizationID, batchID, status, limit, offset)
}

// ListAuditEvents returns the audit trail for one batch.
func (s *Service) ListAuditEvents(ctx context.Context, organizationID, batchID uuid.UUID) ([]domain.AuditEvent, error) {
	return s.store.Audits().ListByBatch(ctx, organizationID, batchID)
}
