package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/campusops/enrollsync/internal/db"
	"github.com/campusops/enrollsync/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type batchRepository struct {
	q db.Querier
}

const batchColumns = `id, organization_id, file_name, file_kind, status,
	total_rows, valid_rows, invalid_rows, ambiguous_rows, excluded_rows,
	insert_rows, update_rows, review_outcome, ignored_columns, parse_error,
	created_by, created_at, applied_by, applied_at`

func (r *batchRepository) Create(ctx context.Context, batch domain.Batch, rows []domain.StagedRow) error {
	ignored, err := json.Marshal(batch.IgnoredColumns)
	if err != nil {
		return fmt.Errorf("failed to marshal ignored columns: %w", err)
	}

	_, err = r.q.Exec(ctx,
		`INSERT INTO import_batches (`+batchColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		batch.ID, batch.OrganizationID, batch.FileName, batch.FileKind, batch.Status,
		batch.Counts.Total, batch.Counts.Valid, batch.Counts.Invalid, batch.Counts.Ambiguous,
		batch.Counts.Excluded, batch.Counts.Inserts, batch.Counts.Updates,
		batch.ReviewOutcome, ignored, batch.ParseError,
		batch.CreatedBy, batch.CreatedAt, batch.AppliedBy, batch.AppliedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}

	for _, row := range rows {
		if err := r.insertRow(ctx, row); err != nil {
			return err
		}
	}

	return nil
}

func (r *batchRepository) insertRow(ctx context.Context, row domain.StagedRow) error {
	raw, record, rowErrors, candidates, diff, err := marshalRowFields(row)
	if err != nil {
		return err
	}

	var resolutionKind, resolvedBy *string
	var linkedTarget *uuid.UUID
	var resolvedAt pgtype.Timestamptz
	if row.Resolution != nil {
		kind := string(row.Resolution.Kind)
		resolutionKind = &kind
		resolvedBy = &row.Resolution.ResolvedBy
		linkedTarget = row.Resolution.LinkedTargetID
		resolvedAt = pgtype.Timestamptz{Time: row.Resolution.ResolvedAt, Valid: true}
	}

	_, err = r.q.Exec(ctx,
		`INSERT INTO staged_rows (id, batch_id, row_number, status, raw_values, record, errors,
			candidates, action, target_id, diff, is_excluded,
			resolution_kind, linked_target_id, resolved_by, resolved_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		row.ID, row.BatchID, row.RowNumber, row.Status, raw, record, rowErrors,
		candidates, string(row.Change.Action), row.Change.TargetID, diff, row.Change.IsExcluded,
		resolutionKind, linkedTarget, resolvedBy, resolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert staged row %d: %w", row.RowNumber, err)
	}
	return nil
}

func (r *batchRepository) GetByID(ctx context.Context, organizationID, id uuid.UUID) (domain.Batch, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM import_batches WHERE id = $1 AND organization_id = $2`,
		id, organizationID,
	)
	batch, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Batch{}, ErrNotFound
		}
		return domain.Batch{}, fmt.Errorf("failed to get batch: %w", err)
	}
	return batch, nil
}

func (r *batchRepository) List(ctx context.Context, organizationID uuid.UUID, statuses []domain.BatchStatus, limit, offset int) ([]domain.Batch, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where := "organization_id = $1"
	args := []any{organizationID}
	if len(statuses) > 0 {
		values := make([]string, len(statuses))
		for i, status := range statuses {
			values[i] = string(status)
		}
		args = append(args, values)
		where += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}

	var total int
	if err := r.q.QueryRow(ctx,
		"SELECT count(*) FROM import_batches WHERE "+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count batches: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(
		"SELECT %s FROM import_batches WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		batchColumns, where, len(args)-1, len(args),
	)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	batches := []domain.Batch{}
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate batches: %w", err)
	}

	return batches, total, nil
}

const rowColumns = `s.id, s.batch_id, s.row_number, s.status, s.raw_values, s.record, s.errors,
	s.candidates, s.action, s.target_id, s.diff, s.is_excluded,
	s.resolution_kind, s.linked_target_id, s.resolved_by, s.resolved_at`

func (r *batchRepository) GetRow(ctx context.Context, organizationID, batchID, rowID uuid.UUID) (domain.StagedRow, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+rowColumns+`
		 FROM staged_rows s
		 JOIN import_batches b ON b.id = s.batch_id
		 WHERE s.id = $1 AND s.batch_id = $2 AND b.organization_id = $3`,
		rowID, batchID, organizationID,
	)
	staged, err := scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StagedRow{}, ErrNotFound
		}
		return domain.StagedRow{}, fmt.Errorf("failed to get staged row: %w", err)
	}
	return staged, nil
}

func (r *batchRepository) ListRows(ctx context.Context, organizationID, batchID uuid.UUID, status *domain.RowStatus, limit, offset int) ([]domain.StagedRow, int, error) {
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	where := "s.batch_id = $1 AND b.organization_id = $2"
	args := []any{batchID, organizationID}
	if status != nil {
		args = append(args, string(*status))
		where += fmt.Sprintf(" AND s.status = $%d", len(args))
	}

	var total int
	if err := r.q.QueryRow(ctx,
		`SELECT count(*) FROM staged_rows s JOIN import_batches b ON b.id = s.batch_id WHERE `+where,
		args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count staged rows: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(
		`SELECT %s FROM staged_rows s JOIN import_batches b ON b.id = s.batch_id
		 WHERE %s ORDER BY s.row_number ASC LIMIT $%d OFFSET $%d`,
		rowColumns, where, len(args)-1, len(args),
	)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list staged rows: %w", err)
	}
	defer rows.Close()

	staged := []domain.StagedRow{}
	for rows.Next() {
		item, err := scanRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan staged row: %w", err)
		}
		staged = append(staged, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate staged rows: %w", err)
	}

	return staged, total, nil
}

func (r *batchRepository) UpdateRow(ctx context.Context, row domain.StagedRow) error {
	raw, record, rowErrors, candidates, diff, err := marshalRowFields(row)
	if err != nil {
		return err
	}

	var resolutionKind, resolvedBy *string
	var linkedTarget *uuid.UUID
	var resolvedAt pgtype.Timestamptz
	if row.Resolution != nil {
		kind := string(row.Resolution.Kind)
		resolutionKind = &kind
		resolvedBy = &row.Resolution.ResolvedBy
		linkedTarget = row.Resolution.LinkedTargetID
		resolvedAt = pgtype.Timestamptz{Time: row.Resolution.ResolvedAt, Valid: true}
	}

	tag, err := r.q.Exec(ctx,
		`UPDATE staged_rows
		 SET status = $2, raw_values = $3, record = $4, errors = $5, candidates = $6,
		     action = $7, target_id = $8, diff = $9, is_excluded = $10,
		     resolution_kind = $11, linked_target_id = $12, resolved_by = $13, resolved_at = $14
		 WHERE id = $1`,
		row.ID, row.Status, raw, record, rowErrors, candidates,
		string(row.Change.Action), row.Change.TargetID, diff, row.Change.IsExcluded,
		resolutionKind, linkedTarget, resolvedBy, resolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update staged row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *batchRepository) RecountRows(ctx context.Context, batchID uuid.UUID) (domain.RowCounts, error) {
	rows, err := r.q.Query(ctx,
		`SELECT status, action, count(*) FROM staged_rows WHERE batch_id = $1 GROUP BY status, action`,
		batchID,
	)
	if err != nil {
		return domain.RowCounts{}, fmt.Errorf("failed to recount rows: %w", err)
	}
	defer rows.Close()

	var counts domain.RowCounts
	for rows.Next() {
		var status, action string
		var n int
		if err := rows.Scan(&status, &action, &n); err != nil {
			return domain.RowCounts{}, fmt.Errorf("failed to scan row counts: %w", err)
		}
		counts.Total += n
		switch domain.RowStatus(status) {
		case domain.RowStatusValid:
			counts.Valid += n
			switch domain.ChangeAction(action) {
			case domain.ActionInsert:
				counts.Inserts += n
			case domain.ActionUpdate:
				counts.Updates += n
			}
		case domain.RowStatusInvalid:
			counts.Invalid += n
		case domain.RowStatusAmbiguous:
			counts.Ambiguous += n
		case domain.RowStatusExcluded:
			counts.Excluded += n
		}
	}
	if err := rows.Err(); err != nil {
		return domain.RowCounts{}, fmt.Errorf("failed to iterate row counts: %w", err)
	}

	return counts, nil
}

func (r *batchRepository) UpdateStatus(ctx context.Context, batch domain.Batch) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE import_batches
		 SET status = $3, total_rows = $4, valid_rows = $5, invalid_rows = $6,
		     ambiguous_rows = $7, excluded_rows = $8, insert_rows = $9, update_rows = $10,
		     review_outcome = $11, applied_by = $12, applied_at = $13
		 WHERE id = $1 AND organization_id = $2`,
		batch.ID, batch.OrganizationID, batch.Status,
		batch.Counts.Total, batch.Counts.Valid, batch.Counts.Invalid,
		batch.Counts.Ambiguous, batch.Counts.Excluded, batch.Counts.Inserts, batch.Counts.Updates,
		batch.ReviewOutcome, batch.AppliedBy, batch.AppliedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update batch status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalRowFields(row domain.StagedRow) (raw, record, rowErrors, candidates, diff []byte, err error) {
	raw, err = json.Marshal(row.RawValues)
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("failed to marshal raw values: %w", err)
	}
	if row.Record != nil {
		record, err = json.Marshal(row.Record)
		if err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("failed to marshal record: %w", err)
		}
	}
	rowErrors, err = json.Marshal(orEmptyErrors(row.Errors))
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("failed to marshal errors: %w", err)
	}
	candidates, err = json.Marshal(orEmptyCandidates(row.Candidates))
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("failed to marshal candidates: %w", err)
	}
	if row.Change.Diff != nil {
		diff, err = json.Marshal(row.Change.Diff)
		if err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("failed to marshal diff: %w", err)
		}
	}
	return raw, record, rowErrors, candidates, diff, nil
}

func orEmptyErrors(errs []domain.FieldError) []domain.FieldError {
	if errs == nil {
		return []domain.FieldError{}
	}
	return errs
}

func orEmptyCandidates(candidates []domain.MatchCandidate) []domain.MatchCandidate {
	if candidates == nil {
		return []domain.MatchCandidate{}
	}
	return candidates
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(scanner rowScanner) (domain.Batch, error) {
	var batch domain.Batch
	var ignored []byte
	if err := scanner.Scan(
		&batch.ID, &batch.OrganizationID, &batch.FileName, &batch.FileKind, &batch.Status,
		&batch.Counts.Total, &batch.Counts.Valid, &batch.Counts.Invalid, &batch.Counts.Ambiguous,
		&batch.Counts.Excluded, &batch.Counts.Inserts, &batch.Counts.Updates,
		&batch.ReviewOutcome, &ignored, &batch.ParseError,
		&batch.CreatedBy, &batch.CreatedAt, &batch.AppliedBy, &batch.AppliedAt,
	); err != nil {
		return domain.Batch{}, err
	}
	if len(ignored) > 0 {
		if err := json.Unmarshal(ignored, &batch.IgnoredColumns); err != nil {
			return domain.Batch{}, fmt.Errorf("failed to decode ignored columns: %w", err)
		}
	}
	if batch.IgnoredColumns == nil {
		batch.IgnoredColumns = []string{}
	}
	return batch, nil
}

func scanRow(scanner rowScanner) (domain.StagedRow, error) {
	var row domain.StagedRow
	var raw, record, rowErrors, candidates, diff []byte
	var action string
	var resolutionKind, resolvedBy *string
	var linkedTarget *uuid.UUID
	var resolvedAt pgtype.Timestamptz

	if err := scanner.Scan(
		&row.ID, &row.BatchID, &row.RowNumber, &row.Status, &raw, &record, &rowErrors,
		&candidates, &action, &row.Change.TargetID, &diff, &row.Change.IsExcluded,
		&resolutionKind, &linkedTarget, &resolvedBy, &resolvedAt,
	); err != nil {
		return domain.StagedRow{}, err
	}

	row.Change.Action = domain.ChangeAction(action)

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &row.RawValues); err != nil {
			return domain.StagedRow{}, fmt.Errorf("failed to decode raw values: %w", err)
		}
	}
	if len(record) > 0 {
		row.Record = &domain.EnrollmentRecord{}
		if err := json.Unmarshal(record, row.Record); err != nil {
			return domain.StagedRow{}, fmt.Errorf("failed to decode record: %w", err)
		}
	}
	if len(rowErrors) > 0 {
		if err := json.Unmarshal(rowErrors, &row.Errors); err != nil {
			return domain.StagedRow{}, fmt.Errorf("failed to decode errors: %w", err)
		}
	}
	if len(candidates) > 0 {
		if err := json.Unmarshal(candidates, &row.Candidates); err != nil {
			return domain.StagedRow{}, fmt.Errorf("failed to decode candidates: %w", err)
		}
	}
	if len(diff) > 0 {
		if err := json.Unmarshal(diff, &row.Change.Diff); err != nil {
			return domain.StagedRow{}, fmt.Errorf("failed to decode diff: %w", err)
		}
	}

	if resolutionKind != nil {
		resolution := domain.Resolution{
			Kind:           domain.ResolutionKind(*resolutionKind),
			LinkedTargetID: linkedTarget,
		}
		if resolvedBy != nil {
			resolution.ResolvedBy = *resolvedBy
		}
		if resolvedAt.Valid {
			resolution.ResolvedAt = resolvedAt.Time
		}
		row.Resolution = &resolution
	}

	// jsonb arrays round-trip as empty slices, keep nil semantics for callers
	if len(row.Errors) == 0 {
		row.Errors = nil
	}
	if len(row.Candidates) == 0 {
		row.Candidates = nil
	}

	return row, nil
}
