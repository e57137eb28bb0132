// Package export renders review reports for import batches in CSV or XLSX
// form, for download by reviewers.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/campusops/enrollsync/internal/domain"
	"github.com/campusops/enrollsync/internal/repository"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

var reportHeaders = []string{
	"row_number", "status", "action", "target_id", "errors", "diff",
	"resolution", "resolved_by",
}

// Service builds batch review reports.
type Service struct {
	store repository.Store
}

// NewService creates a report service over the store.
func NewService(store repository.Store) *Service {
	return &Service{store: store}
}

// WriteCSV streams the review report for one batch as CSV.
func (s *Service) WriteCSV(ctx context.Context, organizationID, batchID uuid.UUID, w io.Writer) error {
	rows, err := s.reportRows(ctx, organizationID, batchID)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(reportHeaders); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write report row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush report: %w", err)
	}
	return nil
}

// WriteXLSX renders the review report for one batch as a single-sheet
// workbook.
func (s *Service) WriteXLSX(ctx context.Context, organizationID, batchID uuid.UUID, w io.Writer) error {
	rows, err := s.reportRows(ctx, organizationID, batchID)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	for col, header := range reportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to address header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to write header cell: %w", err)
		}
	}

	for i, row := range rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("failed to address report cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to write report cell: %w", err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (s *Service) reportRows(ctx context.Context, organizationID, batchID uuid.UUID) ([][]string, error) {
	batch, err := s.store.Batches().GetByID(ctx, organizationID, batchID)
	if err != nil {
		return nil, err
	}

	staged, _, err := s.store.Batches().ListRows(ctx, organizationID, batchID, nil, batch.Counts.Total, 0)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(staged))
	for _, row := range staged {
		target := ""
		if row.Change.TargetID != nil {
			target = row.Change.TargetID.String()
		}

		resolution, resolvedBy := "", ""
		if row.Resolution != nil {
			resolution = string(row.Resolution.Kind)
			resolvedBy = row.Resolution.ResolvedBy
		}

		rows = append(rows, []string{
			strconv.Itoa(row.RowNumber),
			string(row.Status),
			string(row.Change.Action),
			target,
			joinErrors(row.Errors),
			joinDiff(row.Change.Diff),
			resolution,
			resolvedBy,
		})
	}

	return rows, nil
}

func joinErrors(errs []domain.FieldError) string {
	parts := make([]string, len(errs))
	for i, fieldErr := range errs {
		parts[i] = fmt.Sprintf("%s: %s", fieldErr.Field, fieldErr.Message)
	}
	return strings.Join(parts, "; ")
}

func joinDiff(diff domain.FieldDiff) string {
	parts := make([]string, len(diff))
	for i, change := range diff {
		parts[i] = fmt.Sprintf("%s: %q -> %q", change.Field, change.Old, change.New)
	}
	return strings.Join(parts, "; ")
}
