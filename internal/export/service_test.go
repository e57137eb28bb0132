package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"

	"github.com/campusops/enrollsync/internal/domain"
	"github.com/campusops/enrollsync/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type stubStore struct {
	batch domain.Batch
	rows  []domain.StagedRow
}

func (s *stubStore) Batches() repository.BatchRepository          { return s }
func (s *stubStore) Enrollments() repository.EnrollmentRepository { return nil }
func (s *stubStore) Audits() repository.AuditRepository           { return nil }
func (s *stubStore) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return fn(s)
}

func (s *stubStore) Create(ctx context.Context, batch domain.Batch, rows []domain.StagedRow) error {
	return errors.New("not implemented")
}

func (s *stubStore) GetByID(ctx context.Context, organizationID, id uuid.UUID) (domain.Batch, error) {
	if id != s.batch.ID || organizationID != s.batch.OrganizationID {
		return domain.Batch{}, repository.ErrNotFound
	}
	return s.batch, nil
}

func (s *stubStore) List(ctx context.Context, organizationID uuid.UUID, statuses []domain.BatchStatus, limit, offset int) ([]domain.Batch, int, error) {
	return nil, 0, errors.New("not implemented")
}

func (s *stubStore) GetRow(ctx context.Context, organizationID, batchID, rowID uuid.UUID) (domain.StagedRow, error) {
	return domain.StagedRow{}, errors.New("not implemented")
}

func (s *stubStore) ListRows(ctx context.Context, organizationID, batchID uuid.UUID, status *domain.RowStatus, limit, offset int) ([]domain.StagedRow, int, error) {
	return s.rows, len(s.rows), nil
}

func (s *stubStore) UpdateRow(ctx context.Context, row domain.StagedRow) error {
	return errors.New("not implemented")
}

func (s *stubStore) RecountRows(ctx context.Context, batchID uuid.UUID) (domain.RowCounts, error) {
	return domain.RowCounts{}, errors.New("not implemented")
}

func (s *stubStore) UpdateStatus(ctx context.Context, batch domain.Batch) error {
	return errors.New("not implemented")
}

var _ repository.Store = (*stubStore)(nil)
var _ repository.BatchRepository = (*stubStore)(nil)

func reportFixture() (*stubStore, uuid.UUID, uuid.UUID) {
	orgID := uuid.New()
	targetID := uuid.New()
	batch := domain.NewBatch(orgID, "roster.csv", "csv", "registrar@school.test")
	batch.Counts = domain.RowCounts{Total: 3, Valid: 2, Invalid: 1, Inserts: 1, Updates: 1}

	store := &stubStore{
		batch: batch,
		rows: []domain.StagedRow{
			{
				BatchID:   batch.ID,
				RowNumber: 1,
				Status:    domain.RowStatusValid,
				Change:    domain.ProposedChange{Action: domain.ActionInsert},
			},
			{
				BatchID:   batch.ID,
				RowNumber: 2,
				Status:    domain.RowStatusValid,
				Change: domain.ProposedChange{
					Action:   domain.ActionUpdate,
					TargetID: &targetID,
					Diff: domain.FieldDiff{
						{Field: "level", Old: "beginner", New: "advanced"},
					},
				},
				Resolution: &domain.Resolution{
					Kind:       domain.ResolutionLinked,
					ResolvedBy: "reviewer@school.test",
				},
			},
			{
				BatchID:   batch.ID,
				RowNumber: 3,
				Status:    domain.RowStatusInvalid,
				Errors: []domain.FieldError{
					{Field: "enrolled_on", Message: `unable to parse "someday" as a date`},
				},
			},
		},
	}
	return store, orgID, batch.ID
}

func TestWriteCSVReport(t *testing.T) {
	store, orgID, batchID := reportFixture()
	service := NewService(store)

	var buf bytes.Buffer
	require.NoError(t, service.WriteCSV(context.Background(), orgID, batchID, &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	require.Equal(t, reportHeaders, records[0])

	require.Equal(t, "1", records[1][0])
	require.Equal(t, "INSERT", records[1][2])

	require.Equal(t, "UPDATE", records[2][2])
	require.Equal(t, `level: "beginner" -> "advanced"`, records[2][5])
	require.Equal(t, "linked", records[2][6])
	require.Equal(t, "reviewer@school.test", records[2][7])

	require.Equal(t, "INVALID", records[3][1])
	require.Contains(t, records[3][4], "enrolled_on")
}

func TestWriteCSVReportUnknownBatch(t *testing.T) {
	store, orgID, _ := reportFixture()
	service := NewService(store)

	var buf bytes.Buffer
	err := service.WriteCSV(context.Background(), orgID, uuid.New(), &buf)
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.Zero(t, buf.Len())
}

func TestWriteXLSXReport(t *testing.T) {
	store, orgID, batchID := reportFixture()
	service := NewService(store)

	var buf bytes.Buffer
	require.NoError(t, service.WriteXLSX(context.Background(), orgID, batchID, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, "row_number", rows[0][0])
	require.Equal(t, "UPDATE", rows[2][2])
}
