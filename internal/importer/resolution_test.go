package importer

import (
	"context"
	"testing"
	"time"

	"github.com/campusops/enrollsync/internal/domain"
	"github.com/campusops/enrollsync/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func createBatch(t *testing.T, service *Service, orgID uuid.UUID, csv string) domain.Batch {
	t.Helper()
	batch, err := service.CreateBatch(context.Background(), CreateBatchRequest{
		OrganizationID: orgID,
		FileName:       "roster.csv",
		Payload:        []byte(csv),
		CreatedBy:      "registrar@school.test",
	})
	require.NoError(t, err)
	return batch
}

func rowWithStatus(t *testing.T, service *Service, orgID, batchID uuid.UUID, status domain.RowStatus) domain.StagedRow {
	t.Helper()
	rows, _, err := service.ListRows(context.Background(), orgID, batchID, &status, 100, 0)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	return rows[0]
}

func TestExcludeRowConvergesBatch(t *testing.T) {
	orgID := uuid.New()
	store := newMemStore()
	service := NewService(store, zerolog.Nop())

	data := "student_name,class_code,enrolled_on,level\n" +
		"Grace Hopper,CS-101,2024-09-02,advanced\n" +
		",CS-101,2024-09-02,advanced\n"
	batch := createBatch(t, service, orgID, data)
	require.Equal(t, domain.BatchStatusProposedNeedsReview, batch.Status)

	invalid := rowWithStatus(t, service, orgID, batch.ID, domain.RowStatusInvalid)

	updated, err := service.ExcludeRow(context.Background(), orgID, batch.ID, invalid.ID, "reviewer@school.test")
	require.NoError(t, err)
	require.Equal(t, domain.BatchStatusProposedOK, updated.Status)
	require.Equal(t, domain.RowCounts{Total: 2, Valid: 1, Excluded: 1, Inserts: 1}, updated.Counts)
	require.True(t, updated.Counts.Consistent())

	// The row keeps its data; only its status and exclusion flag changed.
	row, err := store.Batches().GetRow(context.Background(), orgID, batch.ID, invalid.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RowStatusExcluded, row.Status)
	require.True(t, row.Change.IsExcluded)
	require.Equal(t, invalid.RawValues, row.RawValues)

	events, err := service.ListAuditEvents(context.Background(), orgID, batch.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "row.exclude", events[1].Action)
}

func TestExcludeRowRejectsValidRow(t *testing.T) {
	orgID := uuid.New()
	store := newMemStore()
	service := NewService(store, zerolog.Nop())

	data := "student_name,class_code,enrolled_on,level\n" +
		"Grace Hopper,CS-101,2024-09-02,advanced\n" +
		",CS-101,2024-09-02,advanced\n"
	batch := createBatch(t, service, orgID, data)

	valid := rowWithStatus(t, service, orgID, batch.ID, domain.RowStatusValid)

	_, err := service.ExcludeRow(context.Background(), orgID, batch.ID, valid.ID, "reviewer@school.test")
	require.ErrorIs(t, err, ErrStateConflict)

	// Nothing moved.
	reloaded, err := service.GetBatch(context.Background(), orgID, batch.ID)
	require.NoError(t, err)
	require.Equal(t, batch.Counts, reloaded.Counts)
	require.Equal(t, batch.Status, reloaded.Status)
}

func TestResolveRowLinkedEqualFieldsBecomesNoop(t *testing.T) {
	orgID := uuid.New()
	enrolledOn := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	store := newMemStore()
	first := seededEnrollment(orgID, "Ada Lovelace", "MATH-101", enrolledOn, "beginner", "")
	second := seededEnrollment(orgID, "Ada Lovelace", "MATH-101", enrolledOn, "beginner", "")
	store.seedEnrollment(first)
	store.seedEnrollment(second)

	service := NewService(store, zerolog.Nop())

	data := "student_name,class_code,enrolled_on,level\n" +
		"Ada Lovelace,MATH-101,2024-09-01,beginner\n"
	batch := createBatch(t, service, orgID, data)
	require.Equal(t, 1, batch.Counts.Ambiguous)

	ambiguous := rowWithStatus(t, service, orgID, batch.ID, domain.RowStatusAmbiguous)
	target := ambiguous.Candidates[0].TargetID

	updated, err := service.ResolveRow(context.Background(), orgID, batch.ID, ambiguous.ID, Decision{
		Kind:     domain.ResolutionLinked,
		TargetID: &target,
	}, "reviewer@school.test")
	require.NoError(t, err)
	require.Equal(t, domain.BatchStatusProposedOK, updated.Status)
	require.Equal(t, 1, updated.Counts.Valid)
	require.Zero(t, updated.Counts.Ambiguous)

	row, err := store.Batches().GetRow(context.Background(), orgID, batch.ID, ambiguous.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RowStatusValid, row.Status)
	require.Equal(t, domain.ActionNoop, row.Change.Action)
	require.NotNil(t, row.Change.TargetID)
	require.Equal(t, target, *row.Change.TargetID)
	require.NotNil(t, row.Resolution)
	require.Equal(t, domain.ResolutionLinked, row.Resolution.Kind)
	require.Equal(t, "reviewer@school.test", row.Resolution.ResolvedBy)
}

func TestResolveRowAsNewStagesInsert(t *testing.T) {
	orgID := uuid.New()
	enrolledOn := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	store := newMemStore()
	store.seedEnrollment(seededEnrollment(orgID, "Ada Lovelace", "MATH-101", enrolledOn, "beginner", ""))
	store.seedEnrollment(seededEnrollment(orgID, "Ada Lovelace", "MATH-101", enrolledOn, "beginner", ""))

	service := NewService(store, zerolog.Nop())

	data := "student_name,class_code,enrolled_on,level\n" +
		"Ada Lovelace,MATH-101,2024-09-01,beginner\n"
	batch := createBatch(t, service, orgID, data)

	ambiguous := rowWithStatus(t, service, orgID, batch.ID, domain.RowStatusAmbiguous)

	updated, err := service.ResolveRow(context.Background(), orgID, batch.ID, ambiguous.ID, Decision{
		Kind: domain.ResolutionNew,
	}, "reviewer@school.test")
	require.NoError(t, err)
	require.Equal(t, domain.BatchStatusProposedOK, updated.Status)
	require.Equal(t, 1, updated.Counts.Inserts)

	row, err := store.Batches().GetRow(context.Background(), orgID, batch.ID, ambiguous.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ActionInsert, row.Change.Action)
	require.NotNil(t, row.Resolution)
	require.Equal(t, domain.ResolutionNew, row.Resolution.Kind)
}

func TestResolveRowRejectsForeignTarget(t *testing.T) {
	orgID := uuid.New()
	enrolledOn := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	store := newMemStore()
	store.seedEnrollment(seededEnrollment(orgID, "Ada Lovelace", "MATH-101", enrolledOn, "beginner", ""))
	store.seedEnrollment(seededEnrollment(orgID, "Ada Lovelace", "MATH-101", enrolledOn, "beginner", ""))

	service := NewService(store, zerolog.Nop())

	data := "student_name,class_code,enrolled_on,level\n" +
		"Ada Lovelace,MATH-101,2024-09-01,beginner\n"
	batch := createBatch(t, service, orgID, data)

	ambiguous := rowWithStatus(t, service, orgID, batch.ID, domain.RowStatusAmbiguous)
	stranger := uuid.New()

	_, err := service.ResolveRow(context.Background(), orgID, batch.ID, ambiguous.ID, Decision{
		Kind:     domain.ResolutionLinked,
		TargetID: &stranger,
	}, "reviewer@school.test")
	require.ErrorIs(t, err, ErrStateConflict)
}

func TestResolveRowRejectsNonAmbiguousRow(t *testing.T) {
	orgID := uuid.New()
	store := newMemStore()
	service := NewService(store, zerolog.Nop())

	data := "student_name,class_code,enrolled_on,level\n" +
		"Grace Hopper,CS-101,2024-09-02,advanced\n"
	batch := createBatch(t, service, orgID, data)

	valid := rowWithStatus(t, service, orgID, batch.ID, domain.RowStatusValid)

	_, err := service.ResolveRow(context.Background(), orgID, batch.ID, valid.ID, Decision{
		Kind: domain.ResolutionNew,
	}, "reviewer@school.test")
	require.ErrorIs(t, err, ErrStateConflict)
}

func TestRowMutationsRejectedOutsideReview(t *testing.T) {
	orgID := uuid.New()
	store := newMemStore()
	service := NewService(store, zerolog.Nop())

	data := "student_name,class_code,enrolled_on,level\n" +
		"Grace Hopper,CS-101,2024-09-02,advanced\n" +
		",CS-101,2024-09-02,advanced\n"
	batch := createBatch(t, service, orgID, data)
	invalid := rowWithStatus(t, service, orgID, batch.ID, domain.RowStatusInvalid)

	// Force the batch out of review.
	stored := store.batches[batch.ID]
	stored.Status = domain.BatchStatusApplied
	store.batches[batch.ID] = stored

	_, err := service.ExcludeRow(context.Background(), orgID, batch.ID, invalid.ID, "reviewer@school.test")
	require.ErrorIs(t, err, ErrStateConflict)

	_, err = service.ResolveRow(context.Background(), orgID, batch.ID, invalid.ID, Decision{Kind: domain.ResolutionNew}, "reviewer@school.test")
	require.ErrorIs(t, err, ErrStateConflict)
}

func TestRowLookupScopedToOrganization(t *testing.T) {
	orgID := uuid.New()
	store := newMemStore()
	service := NewService(store, zerolog.Nop())

	data := "student_name,class_code,enrolled_on,level\n" +
		",CS-101,2024-09-02,advanced\n"
	batch := createBatch(t, service, orgID, data)
	invalid := rowWithStatus(t, service, orgID, batch.ID, domain.RowStatusInvalid)

	_, err := service.ExcludeRow(context.Background(), uuid.New(), batch.ID, invalid.ID, "reviewer@school.test")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
