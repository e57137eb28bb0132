package importer

import (
	"context"
	"sort"

	"github.com/campusops/enrollsync/internal/domain"
	"github.com/campusops/enrollsync/internal/repository"

	"github.com/google/uuid"
)

// memStore is an in-memory Store shared by the importer tests. InTx runs
// the callback against the same store; commitErr, when set, is returned
// after the callback succeeds to simulate a commit-phase failure.
type memStore struct {
	batches     map[uuid.UUID]domain.Batch
	rows        map[uuid.UUID]domain.StagedRow
	enrollments map[uuid.UUID]domain.Enrollment
	audits      []domain.AuditEvent

	commitErr error
	createErr error
	updateErr error
}

func newMemStore() *memStore {
	return &memStore{
		batches:     make(map[uuid.UUID]domain.Batch),
		rows:        make(map[uuid.UUID]domain.StagedRow),
		enrollments: make(map[uuid.UUID]domain.Enrollment),
	}
}

func (m *memStore) seedEnrollment(e domain.Enrollment) {
	m.enrollments[e.ID] = e
}

func (m *memStore) Batches() repository.BatchRepository          { return &memBatches{m} }
func (m *memStore) Enrollments() repository.EnrollmentRepository { return &memEnrollments{m} }
func (m *memStore) Audits() repository.AuditRepository           { return &memAudits{m} }

func (m *memStore) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if err := fn(m); err != nil {
		return err
	}
	return m.commitErr
}

type memBatches struct{ s *memStore }

func (r *memBatches) Create(ctx context.Context, batch domain.Batch, rows []domain.StagedRow) error {
	r.s.batches[batch.ID] = batch
	for _, row := range rows {
		r.s.rows[row.ID] = row
	}
	return nil
}

func (r *memBatches) GetByID(ctx context.Context, organizationID, id uuid.UUID) (domain.Batch, error) {
	batch, ok := r.s.batches[id]
	if !ok || batch.OrganizationID != organizationID {
		return domain.Batch{}, repository.ErrNotFound
	}
	return batch, nil
}

func (r *memBatches) List(ctx context.Context, organizationID uuid.UUID, statuses []domain.BatchStatus, limit, offset int) ([]domain.Batch, int, error) {
	var matched []domain.Batch
	for _, batch := range r.s.batches {
		if batch.OrganizationID != organizationID {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, batch.Status) {
			continue
		}
		matched = append(matched, batch)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID.String() < matched[j].ID.String() })
	total := len(matched)
	return paginate(matched, limit, offset), total, nil
}

func (r *memBatches) GetRow(ctx context.Context, organizationID, batchID, rowID uuid.UUID) (domain.StagedRow, error) {
	if _, err := r.GetByID(ctx, organizationID, batchID); err != nil {
		return domain.StagedRow{}, err
	}
	row, ok := r.s.rows[rowID]
	if !ok || row.BatchID != batchID {
		return domain.StagedRow{}, repository.ErrNotFound
	}
	return row, nil
}

func (r *memBatches) ListRows(ctx context.Context, organizationID, batchID uuid.UUID, status *domain.RowStatus, limit, offset int) ([]domain.StagedRow, int, error) {
	if _, err := r.GetByID(ctx, organizationID, batchID); err != nil {
		return nil, 0, err
	}
	var matched []domain.StagedRow
	for _, row := range r.s.rows {
		if row.BatchID != batchID {
			continue
		}
		if status != nil && row.Status != *status {
			continue
		}
		matched = append(matched, row)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].RowNumber < matched[j].RowNumber })
	total := len(matched)
	return paginate(matched, limit, offset), total, nil
}

func (r *memBatches) UpdateRow(ctx context.Context, row domain.StagedRow) error {
	r.s.rows[row.ID] = row
	return nil
}

func (r *memBatches) RecountRows(ctx context.Context, batchID uuid.UUID) (domain.RowCounts, error) {
	var counts domain.RowCounts
	for _, row := range r.s.rows {
		if row.BatchID != batchID {
			continue
		}
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
	return counts, nil
}

func (r *memBatches) UpdateStatus(ctx context.Context, batch domain.Batch) error {
	stored, ok := r.s.batches[batch.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Status = batch.Status
	stored.Counts = batch.Counts
	stored.ReviewOutcome = batch.ReviewOutcome
	stored.AppliedBy = batch.AppliedBy
	stored.AppliedAt = batch.AppliedAt
	r.s.batches[batch.ID] = stored
	return nil
}

type memEnrollments struct{ s *memStore }

func (r *memEnrollments) GetByID(ctx context.Context, organizationID, id uuid.UUID) (domain.Enrollment, error) {
	enrollment, ok := r.s.enrollments[id]
	if !ok || enrollment.OrganizationID != organizationID {
		return domain.Enrollment{}, repository.ErrNotFound
	}
	return enrollment, nil
}

func (r *memEnrollments) ListByClassCode(ctx context.Context, organizationID uuid.UUID, classCode string) ([]domain.Enrollment, error) {
	var matched []domain.Enrollment
	for _, enrollment := range r.s.enrollments {
		if enrollment.OrganizationID == organizationID && enrollment.ClassCode == classCode {
			matched = append(matched, enrollment)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID.String() < matched[j].ID.String() })
	return matched, nil
}

func (r *memEnrollments) Create(ctx context.Context, enrollment domain.Enrollment) error {
	if r.s.createErr != nil {
		return r.s.createErr
	}
	r.s.enrollments[enrollment.ID] = enrollment
	return nil
}

func (r *memEnrollments) Update(ctx context.Context, enrollment domain.Enrollment) error {
	if r.s.updateErr != nil {
		return r.s.updateErr
	}
	if _, ok := r.s.enrollments[enrollment.ID]; !ok {
		return repository.ErrNotFound
	}
	r.s.enrollments[enrollment.ID] = enrollment
	return nil
}

type memAudits struct{ s *memStore }

func (r *memAudits) Record(ctx context.Context, event domain.AuditEvent) error {
	r.s.audits = append(r.s.audits, event)
	return nil
}

func (r *memAudits) ListByBatch(ctx context.Context, organizationID, batchID uuid.UUID) ([]domain.AuditEvent, error) {
	var matched []domain.AuditEvent
	for _, event := range r.s.audits {
		if event.OrganizationID == organizationID && event.BatchID == batchID {
			matched = append(matched, event)
		}
	}
	return matched, nil
}

func containsStatus(statuses []domain.BatchStatus, status domain.BatchStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

var _ repository.Store = (*memStore)(nil)
var _ repository.BatchRepository = (*memBatches)(nil)
var _ repository.EnrollmentRepository = (*memEnrollments)(nil)
var _ repository.AuditRepository = (*memAudits)(nil)
