package repository

import (
	"context"
	"errors"

	"github.com/campusops/enrollsync/internal/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a record does not exist or is not visible to
// the caller's organization.
var ErrNotFound = errors.New("record not found")

// Store bundles the repositories behind one transactional boundary. InTx
// runs fn against a store whose repositories share a single transaction;
// returning an error rolls everything back.
type Store interface {
	Batches() BatchRepository
	Enrollments() EnrollmentRepository
	Audits() AuditRepository
	InTx(ctx context.Context, fn func(tx Store) error) error
}

// BatchRepository persists batches, their staged rows, and the proposed
// change embedded in each row.
type BatchRepository interface {
	Create(ctx context.Context, batch domain.Batch, rows []domain.StagedRow) error
	GetByID(ctx context.Context, organizationID, id uuid.UUID) (domain.Batch, error)
	List(ctx context.Context, organizationID uuid.UUID, statuses []domain.BatchStatus, limit, offset int) ([]domain.Batch, int, error)
	GetRow(ctx context.Context, organizationID, batchID, rowID uuid.UUID) (domain.StagedRow, error)
	ListRows(ctx context.Context, organizationID, batchID uuid.UUID, status *domain.RowStatus, limit, offset int) ([]domain.StagedRow, int, error)
	UpdateRow(ctx context.Context, row domain.StagedRow) error
	// RecountRows derives the bucket counts from authoritative row state.
	RecountRows(ctx context.Context, batchID uuid.UUID) (domain.RowCounts, error)
	UpdateStatus(ctx context.Context, batch domain.Batch) error
}

// EnrollmentRepository persists the target records batches reconcile against.
type EnrollmentRepository interface {
	GetByID(ctx context.Context, organizationID, id uuid.UUID) (domain.Enrollment, error)
	// ListByClassCode returns candidates for matching, ordered by id so the
	// matcher's input is deterministic.
	ListByClassCode(ctx context.Context, organizationID uuid.UUID, classCode string) ([]domain.Enrollment, error)
	Create(ctx context.Context, enrollment domain.Enrollment) error
	Update(ctx context.Context, enrollment domain.Enrollment) error
}

// AuditRepository records one event per state-changing call.
type AuditRepository interface {
	Record(ctx context.Context, event domain.AuditEvent) error
	ListByBatch(ctx context.Context, organizationID, batchID uuid.UUID) ([]domain.AuditEvent, error)
}
