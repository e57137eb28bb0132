package domain

import (
	"time"

	"github.com/google/uuid"
)

// BatchStatus tracks an import batch through its lifecycle.
type BatchStatus string

const (
	BatchStatusReceived           BatchStatus = "RECEIVED"
	BatchStatusParsing            BatchStatus = "PARSING"
	BatchStatusFailedValidation   BatchStatus = "FAILED_VALIDATION"
	BatchStatusFailedSystem       BatchStatus = "FAILED_SYSTEM"
	BatchStatusProposedOK         BatchStatus = "PROPOSED_OK"
	BatchStatusProposedNeedsReview BatchStatus = "PROPOSED_NEEDS_REVIEW"
	BatchStatusApplied            BatchStatus = "APPLIED"
	BatchStatusApplyFailed        BatchStatus = "APPLY_FAILED"
	BatchStatusReconcileRequired  BatchStatus = "RECONCILE_REQUIRED"
)

// RowCounts aggregates staged row buckets for one batch. Counts are always
// re-derived from row state, never incremented in place.
type RowCounts struct {
	Total     int `json:"total"`
	Valid     int `json:"valid"`
	Invalid   int `json:"invalid"`
	Ambiguous int `json:"ambiguous"`
	Excluded  int `json:"excluded"`
	Inserts   int `json:"inserts"`
	Updates   int `json:"updates"`
}

// Consistent reports whether the bucket counts add up to the total.
func (c RowCounts) Consistent() bool {
	return c.Total == c.Valid+c.Invalid+c.Ambiguous+c.Excluded
}

// Batch represents one import attempt and its lifecycle state.
type Batch struct {
	ID             uuid.UUID   `json:"id"`
	OrganizationID uuid.UUID   `json:"organization_id"`
	FileName       string      `json:"file_name"`
	FileKind       string      `json:"file_kind"`
	Status         BatchStatus `json:"status"`
	Counts         RowCounts   `json:"counts"`
	ReviewOutcome  *string     `json:"review_outcome,omitempty"`
	IgnoredColumns []string    `json:"ignored_columns"`
	ParseError     *string     `json:"parse_error,omitempty"`
	CreatedBy      string      `json:"created_by"`
	CreatedAt      time.Time   `json:"created_at"`
	AppliedBy      *string     `json:"applied_by,omitempty"`
	AppliedAt      *time.Time  `json:"applied_at,omitempty"`
}

// NewBatch creates a batch in its initial status.
func NewBatch(organizationID uuid.UUID, fileName, fileKind, createdBy string) Batch {
	return Batch{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		FileName:       fileName,
		FileKind:       fileKind,
		Status:         BatchStatusReceived,
		IgnoredColumns: []string{},
		CreatedBy:      createdBy,
		CreatedAt:      time.Now(),
	}
}

// DeriveStatus computes the resting status of a reviewed batch from its
// current row counts. Any invalid or ambiguous row keeps the batch in review.
func DeriveStatus(counts RowCounts) BatchStatus {
	if counts.Invalid > 0 || counts.Ambiguous > 0 {
		return BatchStatusProposedNeedsReview
	}
	return BatchStatusProposedOK
}

// IsReviewable reports whether row mutations (exclude, resolve) are legal.
func (s BatchStatus) IsReviewable() bool {
	return s == BatchStatusProposedOK || s == BatchStatusProposedNeedsReview
}

// IsApplyable reports whether a commit may be attempted. A failed apply whose
// transaction rolled back cleanly may be retried.
func (s BatchStatus) IsApplyable() bool {
	return s == BatchStatusProposedOK || s == BatchStatusApplyFailed
}

// IsTerminal reports whether no further transitions are possible.
func (s BatchStatus) IsTerminal() bool {
	switch s {
	case BatchStatusFailedValidation, BatchStatusFailedSystem, BatchStatusApplied, BatchStatusReconcileRequired:
		return true
	}
	return false
}

// Valid reports whether the value is a known batch status.
func (s BatchStatus) Valid() bool {
	switch s {
	case BatchStatusReceived, BatchStatusParsing,
		BatchStatusFailedValidation, BatchStatusFailedSystem,
		BatchStatusProposedOK, BatchStatusProposedNeedsReview,
		BatchStatusApplied, BatchStatusApplyFailed, BatchStatusReconcileRequired:
		return true
	}
	return false
}
