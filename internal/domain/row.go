package domain

import (
	"time"

	"github.com/google/uuid"
)

// RowStatus tracks one staged row through review.
type RowStatus string

const (
	RowStatusValid     RowStatus = "VALID"
	RowStatusInvalid   RowStatus = "INVALID"
	RowStatusAmbiguous RowStatus = "AMBIGUOUS"
	RowStatusExcluded  RowStatus = "EXCLUDED"
)

// Valid reports whether the value is a known row status.
func (s RowStatus) Valid() bool {
	switch s {
	case RowStatusValid, RowStatusInvalid, RowStatusAmbiguous, RowStatusExcluded:
		return true
	}
	return false
}

// FieldError describes one validation failure on one field of a row.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// MatchCandidate describes one existing enrollment a staged row might
// correspond to, with the fields used to score the match.
type MatchCandidate struct {
	TargetID    uuid.UUID `json:"target_id"`
	Score       float64   `json:"score"`
	StudentName string    `json:"student_name"`
	ClassCode   string    `json:"class_code"`
	EnrolledOn  time.Time `json:"enrolled_on"`
	Level       string    `json:"level"`
}

// ResolutionKind records how an ambiguous row was settled by a reviewer.
type ResolutionKind string

const (
	ResolutionLinked ResolutionKind = "linked"
	ResolutionNew    ResolutionKind = "new"
)

// Resolution is the audit trail of a human decision on a row.
type Resolution struct {
	Kind           ResolutionKind `json:"kind"`
	LinkedTargetID *uuid.UUID     `json:"linked_target_id,omitempty"`
	ResolvedBy     string         `json:"resolved_by"`
	ResolvedAt     time.Time      `json:"resolved_at"`
}

// StagedRow is one row of the source file, owned by exactly one batch. Rows
// are never deleted, only re-statused, preserving every decision.
type StagedRow struct {
	ID         uuid.UUID         `json:"id"`
	BatchID    uuid.UUID         `json:"batch_id"`
	RowNumber  int               `json:"row_number"`
	Status     RowStatus         `json:"status"`
	RawValues  map[string]string `json:"raw_values"`
	Record     *EnrollmentRecord `json:"record,omitempty"`
	Errors     []FieldError      `json:"errors,omitempty"`
	Candidates []MatchCandidate  `json:"candidates,omitempty"`
	Change     ProposedChange    `json:"change"`
	Resolution *Resolution       `json:"resolution,omitempty"`
}
