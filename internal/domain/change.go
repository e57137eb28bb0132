package domain

import "github.com/google/uuid"

// ChangeAction is the committable instruction computed for a staged row.
type ChangeAction string

const (
	// ActionNone marks a row that has no decided action yet, either because
	// it is invalid or because matching was ambiguous.
	ActionNone   ChangeAction = ""
	ActionInsert ChangeAction = "INSERT"
	ActionUpdate ChangeAction = "UPDATE"
	ActionNoop   ChangeAction = "NOOP"
)

// FieldChange records the old and new value for one differing field.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// FieldDiff is the ordered minimal change set between a row and a target.
type FieldDiff []FieldChange

// Empty reports whether the diff contains no changes.
func (d FieldDiff) Empty() bool { return len(d) == 0 }

// ProposedChange is the single committable instruction for a staged row.
// Exactly one exists per row; resolutions mutate it in place.
type ProposedChange struct {
	Action     ChangeAction `json:"action"`
	TargetID   *uuid.UUID   `json:"target_id,omitempty"`
	Diff       FieldDiff    `json:"diff,omitempty"`
	IsExcluded bool         `json:"is_excluded"`
}
