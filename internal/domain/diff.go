package domain

import (
	"strings"
	"time"
)

// DiffEnrollment computes the minimal field-level change set between a
// validated import record and an existing enrollment. Fields appear in a
// fixed order so the result is deterministic. An empty diff means the row is
// a no-op against this target.
func DiffEnrollment(record EnrollmentRecord, target Enrollment) FieldDiff {
	var diff FieldDiff

	if !textEqual(record.StudentName, target.StudentName) {
		diff = append(diff, FieldChange{Field: "student_name", Old: target.StudentName, New: record.StudentName})
	}
	if record.ClassCode != target.ClassCode {
		diff = append(diff, FieldChange{Field: "class_code", Old: target.ClassCode, New: record.ClassCode})
	}
	if !DateEqual(record.EnrolledOn, target.EnrolledOn) {
		diff = append(diff, FieldChange{
			Field: "enrolled_on",
			Old:   target.EnrolledOn.Format("2006-01-02"),
			New:   record.EnrolledOn.Format("2006-01-02"),
		})
	}
	if record.Level != target.Level {
		diff = append(diff, FieldChange{Field: "level", Old: target.Level, New: record.Level})
	}
	if !strings.EqualFold(strings.TrimSpace(record.Email), strings.TrimSpace(target.Email)) {
		diff = append(diff, FieldChange{Field: "email", Old: target.Email, New: record.Email})
	}
	if !textEqual(record.Notes, target.Notes) {
		diff = append(diff, FieldChange{Field: "notes", Old: target.Notes, New: record.Notes})
	}

	return diff
}

// NormalizeText collapses runs of whitespace and lowercases, so cosmetic
// differences in free text never produce an update.
func NormalizeText(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}

func textEqual(a, b string) bool {
	return NormalizeText(a) == NormalizeText(b)
}

// DateEqual compares two timestamps on their calendar date only, since
// import files carry dates, not times.
func DateEqual(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
