package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateRowTypesEveryField(t *testing.T) {
	record, errs := ValidateRow(map[string]string{
		"student_name": "  Ada Lovelace ",
		"class_code":   "MATH-101",
		"enrolled_on":  "2024-09-01",
		"level":        "Beginner",
		"email":        "Ada@Example.com",
		"notes":        "transferred in",
	})
	require.Empty(t, errs)
	require.NotNil(t, record)
	require.Equal(t, "Ada Lovelace", record.StudentName)
	require.Equal(t, "MATH-101", record.ClassCode)
	require.Equal(t, time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC), record.EnrolledOn)
	require.Equal(t, "beginner", record.Level)
	require.Equal(t, "ada@example.com", record.Email)
	require.Equal(t, "transferred in", record.Notes)
}

func TestValidateRowCollectsAllErrors(t *testing.T) {
	record, errs := ValidateRow(map[string]string{
		"student_name": "",
		"class_code":   "MATH-101",
		"enrolled_on":  "not a date",
		"level":        "expert",
		"email":        "not-an-email",
	})
	require.Nil(t, record)
	require.Len(t, errs, 4)

	// Errors come back in schema field order so reruns report identically.
	fields := make([]string, len(errs))
	for i, fieldErr := range errs {
		fields[i] = fieldErr.Field
	}
	require.Equal(t, []string{"student_name", "enrolled_on", "level", "email"}, fields)
}

func TestValidateRowOptionalFieldsMayBeEmpty(t *testing.T) {
	record, errs := ValidateRow(map[string]string{
		"student_name": "Ada Lovelace",
		"class_code":   "MATH-101",
		"enrolled_on":  "2024-09-01",
	})
	require.Empty(t, errs)
	require.NotNil(t, record)
	require.Empty(t, record.Level)
	require.Empty(t, record.Email)
}

func TestIgnoredColumnsSortsUnknownHeaders(t *testing.T) {
	ignored := IgnoredColumns([]string{"student_name", "t_shirt_size", "class_code", "homeroom"})
	require.Equal(t, []string{"homeroom", "t_shirt_size"}, ignored)
}
