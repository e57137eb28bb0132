package importer

import (
	"sort"
	"time"

	"github.com/campusops/enrollsync/internal/domain"
	"github.com/campusops/enrollsync/pkg/rowschema"
)

// Levels accepted in roster files.
var enrollmentLevels = []string{"beginner", "intermediate", "advanced"}

// rosterSchema declares the columns an import file may carry. Unknown
// columns are ignored at batch level, never reported as row errors.
var rosterSchema = rowschema.Schema{
	Fields: []rowschema.FieldDefinition{
		{Name: "student_name", Type: rowschema.FieldTypeString, Required: true},
		{Name: "class_code", Type: rowschema.FieldTypeString, Required: true},
		{Name: "enrolled_on", Type: rowschema.FieldTypeDate, Required: true},
		{Name: "level", Type: rowschema.FieldTypeEnum, Enum: enrollmentLevels},
		{Name: "email", Type: rowschema.FieldTypeEmail},
		{Name: "notes", Type: rowschema.FieldTypeString},
	},
}

// IgnoredColumns returns the file headers that are not part of the roster
// schema, in sorted order.
func IgnoredColumns(headers []string) []string {
	ignored := []string{}
	for _, header := range headers {
		if !rosterSchema.Known(header) {
			ignored = append(ignored, header)
		}
	}
	sort.Strings(ignored)
	return ignored
}

// ValidateRow converts one raw parsed row into a typed record, or the
// ordered list of field errors that make it invalid.
func ValidateRow(raw map[string]string) (*domain.EnrollmentRecord, []domain.FieldError) {
	result := rosterSchema.ValidateRow(raw)
	if !result.IsValid() {
		errs := make([]domain.FieldError, len(result.Errors))
		for i, fieldErr := range result.Errors {
			errs[i] = domain.FieldError{Field: fieldErr.Field, Message: fieldErr.Message}
		}
		return nil, errs
	}

	record := &domain.EnrollmentRecord{
		StudentName: stringValue(result.Values, "student_name"),
		ClassCode:   stringValue(result.Values, "class_code"),
		Level:       stringValue(result.Values, "level"),
		Email:       stringValue(result.Values, "email"),
		Notes:       stringValue(result.Values, "notes"),
	}
	if ts, ok := result.Values["enrolled_on"].(time.Time); ok {
		record.EnrolledOn = ts
	}

	return record, nil
}

func stringValue(values map[string]any, key string) string {
	if v, ok := values[key].(string); ok {
		return v
	}
	return ""
}
