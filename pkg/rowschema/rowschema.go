// Package rowschema validates raw tabular row values against a declared
// column schema, producing typed values or ordered field-level errors.
package rowschema

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FieldType enumerates the supported column value types.
type FieldType string

const (
	FieldTypeString FieldType = "string"
	FieldTypeDate   FieldType = "date"
	FieldTypeEnum   FieldType = "enum"
	FieldTypeEmail  FieldType = "email"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"01/02/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// FieldDefinition declares one expected column.
type FieldDefinition struct {
	Name     string
	Type     FieldType
	Required bool
	// Enum lists the accepted values when Type is FieldTypeEnum.
	Enum []string
}

// Schema is an ordered set of field definitions. Order drives the order of
// reported errors so results are reproducible.
type Schema struct {
	Fields []FieldDefinition
}

// FieldError is one validation failure on one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result carries the typed values for a row, or the reasons it was rejected.
type Result struct {
	Values         map[string]any
	Errors         []FieldError
	IgnoredColumns []string
}

// IsValid reports whether the row passed every field check.
func (r Result) IsValid() bool { return len(r.Errors) == 0 }

// Known reports whether a column name is part of the schema.
func (s Schema) Known(name string) bool {
	for _, field := range s.Fields {
		if field.Name == name {
			return true
		}
	}
	return false
}

// ValidateRow checks one raw row (column name -> cell text) against the
// schema. Malformed data never returns an error; it is reported per field.
// Unknown columns are collected as ignored, not treated as failures.
func (s Schema) ValidateRow(raw map[string]string) Result {
	result := Result{Values: make(map[string]any, len(s.Fields))}

	for _, field := range s.Fields {
		value := strings.TrimSpace(raw[field.Name])
		if value == "" {
			if field.Required {
				result.Errors = append(result.Errors, FieldError{
					Field:   field.Name,
					Message: fmt.Sprintf("required field %q is missing", field.Name),
				})
			}
			continue
		}

		typed, err := coerce(field, value)
		if err != nil {
			result.Errors = append(result.Errors, FieldError{Field: field.Name, Message: err.Error()})
			continue
		}
		result.Values[field.Name] = typed
	}

	for name := range raw {
		if !s.Known(name) {
			result.IgnoredColumns = append(result.IgnoredColumns, name)
		}
	}
	sort.Strings(result.IgnoredColumns)

	return result
}

func coerce(field FieldDefinition, value string) (any, error) {
	switch field.Type {
	case FieldTypeString:
		return value, nil
	case FieldTypeDate:
		ts, err := ParseDate(value)
		if err != nil {
			return nil, fmt.Errorf("unable to parse %q as a date", value)
		}
		return ts, nil
	case FieldTypeEnum:
		lowered := strings.ToLower(value)
		for _, allowed := range field.Enum {
			if lowered == allowed {
				return allowed, nil
			}
		}
		return nil, fmt.Errorf("value %q is not one of %s", value, strings.Join(field.Enum, ", "))
	case FieldTypeEmail:
		if !looksLikeEmail(value) {
			return nil, fmt.Errorf("value %q is not a valid email address", value)
		}
		return strings.ToLower(value), nil
	default:
		return value, nil
	}
}

// ParseDate tries each accepted layout in order.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}

func looksLikeEmail(value string) bool {
	at := strings.Index(value, "@")
	if at <= 0 || at == len(value)-1 {
		return false
	}
	domain := value[at+1:]
	return strings.Contains(domain, ".") && !strings.ContainsAny(value, " \t")
}
