package domain

import (
	"time"

	"github.com/google/uuid"
)

// Enrollment is one persisted student enrollment, the target record type
// import batches are reconciled against.
type Enrollment struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	StudentName    string    `json:"student_name"`
	ClassCode      string    `json:"class_code"`
	EnrolledOn     time.Time `json:"enrolled_on"`
	Level          string    `json:"level"`
	Email          string    `json:"email"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewEnrollment creates an enrollment from a validated import record.
func NewEnrollment(organizationID uuid.UUID, record EnrollmentRecord) Enrollment {
	now := time.Now()
	return Enrollment{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		StudentName:    record.StudentName,
		ClassCode:      record.ClassCode,
		EnrolledOn:     record.EnrolledOn,
		Level:          record.Level,
		Email:          record.Email,
		Notes:          record.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// EnrollmentRecord is the typed, validated form of one import row.
type EnrollmentRecord struct {
	StudentName string    `json:"student_name"`
	ClassCode   string    `json:"class_code"`
	EnrolledOn  time.Time `json:"enrolled_on"`
	Level       string    `json:"level"`
	Email       string    `json:"email"`
	Notes       string    `json:"notes"`
}

// ApplyTo returns a copy of the enrollment with the record's values written
// over the target's mutable fields.
func (r EnrollmentRecord) ApplyTo(target Enrollment) Enrollment {
	target.StudentName = r.StudentName
	target.ClassCode = r.ClassCode
	target.EnrolledOn = r.EnrolledOn
	target.Level = r.Level
	target.Email = r.Email
	target.Notes = r.Notes
	target.UpdatedAt = time.Now()
	return target
}
