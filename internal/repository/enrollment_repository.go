package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/campusops/enrollsync/internal/db"
	"github.com/campusops/enrollsync/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type enrollmentRepository struct {
	q db.Querier
}

const enrollmentColumns = `id, organization_id, student_name, class_code, enrolled_on,
	level, email, notes, created_at, updated_at`

func (r *enrollmentRepository) GetByID(ctx context.Context, organizationID, id uuid.UUID) (domain.Enrollment, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1 AND organization_id = $2`,
		id, organizationID,
	)
	enrollment, err := scanEnrollment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Enrollment{}, ErrNotFound
		}
		return domain.Enrollment{}, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return enrollment, nil
}

func (r *enrollmentRepository) ListByClassCode(ctx context.Context, organizationID uuid.UUID, classCode string) ([]domain.Enrollment, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+enrollmentColumns+`
		 FROM enrollments
		 WHERE organization_id = $1 AND class_code = $2
		 ORDER BY id ASC`,
		organizationID, classCode,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	enrollments := []domain.Enrollment{}
	for rows.Next() {
		enrollment, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		enrollments = append(enrollments, enrollment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate enrollments: %w", err)
	}

	return enrollments, nil
}

func (r *enrollmentRepository) Create(ctx context.Context, enrollment domain.Enrollment) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO enrollments (`+enrollmentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		enrollment.ID, enrollment.OrganizationID, enrollment.StudentName, enrollment.ClassCode,
		enrollment.EnrolledOn, enrollment.Level, enrollment.Email, enrollment.Notes,
		enrollment.CreatedAt, enrollment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create enrollment: %w", err)
	}
	return nil
}

func (r *enrollmentRepository) Update(ctx context.Context, enrollment domain.Enrollment) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE enrollments
		 SET student_name = $3, class_code = $4, enrolled_on = $5, level = $6,
		     email = $7, notes = $8, updated_at = $9
		 WHERE id = $1 AND organization_id = $2`,
		enrollment.ID, enrollment.OrganizationID, enrollment.StudentName, enrollment.ClassCode,
		enrollment.EnrolledOn, enrollment.Level, enrollment.Email, enrollment.Notes,
		enrollment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanEnrollment(scanner rowScanner) (domain.Enrollment, error) {
	var enrollment domain.Enrollment
	if err := scanner.Scan(
		&enrollment.ID, &enrollment.OrganizationID, &enrollment.StudentName, &enrollment.ClassCode,
		&enrollment.EnrolledOn, &enrollment.Level, &enrollment.Email, &enrollment.Notes,
		&enrollment.CreatedAt, &enrollment.UpdatedAt,
	); err != nil {
		return domain.Enrollment{}, err
	}
	return enrollment, nil
}
